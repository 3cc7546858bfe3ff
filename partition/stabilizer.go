package partition

import "github.com/sirupsen/logrus"

// stabilizer is the outer driver that repeatedly picks a non-trivial
// constellation, carves a smaller sub-constellation off one of its
// extreme blocks, and restabilizes via the four-way splitter, interleaving
// a stabilize pass over blocks that acquired new bottom states.
type stabilizer struct {
	p   *Partition
	blc *blcMaintainer
	fs  *fourWaySplitter
	log *logrus.Logger
}

func newStabilizer(p *Partition, m *blcMaintainer, fs *fourWaySplitter, log *logrus.Logger) *stabilizer {
	return &stabilizer{p: p, blc: m, fs: fs, log: log}
}

// run first settles any new-bottom-state fallout left over from the
// initial refinement, then drains the non-trivial-constellation work-list
// to completion. It is the engine's main loop.
func (s *stabilizer) run() error {
	p := s.p
	p.checkInvariants("stabilizer.run: entry")
	if err := s.stabilizePass(); err != nil {
		return err
	}
	for len(p.nontrivial) > 0 {
		k := p.nontrivial[len(p.nontrivial)-1]
		p.nontrivial = p.nontrivial[:len(p.nontrivial)-1]
		if p.cst(k).trivial() {
			continue // became trivial since it was queued
		}
		if err := s.splitConstellation(k); err != nil {
			return err
		}
		p.checkInvariants("stabilizer.run: after splitConstellation")
	}
	return nil
}

// splitConstellation implements one iteration of the main loop's body for
// constellation k: carve off the smaller extreme block as a new
// constellation, turn every group of transitions into it into a main
// splitter, and run the stabilize pass until every splitter it touched is
// stable again. The carveOld/carveNew fields stay set for the duration of
// the pass so that queued main splitters keep their pairing with the
// matching co-splitter even when a block split relocates them.
func (s *stabilizer) splitConstellation(k constID) error {
	p := s.p
	x, kPrime := s.detachSmaller(k)

	s.log.WithFields(logrus.Fields{
		"constellation": int(k),
		"carved":        int(kPrime),
		"block":         int(x),
	}).Debug("carved sub-constellation")

	mains := s.blc.updateAfterCarveOff(x, k, kPrime)

	// Special case: tau-transitions from x (now in K') back to the
	// remaining states of k were constellation-inert before the detach
	// and are now a fresh main splitter with no co-splitter; the set's
	// identity and membership are unchanged, only its inertness is.
	if p.branching {
		if back := p.findBLC(x, p.view.Tau(), k); back != noBLC {
			if bs := p.blc(back); bs.stable {
				bs.stable = false
				mains = append(mains, back)
			}
		}
	}

	p.carveOld, p.carveNew = k, kPrime
	for _, id := range mains {
		bs := p.blc(id)
		if !bs.enqueued {
			bs.enqueued = true
			p.unstableBLC = append(p.unstableBLC, id)
		}
	}
	err := s.stabilizePass()
	p.carveOld, p.carveNew = noConst, noConst
	return err
}

// detachSmaller carves the smaller of k's first and last block (in
// states-in-blocks order) off into a freshly created constellation, and
// re-queues k if it is still non-trivial afterward.
func (s *stabilizer) detachSmaller(k constID) (x blockID, kPrime constID) {
	p := s.p
	c := p.cst(k)
	beginBlockID := p.state(p.statesInBlocks[c.begin]).block
	endBlockID := p.state(p.statesInBlocks[c.end-1]).block
	beginBlk := p.block(beginBlockID)
	endBlk := p.block(endBlockID)

	atBegin := beginBlk.size() <= endBlk.size()
	var from, to int
	if atBegin {
		x = beginBlockID
		from, to = beginBlk.beginBottom, beginBlk.end
	} else {
		x = endBlockID
		from, to = endBlk.beginBottom, endBlk.end
	}

	kPrime = p.newConstellation(k, from, to, 1)
	p.block(x).constellation = kPrime

	c = p.cst(k) // newConstellation may have reallocated p.consts
	if atBegin {
		c.begin = to
	} else {
		c.end = from
	}
	if !c.trivial() {
		p.nontrivial = append(p.nontrivial, k)
	}
	return x, kPrime
}

// stabilizePass drains both stabilizer work-lists to completion: blocks
// with new bottom states (which get all their BLC sets marked and queued)
// and the generic unstable-BLC-set queue those seed. New-bottom blocks are
// always seeded before the next set is processed, because a split may
// produce them mid-queue.
func (s *stabilizer) stabilizePass() error {
	p := s.p
	for len(p.newBottom) > 0 || len(p.unstableBLC) > 0 {
		if len(p.newBottom) > 0 {
			b := p.newBottom[0]
			p.newBottom = p.newBottom[1:]
			s.seedUnstable(b)
			continue
		}
		id := p.unstableBLC[0]
		p.unstableBLC = p.unstableBLC[1:]
		if err := s.processUnstable(id); err != nil {
			return err
		}
	}
	return nil
}

// seedUnstable prepares one block that just acquired new bottom states for
// the stabilize pass. Stability of every one of its BLC sets is now in
// doubt (a new bottom state may lack a transition an old bottom state
// has), so each of them except the constellation-inert tau set is marked
// unstable, gets all its transitions marked, and is pushed onto the
// work-list.
func (s *stabilizer) seedUnstable(b blockID) {
	p := s.p
	blk := p.block(b)
	blk.hasNewBottom = false
	for _, id := range blk.blcList {
		bs := p.blc(id)
		if bs.deleted || p.isInertBLC(b, id) {
			continue
		}
		bs.stable = false
		for bs.markBegin < len(bs.members) {
			p.markTransition(bs.members[bs.markBegin])
		}
		if !bs.enqueued {
			bs.enqueued = true
			p.unstableBLC = append(p.unstableBLC, id)
		}
	}
}

// processUnstable stabilizes one BLC set. During a carve round the set may
// be a main splitter of that round (it targets the carved-off
// constellation): then it is paired with the matching co-splitter in the
// same source block for a Standard 4-way split, falling back to Tau-only
// when no real co-splitter exists. A tau set still targeting the remaining
// constellation from the carved block is the back-transition special case,
// also split Tau-only. Everything else is a plain Bottom-state split. A
// size-<=1 block needs no split but its splitter is made stable directly.
func (s *stabilizer) processUnstable(id blcID) error {
	p := s.p
	bs := p.blc(id)
	if bs.deleted {
		return nil
	}
	bs.enqueued = false
	if bs.stable {
		return nil
	}
	owner := bs.block
	if p.block(owner).size() <= 1 {
		bs.stable = true
		bs.markBegin = 0
		return nil
	}

	small, large := noBLC, noBLC
	oldC, newC := noConst, noConst
	switch {
	case p.carveNew != noConst && bs.target == p.carveNew:
		small = id
		oldC, newC = p.carveOld, p.carveNew
		co := p.findBLC(owner, bs.label, p.carveOld)
		if co != id && co != noBLC && !p.isInertBLC(owner, co) {
			large = co
		}
	case p.branching && p.carveNew != noConst && bs.label == p.view.Tau() && bs.target == p.carveOld &&
		p.block(owner).constellation == p.carveNew:
		// Back-transitions from the carved block into the remaining
		// constellation; the would-be co-splitter is the carved block's
		// own constellation-inert tau set, so this is a Tau-only split.
		small = id
		oldC, newC = p.carveOld, p.carveNew
	default:
		large = id
	}

	s.fs.split(owner, small, large, oldC, newC)
	s.blc.flushDeletions()

	if nb := p.blc(id); !nb.deleted {
		nb.stable = true
		nb.markBegin = 0
	}
	if large != noBLC && large != id {
		if cb := p.blc(large); !cb.deleted {
			cb.stable = true
			cb.markBegin = 0
		}
	}
	return nil
}
