package partition

import (
	"github.com/jaxan/branching-bisim/lts"
)

// blockID, constID and blcID are arena indices: rather than a graph of
// pointers, every cross-reference between a block, a constellation, a BLC
// set and the arrays that hold them is a plain int. They borrow by index;
// the owning slice on Partition is the arena.
type blockID int
type constID int
type blcID int

const noBlock blockID = -1
const noConst constID = -1
const noBLC blcID = -1

// counterUndefined marks a state's transient split counter as outside the
// scope of any active split.
const counterUndefined = -1

// maxCounter is the size of the value space of the transient per-state
// split counter: three equal ranges, one per potential subblock, plus the
// two sentinel values. A state's block-inert fan-out must fit one range,
// which bounds it to (maxCounter - 2) / 3; build rejects any input state
// exceeding that with StateFanoutTooLargeError.
const maxCounter = 1 << 30

const maxInertFanout = (maxCounter - 2) / 3

// subblockKind names the four outcomes of the four-way splitter.
type subblockKind int

const (
	reachAlw subblockKind = iota
	avoidSml
	avoidLrg
	newBotSt
)

func (k subblockKind) String() string {
	switch k {
	case reachAlw:
		return "ReachAlw"
	case avoidSml:
		return "AvoidSml"
	case avoidLrg:
		return "AvoidLrg"
	case newBotSt:
		return "NewBotSt"
	}
	return "?"
}

// splitCounter is the transient per-state bookkeeping used while a block is
// being split: which of four subblocks the state is tentatively in, and how
// many block-inert successors remain to be verified before that membership
// is proven. We keep the subblock tag and the remaining-successors count as
// two struct fields rather than packing them into disjoint ranges of a
// single machine word (a small tagged struct is already compact), but
// `stateInfo.counter` still mirrors `remaining` so the counterUndefined
// sentinel is a single int comparison.
type splitCounter struct {
	kind      subblockKind
	remaining int // block-inert out-transitions not yet proven to land in `kind`
	potential bool
	hitSmall  bool // AvoidLrg candidate whose counter hit zero, pending the large-splitter check
}

// stateInfo is the State entity: a back-pointer to its block, a position in
// statesInBlocks, its outgoing/incoming transitions, and the transient
// split-time counter.
//
// The outgoing-transitions and incoming-transitions orderings are, at this
// level, represented per-state as plain slices of transition ids rather
// than sub-ranges of one shared global array: a transition's source and
// target states never change, so a state's own outgoing/incoming
// transition set is fixed at initialisation time and never needs the
// array-surgery the BLC ordering requires.
type stateInfo struct {
	block blockID
	pos   int // position in statesInBlocks (back-pointer)

	out []int // ids of this state's outgoing transitions
	in  []int // ids of this state's incoming transitions

	inertOut int // count of currently block-inert outgoing transitions

	counter     int // counterUndefined outside an active split
	counterInfo splitCounter
}

// transInfo is the Transition entity: a (from, label, to) triple plus its
// back-pointer into the BLC set it currently belongs to.
type transInfo struct {
	from, to int
	label    lts.Label

	blc    blcID // the BLC set this transition currently belongs to
	blcPos int   // index of this transition within blc's members slice
}

// blockRec is the Block entity: a contiguous range in
// statesInBlocks split into a bottom-states prefix and a non-bottom suffix.
type blockRec struct {
	beginBottom int // start of the block's range == start of bottom prefix
	endBottom   int // end of bottom prefix == start of non-bottom suffix
	end         int // end of the block's range (exclusive)

	constellation constID
	blcList       []blcID // BLC sets whose source is this block
	hasNewBottom  bool
}

func (b *blockRec) size() int { return b.end - b.beginBottom }

// constRec is the Constellation entity: a contiguous range in
// statesInBlocks covering one or more whole blocks.
type constRec struct {
	begin, end int
	numBlocks  int
}

func (c *constRec) trivial() bool { return c.numBlocks < 2 }

// blcSet is the BLC set entity: the set of transitions sharing a source
// block, a label, and a target constellation.
//
// members holds the set's own transitions as a contiguous slice of its own
// slice rather than of one shared blcTrans array — see the stateInfo doc
// comment above for why. [0,markBegin) is the marked prefix used while the
// set is unstable.
type blcSet struct {
	block  blockID
	label  lts.Label
	target constID

	members   []int
	stable    bool
	markBegin int
	enqueued  bool
	deleted   bool
}

func (s *blcSet) size() int { return len(s.members) }

// Partition holds all three parallel orderings (states-in-blocks as a
// literal permutation array; outgoing/incoming/BLC transitions as
// per-state or per-BLC-set slices, see above) plus the block/constellation/
// BLC-set arenas. It is mutated only by the stabilizer.
type Partition struct {
	view *lts.View

	// branching selects branching bisimulation's tau-inertness treatment.
	// When false (strong bisimulation),
	// isBlockInert/isConstellationInert always report false, so every
	// state is already its own bottom state and the stabilizer degenerates
	// into an ordinary (label, target-block) signature refinement.
	branching bool

	states []stateInfo

	statesInBlocks []int // permutation: position -> state id
	statePos       []int // state id -> position (mirrors states[].pos)

	transitions []transInfo

	blocks []blockRec
	consts []constRec
	blcs   []blcSet

	// nontrivial and newBottom are the two stabilizer worklists; they live
	// on Partition because several components enqueue into them (newBlock
	// and the stabilizer's detachSmaller into nontrivial, the four-way
	// splitter into newBottom when a split produces new bottom states or a
	// block inherits that status).
	nontrivial []constID
	newBottom  []blockID

	// unstableBLC is the stabilize pass's generic BLC-set work-list: any
	// freshly created BLC set that inherited instability from the set its
	// transitions were split out of gets queued here by the BLC
	// maintainer, so the pass keeps draining it even as nested splits
	// create more such sets.
	unstableBLC []blcID

	// carveOld/carveNew identify the constellation pair of the carve-off
	// currently being stabilized (noConst outside a carve round). The
	// stabilize pass uses them to recognize a queued set as a main
	// splitter of this round and pair it with its co-splitter, instead of
	// treating it as a plain bottom-state splitter.
	carveOld constID
	carveNew constID

	// blcReady is the phase flag separating initialisation from the main
	// loop: the first per-label refinement runs before any BLC set
	// exists, so splits performed during it skip BLC maintenance
	// entirely; buildBLCIndex then constructs the whole index in one pass
	// and flips the flag.
	blcReady bool
}

func (p *Partition) numStates() int { return len(p.states) }

func (p *Partition) state(s int) *stateInfo    { return &p.states[s] }
func (p *Partition) trans(t int) *transInfo    { return &p.transitions[t] }
func (p *Partition) block(b blockID) *blockRec { return &p.blocks[b] }
func (p *Partition) cst(c constID) *constRec   { return &p.consts[c] }
func (p *Partition) blc(b blcID) *blcSet       { return &p.blcs[b] }

// ---- partition store operations ------------------------------------------

// swapStates exchanges the states at positions i and j in statesInBlocks,
// keeping back-pointers consistent. O(1).
func (p *Partition) swapStates(i, j int) {
	if i == j {
		return
	}
	si, sj := p.statesInBlocks[i], p.statesInBlocks[j]
	p.statesInBlocks[i], p.statesInBlocks[j] = sj, si
	p.states[si].pos, p.states[sj].pos = j, i
	p.statePos[si], p.statePos[sj] = j, i
}

// swapStates3 cyclically swaps the states at positions i, j, k: the state at
// i moves to j, the one at j moves to k, the one at k moves to i. O(1).
func (p *Partition) swapStates3(i, j, k int) {
	si, sj, sk := p.statesInBlocks[i], p.statesInBlocks[j], p.statesInBlocks[k]
	p.statesInBlocks[i] = sk
	p.statesInBlocks[j] = si
	p.statesInBlocks[k] = sj
	p.states[sk].pos, p.statePos[sk] = i, i
	p.states[si].pos, p.statePos[si] = j, j
	p.states[sj].pos, p.statePos[sj] = k, k
}

// markTransition moves the outgoing-transition handle t across the
// stability boundary of its (necessarily unstable) BLC set and advances the
// boundary. O(1).
func (p *Partition) markTransition(t int) {
	ti := p.trans(t)
	bs := p.blc(ti.blc)
	pos := ti.blcPos
	if pos < bs.markBegin {
		return // already marked
	}
	other := bs.members[bs.markBegin]
	bs.members[bs.markBegin], bs.members[pos] = bs.members[pos], other
	p.transitions[other].blcPos = pos
	p.transitions[t].blcPos = bs.markBegin
	bs.markBegin++
}

// newBlock creates a new Block from the contiguous sub-range [from,to) of
// statesInBlocks, previously belonging to block old. Every state in the
// range is linked to the new block and its transient counter is reset; the
// new block starts with an empty BLC list. The new block inherits old's
// constellation, which thereby gains a block; a constellation crossing the
// two-block threshold goes onto the non-trivial work-list here, which is
// the only place constellations ever become non-trivial.
func (p *Partition) newBlock(old blockID, from, to int) blockID {
	id := blockID(len(p.blocks))
	cid := p.block(old).constellation
	p.blocks = append(p.blocks, blockRec{
		beginBottom:   from,
		endBottom:     to, // caller fixes up the bottom/non-bottom split afterwards
		end:           to,
		constellation: cid,
		blcList:       nil,
		hasNewBottom:  false,
	})
	for pos := from; pos < to; pos++ {
		s := p.statesInBlocks[pos]
		p.states[s].block = id
		p.states[s].counter = counterUndefined
	}
	c := p.cst(cid)
	c.numBlocks++
	if c.numBlocks == 2 {
		p.nontrivial = append(p.nontrivial, cid)
	}
	return id
}

// newConstellation creates a new Constellation from the contiguous
// sub-range [from,to) of statesInBlocks, previously part of constellation
// old. numBlocks is the number of whole blocks the new range covers.
func (p *Partition) newConstellation(old constID, from, to, numBlocks int) constID {
	id := constID(len(p.consts))
	p.consts = append(p.consts, constRec{begin: from, end: to, numBlocks: numBlocks})
	p.cst(old).numBlocks -= numBlocks
	return id
}

// effectiveLabel is a small helper around view.EffectiveLabel for a
// transition stored as a transInfo rather than an lts.Transition.
func (p *Partition) effectiveLabel(t int) lts.Label {
	ti := p.trans(t)
	return p.view.EffectiveLabel(lts.Transition{From: ti.from, Label: ti.label, To: ti.to})
}

// isBlockInert reports whether transition t is block-inert: labelled tau
// (and, when divergence is preserved, not a self-loop) with source and
// target in the same block.
func (p *Partition) isBlockInert(t int) bool {
	if !p.branching || p.effectiveLabel(t) != p.view.Tau() {
		return false
	}
	ti := p.trans(t)
	return p.state(ti.from).block == p.state(ti.to).block
}

// isConstellationInert reports whether transition t is
// constellation-inert: tau (under the same divergence rule) with source and
// target in the same constellation.
func (p *Partition) isConstellationInert(t int) bool {
	if !p.branching || p.effectiveLabel(t) != p.view.Tau() {
		return false
	}
	ti := p.trans(t)
	return p.block(p.state(ti.from).block).constellation == p.block(p.state(ti.to).block).constellation
}

// isBottom reports whether state s currently has zero block-inert outgoing
// transitions.
func (p *Partition) isBottom(s int) bool { return p.state(s).inertOut == 0 }

// isInertBLC reports whether BLC set id is block b's constellation-inert
// tau set (the one set per block that is never used as a splitter and
// always heads the block's BLC list).
func (p *Partition) isInertBLC(b blockID, id blcID) bool {
	if !p.branching {
		return false
	}
	bs := p.blc(id)
	return bs.label == p.view.Tau() && bs.target == p.block(b).constellation
}

// hasPotential reports whether s currently carries tentative split
// bookkeeping: a non-bottom state discovered by one of the four-way
// splitter's predecessor searches but not yet proven a member of any
// subblock.
func (p *Partition) hasPotential(s int) bool { return p.state(s).counter != counterUndefined }

// setPotential records s as a tentative member of kind with remaining
// block-inert out-transitions still to be confirmed. O(1).
func (p *Partition) setPotential(s int, kind subblockKind, remaining int) {
	st := p.state(s)
	st.counter = remaining
	st.counterInfo = splitCounter{kind: kind, remaining: remaining, potential: true}
}

// clearPotential resets s's transient split bookkeeping to counterUndefined,
// either because s was just proven a member of some subblock or because the
// split that owned the bookkeeping has finished and every transient state
// counter in the block is being cleared. O(1).
func (p *Partition) clearPotential(s int) {
	st := p.state(s)
	st.counter = counterUndefined
	st.counterInfo = splitCounter{}
}

// targetConstellation returns the constellation of transition t's target
// state.
func (p *Partition) targetConstellation(t int) constID {
	return p.block(p.state(p.trans(t).to).block).constellation
}
