package partition

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/sirupsen/logrus"
)

// splitMode names the three ways the four-way splitter can be called, plus
// modeInit for the initial per-label refinement pass (driven by
// splitInitial), which reuses the same ReachAlw/AvoidSml two-way shape as
// modeTauOnly but seeds directly from a label's transitions rather than
// from a BLC set (none exist yet).
type splitMode int

const (
	modeStandard    splitMode = iota // both a small and a large splitter
	modeTauOnly                      // small splitter only
	modeBottomSplit                  // large splitter only
	modeInit                         // initial per-label refinement, by raw label
)

// splitResult reports the up-to-four subblocks a four-way split produced;
// a noBlock field means that subblock was empty.
type splitResult struct {
	ReachAlw blockID
	AvoidSml blockID
	AvoidLrg blockID
	NewBotSt blockID
}

func (r *splitResult) set(k subblockKind, id blockID) {
	switch k {
	case reachAlw:
		r.ReachAlw = id
	case avoidSml:
		r.AvoidSml = id
	case avoidLrg:
		r.AvoidLrg = id
	case newBotSt:
		r.NewBotSt = id
	}
}

// coroutineState is the explicit state machine each of the four logical
// searches advances through one micro-step at a time, driven by
// splitCoordinator.run's outer loop.
type coroutineState int

const (
	stateChecking                 coroutineState = iota // ready to pop the next proven state off its work-list
	incomingInertChecking                               // walking one popped state's incoming block-inert transitions
	outgoingConstellationChecking                       // AvoidLrg only: saC-slice check for a large-splitter transition
	coroutineAborted                                    // exceeded the 50% threshold; its remainder is inferred, not searched
	coroutineFinished                                   // work-list drained (or nothing left to wait for)
)

func (s coroutineState) terminal() bool {
	return s == coroutineAborted || s == coroutineFinished
}

// subblockSearch is one of the three bottom-up predecessor searches
// (ReachAlw, AvoidSml, AvoidLrg). It owns a work-list of states
// already proven members whose block-inert predecessors have not yet all
// been walked.
type subblockSearch struct {
	kind  subblockKind
	state coroutineState

	work []int // proven states, predecessors not yet walked

	cur   int // state currently being expanded (incomingInertChecking)
	curIn int // index into cur's incoming-transition slice
}

func newSubblockSearch(kind subblockKind, seed []int) *subblockSearch {
	return &subblockSearch{kind: kind, state: stateChecking, work: append([]int(nil), seed...)}
}

// newBotSearch is the fourth coroutine: it starts idle,
// seeded reactively whenever another search spills a state into NewBotSt,
// and switches to a second phase (consuming the large splitter's
// transitions directly) once it has nothing left to do but AvoidLrg is
// still unfinished.
type newBotSearch struct {
	state coroutineState

	work  []int
	cur   int
	curIn int

	started    bool
	members    []int
	consumeIdx int
}

func newNewBotSearch() *newBotSearch {
	return &newBotSearch{state: stateChecking}
}

// fourWaySplitter, given a block and one or two splitters, partitions the
// block into up to four subblocks so that every resulting subblock is
// internally stable with respect to those splitters. The classification
// itself is carried out by splitCoordinator, which runs the four
// cooperating coroutines; fourWaySplitter's own job is seeding them from
// the block's bottom states and physically regrouping the result.
//
// inSmall and inLarge are reusable membership sets over the whole state
// space: inSmall marks every source of a small-splitter transition (set
// from the splitter's own members, which are in budget to walk), inLarge
// only the bottom-state sources found through their saC-slices. Whoever
// sets bits clears exactly those bits again after the split, so the sets
// are allocated once per engine rather than once per split.
type fourWaySplitter struct {
	p   *Partition
	blc *blcMaintainer
	log *logrus.Logger

	inSmall *bitset.BitSet
	inLarge *bitset.BitSet
}

func newFourWaySplitter(p *Partition, m *blcMaintainer, log *logrus.Logger) *fourWaySplitter {
	return &fourWaySplitter{
		p: p, blc: m, log: log,
		inSmall: bitset.New(uint(p.numStates())),
		inLarge: bitset.New(uint(p.numStates())),
	}
}

// split partitions block b using small (main splitter, target = the newly
// carved-off/small constellation) and/or large (co-splitter, target = the
// remaining/large constellation). Exactly one may be noBLC, selecting
// modeTauOnly or modeBottomSplit; both present selects modeStandard.
//
// oldConst/newConst should be the constellation pair being stabilized so
// that any freshly created BLC sets keep the main-after-co ordering
// invariant; pass noConst/noConst when that phase does not apply (always
// true for modeBottomSplit).
func (fs *fourWaySplitter) split(b blockID, small, large blcID, oldConst, newConst constID) splitResult {
	p := fs.p

	// The small splitter is walked in full (its size is what the enclosing
	// carve-off is charged for), so non-bottom sources are known up front;
	// the large splitter is too big for that, so only bottom states are
	// checked against it here, through their own outgoing slices.
	var smallSrcs, largeSrcs []int
	if small != noBLC {
		for _, t := range p.blc(small).members {
			s := p.trans(t).from
			smallSrcs = append(smallSrcs, s)
			fs.inSmall.Set(uint(s))
		}
	}
	if large != noBLC {
		blk := p.block(b)
		for pos := blk.beginBottom; pos < blk.endBottom; pos++ {
			s := p.statesInBlocks[pos]
			for _, t := range p.state(s).out {
				if p.trans(t).blc == large {
					largeSrcs = append(largeSrcs, s)
					fs.inLarge.Set(uint(s))
					break
				}
			}
		}
	}

	mode := modeStandard
	switch {
	case small != noBLC && large == noBLC:
		mode = modeTauOnly
	case small == noBLC && large != noBLC:
		mode = modeBottomSplit
	}

	result := fs.splitCore(b, mode, small, large, smallSrcs, oldConst, newConst)

	for _, s := range smallSrcs {
		fs.inSmall.Clear(uint(s))
	}
	for _, s := range largeSrcs {
		fs.inLarge.Clear(uint(s))
	}
	return result
}

// splitInitial implements the initial per-label refinement's split mode:
// the sole splitter is "every state with an effective-label transition",
// with no target-constellation filtering since there is only one
// constellation at this stage. The caller (firstRefinement) has already
// marked the label's sources in fs.inSmall — once per label, not once per
// block — and clears them again afterwards; srcs is that same source list,
// needed by the remainder sweep.
func (fs *fourWaySplitter) splitInitial(b blockID, srcs []int) splitResult {
	return fs.splitCore(b, modeInit, noBLC, noBLC, srcs, noConst, noConst)
}

// classify maps a bottom state's direct-hit evidence to its subblock,
// honoring which splitters were actually supplied (AvoidSml only exists when
// a small splitter was given, AvoidLrg only when a large one was).
func classify(mode splitMode, inM, inC bool) subblockKind {
	switch mode {
	case modeTauOnly, modeInit:
		if inM {
			return reachAlw
		}
		return avoidSml
	case modeBottomSplit:
		if inC {
			return reachAlw
		}
		return avoidLrg
	default: // modeStandard
		switch {
		case inM && inC:
			return reachAlw
		case inM:
			return avoidLrg
		case inC:
			return avoidSml
		default:
			// Unreachable while the block is stable w.r.t. the splitters'
			// union, which the stabilizer guarantees; grouping with
			// AvoidLrg never merges states the evidence distinguishes.
			return avoidLrg
		}
	}
}

// splitCoordinator runs the cooperative search over one block: the
// abort-largest guard, the three outcome-bin predecessor searches, and the
// NewBotSt coroutine, round-robined until three of the four are finished
// (the remaining one then gets its membership inferred, never searched).
type splitCoordinator struct {
	p *Partition

	b          blockID
	begin, end int

	small blcID // noBLC unless this split has a small splitter (main splitter)
	large blcID // noBLC unless this split has a large splitter (co-splitter)

	smallSrcs []int // sources of small-splitter transitions (marked in inSmall)
	inSmall   *bitset.BitSet
	inLarge   *bitset.BitSet

	reachAlw *subblockSearch
	avoidSml *subblockSearch // nil when no small splitter was supplied
	avoidLrg *subblockSearch // nil when no large splitter was supplied
	newBot   *newBotSearch

	group  map[int]subblockKind
	counts map[subblockKind]int

	// bottoms and nonBottoms are the classified members per kind, kept so
	// the finalisation only ever touches them, never the whole block: the
	// bottom lists are fixed at classification time (a bottom state is
	// never reclassified), the non-bottom lists are append-only and
	// filtered against group at the end (a spill moves a state to
	// NewBotSt without unlisting it).
	bottoms    [4][]int
	nonBottoms [4][]int

	// potentials tracks every state given a tentative counter, so the
	// remainder sweep and the counter cleanup iterate touched states only.
	potentials []int

	remainder    subblockKind
	hasRemainder bool
}

// splitCore is the classification-and-finalization core shared by split and
// splitInitial: it differs only in how the two splitters' source sets are
// obtained.
func (fs *fourWaySplitter) splitCore(b blockID, mode splitMode, small, large blcID, smallSrcs []int, oldConst, newConst constID) splitResult {
	p := fs.p
	blk := p.block(b)
	begin, end := blk.beginBottom, blk.end

	sc := &splitCoordinator{
		p: p, b: b, begin: begin, end: end,
		small: small, large: large,
		smallSrcs: smallSrcs, inSmall: fs.inSmall, inLarge: fs.inLarge,
		group:  make(map[int]subblockKind, blk.endBottom-begin),
		counts: make(map[subblockKind]int, 4),
	}

	for pos := begin; pos < blk.endBottom; pos++ {
		s := p.statesInBlocks[pos]
		k := classify(mode, sc.inSmall.Test(uint(s)), sc.inLarge.Test(uint(s)))
		sc.group[s] = k
		sc.counts[k]++
		sc.bottoms[k] = append(sc.bottoms[k], s)
	}

	hasSmall := mode == modeStandard || mode == modeTauOnly || mode == modeInit
	sc.reachAlw = newSubblockSearch(reachAlw, sc.bottoms[reachAlw])
	if hasSmall {
		sc.avoidSml = newSubblockSearch(avoidSml, sc.bottoms[avoidSml])
	}
	if large != noBLC {
		sc.avoidLrg = newSubblockSearch(avoidLrg, sc.bottoms[avoidLrg])
	}
	sc.newBot = newNewBotSearch()

	sc.abortLargestGuard()
	sc.run()

	for _, s := range sc.potentials {
		p.clearPotential(s)
	}

	fs.log.WithFields(logrus.Fields{
		"block":    int(b),
		"mode":     int(mode),
		"size":     end - begin,
		"reachAlw": sc.counts[reachAlw],
		"avoidSml": sc.counts[avoidSml],
		"avoidLrg": sc.counts[avoidLrg],
		"newBotSt": sc.counts[newBotSt],
	}).Debug("four-way split classified block")

	return fs.finalize(sc, oldConst, newConst)
}

// abortLargestGuard checks whether a bottom-state distribution already put
// more than half of B into one of the three outcome bins; that bin is
// aborted before any predecessor search runs for it.
func (sc *splitCoordinator) abortLargestGuard() {
	total := sc.end - sc.begin
	for _, q := range []*subblockSearch{sc.reachAlw, sc.avoidSml, sc.avoidLrg} {
		if q == nil {
			continue
		}
		if sc.counts[q.kind]*2 > total {
			q.state = coroutineAborted
			q.work = nil
		}
	}
	sc.maybeAbortNewBot()
}

// finishedCount reports how many of the four logical coroutines have run to
// completion; a mode without a small or large splitter counts its absent
// AvoidSml/AvoidLrg coroutine as trivially finished. An aborted coroutine
// does NOT count: its subblock is only safe to infer as the complement once
// the other three searches are complete.
func (sc *splitCoordinator) finishedCount() int {
	n := 0
	if sc.reachAlw.state == coroutineFinished {
		n++
	}
	if sc.avoidSml == nil || sc.avoidSml.state == coroutineFinished {
		n++
	}
	if sc.avoidLrg == nil || sc.avoidLrg.state == coroutineFinished {
		n++
	}
	if sc.newBot.state == coroutineFinished {
		n++
	}
	return n
}

// run drives the round-robin interleaving of the four coroutines until
// three of them are finished, then infers the fourth's remaining membership
// as the complement. At most one coroutine can ever be aborted (its bin
// holds > 50% of the block, so no second bin can), so the three searches
// the inference relies on always run to completion.
func (sc *splitCoordinator) run() {
	for sc.finishedCount() < 3 {
		if !sc.reachAlw.state.terminal() {
			sc.stepSearch(sc.reachAlw)
		}
		if sc.avoidSml != nil && !sc.avoidSml.state.terminal() {
			sc.stepSearch(sc.avoidSml)
		}
		if sc.avoidLrg != nil && !sc.avoidLrg.state.terminal() {
			sc.stepSearch(sc.avoidLrg)
		}
		if !sc.newBot.state.terminal() {
			sc.stepNewBot()
		}
	}
	sc.resolveRemainder()
}

// stepSearch advances one of the three outcome-bin coroutines by exactly
// one micro-step: either popping the next proven state to expand, or
// walking one of that state's incoming block-inert transitions.
func (sc *splitCoordinator) stepSearch(q *subblockSearch) {
	p := sc.p
	switch q.state {
	case stateChecking:
		if len(q.work) == 0 {
			q.state = coroutineFinished
			return
		}
		q.cur = q.work[len(q.work)-1]
		q.work = q.work[:len(q.work)-1]
		if sc.group[q.cur] != q.kind {
			// Spilled to NewBotSt after being proven; must not propagate
			// its old kind.
			return
		}
		q.curIn = 0
		q.state = incomingInertChecking
	case incomingInertChecking:
		st := p.state(q.cur)
		if q.curIn >= len(st.in) {
			q.state = stateChecking
			return
		}
		t := st.in[q.curIn]
		q.curIn++
		if !p.isBlockInert(t) {
			return
		}
		s := p.trans(t).from
		if p.state(s).block != sc.b {
			return
		}
		sc.considerPredecessor(q, s)
	}
	sc.maybeAbort(q)
}

// considerPredecessor is the per-edge rule: a block-inert predecessor s of a
// state already proven in q.kind either starts, advances, or disagrees with
// a tentative membership of its own.
func (sc *splitCoordinator) considerPredecessor(q *subblockSearch, s int) {
	p := sc.p
	if cur, ok := sc.group[s]; ok {
		// s is already finally classified (a bottom seed, or proven by an
		// earlier step): a disagreeing edge means it cannot actually stay
		// block-inert in a single subblock, so it spills.
		if cur != q.kind {
			sc.spillToNewBotSt(s)
		}
		return
	}
	st := p.state(s)
	if !p.hasPotential(s) {
		remaining := st.inertOut - 1
		p.setPotential(s, q.kind, remaining)
		sc.potentials = append(sc.potentials, s)
		if remaining <= 0 {
			sc.proveState(q, s)
		}
		return
	}
	info := st.counterInfo
	if info.kind != q.kind {
		sc.spillToNewBotSt(s)
		return
	}
	info.remaining--
	st.counter = info.remaining
	st.counterInfo = info
	if info.remaining <= 0 {
		sc.proveState(q, s)
	}
}

// proveState finalizes s as a member of q.kind. A non-bottom state all of
// whose block-inert successors avoid a splitter may still carry a
// transition of its own into that splitter; such a state becomes a new
// bottom state of the split instead, so both Avoid kinds verify the
// absence of an own splitter transition before the membership sticks
// (AvoidLrg via its saC-slice check, AvoidSml against the small splitter's
// source set).
func (sc *splitCoordinator) proveState(q *subblockSearch, s int) {
	p := sc.p
	if q.kind == avoidLrg {
		st := p.state(s)
		info := st.counterInfo
		if !info.hitSmall {
			info.hitSmall = true
			st.counterInfo = info

			prev := q.state
			q.state = outgoingConstellationChecking
			hit := sc.hasLargeSplitterTransition(s)
			q.state = prev

			if hit {
				sc.spillToNewBotSt(s)
				return
			}
		}
	}
	if q.kind == avoidSml && sc.inSmall.Test(uint(s)) {
		sc.spillToNewBotSt(s)
		return
	}
	p.clearPotential(s)
	sc.group[s] = q.kind
	sc.counts[q.kind]++
	sc.nonBottoms[q.kind] = append(sc.nonBottoms[q.kind], s)
	q.work = append(q.work, s)
}

// hasLargeSplitterTransition reports whether s has any outgoing transition
// belonging to the large (co-splitter) BLC set.
func (sc *splitCoordinator) hasLargeSplitterTransition(s int) bool {
	p := sc.p
	for _, t := range p.state(s).out {
		if p.trans(t).blc == sc.large {
			return true
		}
	}
	return false
}

// spillToNewBotSt reclassifies s into NewBotSt regardless of its prior
// status.
func (sc *splitCoordinator) spillToNewBotSt(s int) {
	p := sc.p
	if sc.group[s] == newBotSt {
		return
	}
	if old, ok := sc.group[s]; ok {
		sc.counts[old]--
	}
	p.clearPotential(s)
	sc.group[s] = newBotSt
	sc.counts[newBotSt]++
	sc.nonBottoms[newBotSt] = append(sc.nonBottoms[newBotSt], s)
	if sc.newBot.state != coroutineAborted {
		sc.newBot.work = append(sc.newBot.work, s)
	}
	sc.maybeAbortNewBot()
}

// maybeAbort re-checks, after every proof, whether the subblock just grown
// now exceeds the 50% threshold.
func (sc *splitCoordinator) maybeAbort(q *subblockSearch) {
	if q.state.terminal() {
		return
	}
	if sc.counts[q.kind]*2 > sc.end-sc.begin {
		q.state = coroutineAborted
		q.work = nil
	}
}

// maybeAbortNewBot mirrors maybeAbort for the fourth coroutine: after every
// spill, re-check whether NewBotSt itself now exceeds the 50% threshold.
// Once aborted it stops growing its own work-list and its remaining
// membership, like the other three, is left to resolveRemainder.
func (sc *splitCoordinator) maybeAbortNewBot() {
	n := sc.newBot
	if n.state.terminal() {
		return
	}
	if sc.counts[newBotSt]*2 > sc.end-sc.begin {
		n.state = coroutineAborted
		n.work = nil
	}
}

// stepNewBot advances the fourth coroutine by one micro-step: phase one
// (unconditional predecessor search) while its work-list is non-empty, else
// phase two (consuming the large splitter's transitions) while AvoidLrg is
// unfinished, else finished.
func (sc *splitCoordinator) stepNewBot() {
	n := sc.newBot
	p := sc.p
	switch n.state {
	case stateChecking:
		if len(n.work) > 0 {
			n.cur = n.work[len(n.work)-1]
			n.work = n.work[:len(n.work)-1]
			n.curIn = 0
			n.state = incomingInertChecking
			return
		}
		if sc.avoidLrg == nil || sc.avoidLrg.state == coroutineFinished {
			n.state = coroutineFinished
			return
		}
		sc.stepNewBotConsume()
	case incomingInertChecking:
		st := p.state(n.cur)
		if n.curIn >= len(st.in) {
			n.state = stateChecking
			return
		}
		t := st.in[n.curIn]
		n.curIn++
		if !p.isBlockInert(t) {
			return
		}
		s := p.trans(t).from
		if p.state(s).block != sc.b {
			return
		}
		sc.spillToNewBotSt(s)
	}
}

// stepNewBotConsume is the NewBotSt coroutine's second phase: with nothing
// else pending and AvoidLrg not yet finished, flip one more
// potential-AvoidLrg source of a large-splitter transition into NewBotSt
// directly, rather than waiting for AvoidLrg's own search to reach it.
func (sc *splitCoordinator) stepNewBotConsume() {
	n := sc.newBot
	p := sc.p
	if !n.started {
		n.started = true
		n.members = append([]int(nil), p.blc(sc.large).members...)
	}
	if n.consumeIdx >= len(n.members) {
		n.state = coroutineFinished
		return
	}
	t := n.members[n.consumeIdx]
	n.consumeIdx++
	s := p.trans(t).from
	if p.state(s).block != sc.b {
		return
	}
	if p.hasPotential(s) && p.state(s).counterInfo.kind == avoidLrg {
		sc.spillToNewBotSt(s)
	}
}

// resolveRemainder handles the exit condition where three coroutines
// finished: whichever one did not has its membership implicitly defined as
// everything left, with no further search. Three completed searches pin
// down their subblocks exactly, so the complement is correct — except that
// a state falling into the remainder may carry evidence that disqualifies
// it (a tentative membership in a different, completed kind; or its own
// transition into the splitter an Avoid remainder must avoid). Such states
// are new bottom states, and so, transitively, is any unclassified state
// with a block-inert path to one. Only touched states are visited: the
// tracked potentials, the splitters' own source lists, and the spilled
// states' incoming edges.
func (sc *splitCoordinator) resolveRemainder() {
	remainder, found := subblockKind(-1), false
	if sc.reachAlw.state != coroutineFinished {
		remainder, found = reachAlw, true
	}
	if sc.avoidSml != nil && sc.avoidSml.state != coroutineFinished {
		remainder, found = avoidSml, true
	}
	if sc.avoidLrg != nil && sc.avoidLrg.state != coroutineFinished {
		remainder, found = avoidLrg, true
	}
	if sc.newBot.state != coroutineFinished {
		remainder, found = newBotSt, true
	}
	sc.remainder, sc.hasRemainder = remainder, found
	if !found || remainder == newBotSt {
		return
	}

	p := sc.p
	var frontier []int
	spill := func(s int) {
		sc.spillToNewBotSt(s)
		frontier = append(frontier, s)
	}

	for _, s := range sc.potentials {
		if _, ok := sc.group[s]; ok {
			continue
		}
		if p.state(s).counterInfo.kind != remainder {
			spill(s)
		}
	}
	if remainder == avoidSml {
		for _, s := range sc.smallSrcs {
			if p.state(s).block != sc.b {
				continue
			}
			if _, ok := sc.group[s]; ok {
				continue
			}
			spill(s)
		}
	}
	if remainder == avoidLrg && sc.large != noBLC {
		// The consume phase flipped potential-AvoidLrg sources; with the
		// other three searches complete, every still-unclassified source
		// of a large-splitter transition is disqualified too.
		for _, t := range p.blc(sc.large).members {
			s := p.trans(t).from
			if p.state(s).block != sc.b {
				continue
			}
			if _, ok := sc.group[s]; ok {
				continue
			}
			spill(s)
		}
	}

	// Backward-propagate the disqualifications: an unclassified state with
	// a block-inert transition into a NewBotSt state straddles two
	// subblocks itself. States proven by a completed search are never
	// reached here (all their block-inert successors were verified into
	// their own kind).
	for len(frontier) > 0 {
		t := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, tr := range p.state(t).in {
			if !p.isBlockInert(tr) {
				continue
			}
			s := p.trans(tr).from
			if p.state(s).block != sc.b {
				continue
			}
			if _, ok := sc.group[s]; ok {
				continue
			}
			spill(s)
		}
	}
}

// finalize physically regroups block b's states: the keeper subblock (the
// implicit remainder when there is one, else the largest classified bin)
// stays in b and is never walked — only the other, provably small
// subblocks' members are moved, by swapping each into a region carved off
// the front of the range, so the work is proportional to the sizes of the
// non-keeper subblocks. The keeper's bottom boundary follows from counts;
// the bounded set of keeper states disturbed by the swaps is repaired
// afterwards. Block-inert out-degrees are then adjusted edge-wise from the
// moved states (and the NewBotSt states' own outgoing walks, which is what
// exposes the new bottom states), never by rescanning a whole range.
func (fs *fourWaySplitter) finalize(sc *splitCoordinator, oldConst, newConst constID) splitResult {
	p := fs.p
	b := sc.b
	blk := p.block(b)
	begin, endBottom, end := blk.beginBottom, blk.endBottom, blk.end
	hadNewBottom := blk.hasNewBottom

	order := [4]subblockKind{reachAlw, avoidSml, avoidLrg, newBotSt}

	var bots, nonBots [4][]int
	for _, k := range order {
		bots[k] = sc.bottoms[k]
		for _, s := range sc.nonBottoms[k] {
			if sc.group[s] == k {
				nonBots[k] = append(nonBots[k], s)
			}
		}
	}
	classified := func(k subblockKind) int { return len(bots[k]) + len(nonBots[k]) }

	totalClassified := 0
	for _, k := range order {
		totalClassified += classified(k)
	}
	largest := reachAlw
	for _, k := range order[1:] {
		if classified(k) > classified(largest) {
			largest = k
		}
	}
	keeper := largest
	if sc.hasRemainder && (end-begin)-totalClassified+classified(sc.remainder) > 0 {
		keeper = sc.remainder
	}

	extracted, extractedBots := 0, 0
	for _, k := range order {
		if k == keeper {
			continue
		}
		extracted += classified(k)
		extractedBots += len(bots[k])
	}

	var result splitResult
	result.ReachAlw, result.AvoidSml, result.AvoidLrg, result.NewBotSt = noBlock, noBlock, noBlock, noBlock
	result.set(keeper, b)
	if extracted == 0 {
		return result
	}

	isKeeper := func(s int) bool {
		g, ok := sc.group[s]
		return !ok || g == keeper
	}

	// Move phase: swap every non-keeper member into its kind's region at
	// the front of the range, noting which keeper states the swaps
	// displace.
	var displaced []int
	place := func(s, w int) int {
		cur := p.statePos[s]
		if cur != w {
			occ := p.statesInBlocks[w]
			p.swapStates(cur, w)
			if isKeeper(occ) {
				displaced = append(displaced, occ)
			}
		}
		return w + 1
	}
	var regions []splitRegion
	w := begin
	for _, k := range order {
		if k == keeper || classified(k) == 0 {
			continue
		}
		r0 := w
		for _, s := range bots[k] {
			w = place(s, w)
		}
		rBot := w
		for _, s := range nonBots[k] {
			w = place(s, w)
		}
		regions = append(regions, splitRegion{kind: k, r0: r0, rBot: rBot, r1: w})
	}

	// Repair phase: the keeper occupies [keeperBegin, end) with its bottom
	// boundary fixed by counts. The only keeper states that can sit in the
	// wrong half are the displaced ones and the occupants of the band its
	// bottom half gained from the old non-bottom segment; pair and swap
	// them.
	keeperBegin := begin + extracted
	keeperBot := endBottom + (extracted - extractedBots)
	seen := map[int]bool{}
	var misBot, misNB []int
	consider := func(s int) {
		if seen[s] {
			return
		}
		seen[s] = true
		pos := p.statePos[s]
		if p.isBottom(s) {
			if pos >= keeperBot {
				misBot = append(misBot, s)
			}
		} else if pos < keeperBot {
			misNB = append(misNB, s)
		}
	}
	for _, s := range displaced {
		consider(s)
	}
	lo := keeperBegin
	if endBottom > lo {
		lo = endBottom
	}
	for pos := lo; pos < keeperBot; pos++ {
		consider(p.statesInBlocks[pos])
	}
	for i := range misBot {
		p.swapStates(p.statePos[misBot[i]], p.statePos[misNB[i]])
	}

	// Materialize the new blocks; the keeper keeps b.
	newIDs := make([]blockID, len(regions))
	for i, r := range regions {
		id := p.newBlock(b, r.r0, r.r1)
		p.block(id).endBottom = r.rBot
		newIDs[i] = id
		result.set(r.kind, id)
	}
	kb := p.block(b) // p.newBlock may have reallocated p.blocks
	kb.beginBottom, kb.endBottom, kb.end = keeperBegin, keeperBot, end

	// Maintain BLC lists: every carved-out block needs its BLC membership
	// split out of the original block's sets. During the initial
	// refinement no index exists yet; buildBLCIndex derives the whole
	// grouping from scratch afterwards.
	if p.blcReady {
		for i, r := range regions {
			fs.blc.splitBlock(b, newIDs[i], r.r0, r.r1, oldConst, newConst)
		}
	}

	fs.adjustInertCounts(b, newIDs, regions)

	if hadNewBottom {
		inherit := func(id blockID) {
			nb := p.block(id)
			if !nb.hasNewBottom {
				nb.hasNewBottom = true
				p.newBottom = append(p.newBottom, id)
			}
		}
		inherit(b)
		for _, id := range newIDs {
			inherit(id)
		}
	}

	return result
}

// splitRegion is one carved-out subblock's range in states-in-blocks,
// with its bottom boundary, as laid out by finalize's move phase.
type splitRegion struct {
	kind     subblockKind
	r0, rBot int
	r1       int
}

// adjustInertCounts settles every block-inert out-degree a split changed,
// without rescanning any range: a tau edge stops being block-inert exactly
// when one endpoint was carved out of the keeper's block or the two
// endpoints were carved into different blocks, so walking the incoming
// edges of the carved-out states (plus the outgoing edges of the NewBotSt
// states, whose successors may sit anywhere) adjusts each such edge exactly
// once. A state whose count reaches zero is a new bottom state: it is
// promoted into its block's bottom prefix and the block joins the
// new-bottom work-list.
func (fs *fourWaySplitter) adjustInertCounts(b blockID, newIDs []blockID, regions []splitRegion) {
	p := fs.p

	resultBlocks := map[blockID]bool{b: true}
	for _, id := range newIDs {
		resultBlocks[id] = true
	}
	promote := func(s int) {
		xb := p.block(p.state(s).block)
		pos := p.statePos[s]
		if pos != xb.endBottom {
			p.swapStates(pos, xb.endBottom)
		}
		xb.endBottom++
		id := p.state(s).block
		if nb := p.block(id); !nb.hasNewBottom {
			nb.hasNewBottom = true
			p.newBottom = append(p.newBottom, id)
		}
	}
	inertTau := func(t int) bool {
		return p.branching && p.effectiveLabel(t) == p.view.Tau()
	}

	for _, r := range regions {
		for pos := r.r0; pos < r.r1; pos++ {
			s := p.statesInBlocks[pos]
			for _, t := range p.state(s).in {
				if !inertTau(t) {
					continue
				}
				src := p.trans(t).from
				sb := p.state(src).block
				if sb == p.state(s).block || !resultBlocks[sb] {
					continue
				}
				st := p.state(src)
				st.inertOut--
				if st.inertOut == 0 {
					promote(src)
				}
			}
		}
		if r.kind != newBotSt {
			// ReachAlw/AvoidSml/AvoidLrg members were proven with every
			// block-inert successor in their own subblock, so their own
			// out-degrees are untouched.
			continue
		}
		for pos := r.r0; pos < r.r1; pos++ {
			s := p.statesInBlocks[pos]
			for _, t := range p.state(s).out {
				if !inertTau(t) {
					continue
				}
				// Edges into carved-out blocks were already counted from
				// the target's side above; only the edges back into the
				// keeper remain.
				if p.state(p.trans(t).to).block != b {
					continue
				}
				st := p.state(s)
				st.inertOut--
				if st.inertOut == 0 {
					promote(s)
				}
			}
		}
	}
}
