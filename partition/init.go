package partition

import (
	"io"
	"strings"

	"github.com/jaxan/branching-bisim/lts"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Options configures Reduce. Configuration is a plain struct passed by the
// caller rather than loaded from a file or environment: there is no daemon
// or server here, so a config-loading layer would have nothing to load.
type Options struct {
	// Branching selects branching bisimulation (default semantics); false
	// selects strong bisimulation, which this engine computes by simply
	// never treating a tau transition as block-/constellation-inert, so
	// the same stabilizer degenerates into an ordinary (label,
	// target-block) signature refinement.
	Branching bool

	// PreserveDivergence requires Branching. When true, an infinite
	// tau-cycle a state can stay in forever is preserved as a
	// distinguishing fact rather than collapsed away.
	PreserveDivergence bool

	// Logger receives structured progress messages (constellations
	// processed, splits performed, new-bottom-state rounds). A nil
	// Logger defaults to a discard logger so Reduce stays silent and
	// embeddable by default.
	Logger *logrus.Logger
}

// ErrDivergencePreservationNeedsBranching is returned when Options asks
// for divergence preservation without branching bisimulation; divergence
// preservation is only meaningful relative to tau-inertness.
var ErrDivergencePreservationNeedsBranching = errors.New("partition: PreserveDivergence requires Branching")

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func effectiveLogger(log *logrus.Logger) *logrus.Logger {
	if log == nil {
		return discardLogger()
	}
	return log
}

// Reduce computes the coarsest branching-bisimulation (optionally
// divergence-preserving) quotient of l and returns it as a new LTS; l
// itself is left untouched.
func Reduce(l *lts.LTS, opts Options) (*lts.LTS, error) {
	if opts.PreserveDivergence && !opts.Branching {
		return nil, ErrDivergencePreservationNeedsBranching
	}
	if err := l.Validate(); err != nil {
		return nil, errors.Wrap(err, "partition: Reduce")
	}

	log := effectiveLogger(opts.Logger)
	p, rep, err := refine(l, opts, log)
	if err != nil {
		return nil, errors.Wrap(err, "partition: Reduce")
	}

	out := p.emitQuotient(l, rep)
	log.WithFields(logrus.Fields{
		"statesIn":  l.NumStates,
		"statesOut": out.NumStates,
	}).Info("reduction complete")
	return out, nil
}

// refine runs the complete refinement pipeline on l and returns the final
// Partition together with the representative map rep: the partition's
// state space is l's with every cycle of inert tau transitions collapsed
// to one state (the refinement machinery requires the block-inert tau
// graph to be acyclic so that every block has a bottom state), and rep
// takes an original state id to its id in that space.
func refine(l *lts.LTS, opts Options, log *logrus.Logger) (*Partition, []int, error) {
	preserveDivergence := opts.PreserveDivergence && opts.Branching

	work := l
	rep := make([]int, l.NumStates)
	for i := range rep {
		rep[i] = i
	}
	if opts.Branching {
		work, rep = contractTauCycles(lts.NewView(l, preserveDivergence))
		log.WithFields(logrus.Fields{
			"statesIn":  l.NumStates,
			"statesOut": work.NumStates,
		}).Debug("contracted inert tau cycles")
	}

	view := lts.NewView(work, preserveDivergence)
	p, err := build(view, opts.Branching)
	if err != nil {
		return nil, nil, err
	}

	m := newBLCMaintainer(p, log)
	fs := newFourWaySplitter(p, m, log)

	p.firstRefinement(fs)
	m.buildBLCIndex()

	st := newStabilizer(p, m, fs, log)
	log.WithField("states", view.NumStates()).Info("starting stabilization")
	if err := st.run(); err != nil {
		return nil, nil, err
	}
	return p, rep, nil
}

// build constructs the initial Partition: one block, one constellation,
// states-in-blocks ordered with bottom states first, per-state
// outgoing/incoming transition lists populated.
func build(view *lts.View, branching bool) (*Partition, error) {
	n := view.NumStates()
	p := &Partition{view: view, branching: branching}
	p.carveOld, p.carveNew = noConst, noConst
	p.states = make([]stateInfo, n)
	p.statesInBlocks = make([]int, n)
	p.statePos = make([]int, n)

	trs := view.Transitions()
	p.transitions = make([]transInfo, len(trs))
	outOf := make([][]int, n)
	inOf := make([][]int, n)
	for i, t := range trs {
		p.transitions[i] = transInfo{from: t.From, to: t.To, label: t.Label, blc: noBLC, blcPos: -1}
		outOf[t.From] = append(outOf[t.From], i)
		inOf[t.To] = append(inOf[t.To], i)
	}

	for s := 0; s < n; s++ {
		p.states[s].out = outOf[s]
		p.states[s].in = inOf[s]
		p.states[s].counter = counterUndefined

		count := 0
		if branching {
			for _, t := range outOf[s] {
				if p.effectiveLabel(t) == view.Tau() {
					count++
				}
			}
			if count > maxInertFanout {
				return nil, &StateFanoutTooLargeError{State: s, Count: count, Limit: maxInertFanout}
			}
		}
		p.states[s].inertOut = count
	}

	pos := 0
	for s := 0; s < n; s++ {
		if p.states[s].inertOut == 0 {
			p.statesInBlocks[pos] = s
			p.states[s].pos = pos
			p.statePos[s] = pos
			pos++
		}
	}
	boundary := pos
	for s := 0; s < n; s++ {
		if p.states[s].inertOut != 0 {
			p.statesInBlocks[pos] = s
			p.states[s].pos = pos
			p.statePos[s] = pos
			pos++
		}
	}

	p.blocks = []blockRec{{beginBottom: 0, endBottom: boundary, end: n, constellation: 0}}
	p.consts = []constRec{{begin: 0, end: n, numBlocks: 1}}
	return p, nil
}

// firstRefinement, for each label, splits every current block (including
// ones the same label's pass has already produced) by reachability of a
// transition carrying that label, with no target-constellation filtering
// since only one constellation exists yet.
//
// Under branching semantics the real tau label is skipped here: with a
// single constellation, every tau transition is trivially constellation-
// inert, so splitting on raw tau-successor existence would wrongly
// distinguish states a tau step apart instead of leaving that to the
// inert-predecessor propagation the stabilizer's splits perform later.
// The synthetic divergent-tau label (distinct from real tau) is not
// skipped: it is exactly the signal that must separate a diverging state
// from a non-diverging one. Strong bisimulation (branching == false)
// skips nothing, since no label is inert there.
//
// The "potential ReachAlw" seed of every per-label split is precomputed by
// bucketing all transitions by effective label once, then marking one
// label's sources in the splitter's shared membership set for the duration
// of that label's pass over the block list.
func (p *Partition) firstRefinement(fs *fourWaySplitter) {
	srcs := make([][]int, p.view.NumLabels())
	for t := range p.transitions {
		l := p.effectiveLabel(t)
		srcs[l] = append(srcs[l], p.trans(t).from)
	}

	for label := 0; label < p.view.NumLabels(); label++ {
		if p.branching && lts.Label(label) == p.view.Tau() {
			continue
		}
		for _, s := range srcs[label] {
			fs.inSmall.Set(uint(s))
		}
		for bi := 0; bi < len(p.blocks); bi++ {
			fs.splitInitial(blockID(bi), srcs[label])
		}
		for _, s := range srcs[label] {
			fs.inSmall.Clear(uint(s))
		}
	}
}

// buildBLCIndex, after the first
// refinement, groups the transition array by (source block, effective
// label, target constellation) and attach one stable BLC set per group to
// its source block.
func (m *blcMaintainer) buildBLCIndex() {
	p := m.p

	type key struct {
		block  blockID
		label  lts.Label
		target constID
	}
	order := make([]key, 0)
	groups := make(map[key][]int)
	for t := range p.transitions {
		ti := p.trans(t)
		k := key{p.state(ti.from).block, p.effectiveLabel(t), p.targetConstellation(t)}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], t)
	}

	for _, k := range order {
		ts := groups[k]
		id := m.createBLC(k.block, k.label, k.target, true, noConst)
		bs := p.blc(id)
		bs.members = append(bs.members, ts...)
		for i, t := range bs.members {
			p.trans(t).blc = id
			p.trans(t).blcPos = i
		}
	}
	p.blcReady = true
}

// emitQuotient builds the output LTS: one quotient state per block, one
// transition per surviving BLC set (skipping a constellation-inert tau
// self-loop), state labels concatenated per equivalence class. orig is the
// caller's un-contracted LTS and rep the representative map returned by
// refine; both are needed because an equivalence class of the output is a
// class of original states, not of contracted ones.
func (p *Partition) emitQuotient(orig *lts.LTS, rep []int) *lts.LTS {
	n := len(p.blocks)

	constToBlock := make(map[constID]blockID, n)
	for bi := range p.blocks {
		b := blockID(bi)
		constToBlock[p.block(b).constellation] = b
	}

	var transitions []lts.Transition
	for bi := range p.blocks {
		b := blockID(bi)
		for _, id := range p.block(b).blcList {
			bs := p.blc(id)
			if bs.deleted || len(bs.members) == 0 {
				continue
			}
			target := constToBlock[bs.target]
			if p.branching && bs.label == p.view.Tau() && target == b {
				continue // constellation-inert self-loop: collapses away
			}
			label := bs.label
			if p.view.PreservesDivergence() && label == p.view.DivergentTau() {
				label = p.view.Tau()
			}
			transitions = append(transitions, lts.Transition{From: int(b), Label: label, To: int(target)})
		}
	}

	return &lts.LTS{
		NumStates:   n,
		NumLabels:   orig.NumLabels,
		Tau:         orig.Tau,
		Initial:     int(p.state(rep[orig.Initial]).block),
		Transitions: transitions,
		StateLabels: p.quotientStateLabels(orig, rep, n),
	}
}

// quotientStateLabels concatenates the payload labels of every state
// within each block's equivalence class, in original state-id order.
func (p *Partition) quotientStateLabels(orig *lts.LTS, rep []int, n int) []string {
	if len(orig.StateLabels) == 0 {
		return nil
	}
	parts := make([][]string, n)
	for s := 0; s < orig.NumStates; s++ {
		b := int(p.state(rep[s]).block)
		if lbl := orig.StateLabels[s]; lbl != "" {
			parts[b] = append(parts[b], lbl)
		}
	}
	labels := make([]string, n)
	for i, ps := range parts {
		labels[i] = strings.Join(ps, ",")
	}
	return labels
}
