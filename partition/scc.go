package partition

import "github.com/jaxan/branching-bisim/lts"

// contractTauCycles collapses every strongly connected component of the
// inert-tau graph of view's LTS into a single state and returns the
// contracted LTS together with the map from original state ids to
// contracted ones. All states on such a cycle are branching-bisimilar, so
// the collapse never merges states the refinement would keep apart; what
// it buys is an acyclic block-inert tau relation, which the partition
// machinery depends on (every block must contain a bottom state, and the
// splitter's backward counter propagation must come to rest).
//
// Under divergence preservation a tau self-loop already carries the
// synthetic divergent-tau label and is therefore not an edge of the inert
// graph; it survives contraction as a tau self-loop on the component's
// state. A multi-state component is itself a divergence, so it receives
// the same marking: one tau self-loop on the contracted state.
func contractTauCycles(view *lts.View) (*lts.LTS, []int) {
	l := view.Underlying()
	n := l.NumStates

	succ := make([][]int, n)
	for _, t := range l.Transitions {
		if view.EffectiveLabel(t) == view.Tau() {
			succ[t.From] = append(succ[t.From], t.To)
		}
	}

	comp, numComp := tarjanComponents(n, succ)

	size := make([]int, numComp)
	for _, c := range comp {
		size[c]++
	}

	out := &lts.LTS{
		NumStates: numComp,
		NumLabels: l.NumLabels,
		Tau:       l.Tau,
		Initial:   comp[l.Initial],
	}
	seen := make(map[lts.Transition]bool, len(l.Transitions))
	add := func(t lts.Transition) {
		if !seen[t] {
			seen[t] = true
			out.Transitions = append(out.Transitions, t)
		}
	}
	for _, t := range l.Transitions {
		from, to := comp[t.From], comp[t.To]
		if from == to && view.EffectiveLabel(t) == view.Tau() {
			continue // collapsed inert step
		}
		add(lts.Transition{From: from, Label: t.Label, To: to})
	}
	if view.PreservesDivergence() {
		for c := 0; c < numComp; c++ {
			if size[c] >= 2 {
				add(lts.Transition{From: c, Label: l.Tau, To: c})
			}
		}
	}
	return out, comp
}

// tarjanComponents computes strongly connected components of the graph on
// 0..n-1 given by succ, iteratively (an inert tau chain can be as long as
// the state space, so recursion depth cannot be trusted to the goroutine
// stack). Components are numbered densely in reverse topological order.
func tarjanComponents(n int, succ [][]int) ([]int, int) {
	const unvisited = -1

	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	comp := make([]int, n)
	for i := range index {
		index[i] = unvisited
		comp[i] = unvisited
	}

	var stack []int
	numComp := 0
	next := 0

	type frame struct{ v, i int }
	for root := 0; root < n; root++ {
		if index[root] != unvisited {
			continue
		}
		index[root], low[root] = next, next
		next++
		stack = append(stack, root)
		onStack[root] = true
		frames := []frame{{v: root}}
		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			if f.i < len(succ[f.v]) {
				w := succ[f.v][f.i]
				f.i++
				if index[w] == unvisited {
					index[w], low[w] = next, next
					next++
					stack = append(stack, w)
					onStack[w] = true
					frames = append(frames, frame{v: w})
				} else if onStack[w] && index[w] < low[f.v] {
					low[f.v] = index[w]
				}
				continue
			}
			v := f.v
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := &frames[len(frames)-1]
				if low[v] < low[parent.v] {
					low[parent.v] = low[v]
				}
			}
			if low[v] == index[v] {
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp[w] = numComp
					if w == v {
						break
					}
				}
				numComp++
			}
		}
	}
	return comp, numComp
}
