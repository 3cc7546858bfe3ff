package partition

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/jaxan/branching-bisim/lts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomLTS generates a small LTS with numStates states and numLabels
// labels (label 0 is always tau), with a random sprinkling of
// transitions including occasional tau self-loops (to exercise
// divergence).
func randomLTS(r *rand.Rand, numStates, numLabels, numTransitions int) *lts.LTS {
	l := &lts.LTS{NumStates: numStates, NumLabels: numLabels, Tau: 0, Initial: 0}
	for i := 0; i < numTransitions; i++ {
		from := r.Intn(numStates)
		label := r.Intn(numLabels)
		to := r.Intn(numStates)
		l.Transitions = append(l.Transitions, lts.Transition{From: from, Label: lts.Label(label), To: to})
	}
	return l
}

// naivePartition computes branching bisimulation (or, if !branching,
// strong bisimulation) the textbook way: repeated signature refinement
// with no index structures, splitter queues, or coroutines — an
// independent O(n·m)-per-round reference against which the engine's
// output is cross-checked.
func naivePartition(l *lts.LTS, branching, preserveDivergence bool) []int {
	n := l.NumStates
	class := make([]int, n)

	out := make([][]lts.Transition, n)
	for _, t := range l.Transitions {
		out[t.From] = append(out[t.From], t)
	}

	for {
		reach := make([][]int, n) // tau-closure staying within the state's own class
		if branching {
			for s := 0; s < n; s++ {
				seen := map[int]bool{s: true}
				work := []int{s}
				reach[s] = []int{s}
				for len(work) > 0 {
					u := work[len(work)-1]
					work = work[:len(work)-1]
					for _, t := range out[u] {
						if t.Label != l.Tau || class[t.To] != class[s] || seen[t.To] {
							continue
						}
						seen[t.To] = true
						reach[s] = append(reach[s], t.To)
						work = append(work, t.To)
					}
				}
			}
		} else {
			for s := 0; s < n; s++ {
				reach[s] = []int{s}
			}
		}

		type sigKey = struct {
			label lts.Label
			class int
		}
		sigs := make([]string, n)
		for s := 0; s < n; s++ {
			seen := map[sigKey]bool{}
			var keys []sigKey
			for _, u := range reach[s] {
				for _, t := range out[u] {
					if branching && t.Label == l.Tau && class[t.To] == class[s] {
						continue // consumed by the closure itself
					}
					k := sigKey{t.Label, class[t.To]}
					if !seen[k] {
						seen[k] = true
						keys = append(keys, k)
					}
				}
			}
			sort.Slice(keys, func(i, j int) bool {
				if keys[i].label != keys[j].label {
					return keys[i].label < keys[j].label
				}
				return keys[i].class < keys[j].class
			})
			diverges := false
			if preserveDivergence && branching {
				diverges = hasCycle(reach[s], out, l.Tau, class)
			}
			sigs[s] = encodeSig(keys, diverges)
		}

		newClass := renumber(sigs)
		if sameClassing(class, newClass) {
			return class
		}
		class = newClass
	}
}

func encodeSig(keys []struct {
	label lts.Label
	class int
}, diverges bool) string {
	s := ""
	if diverges {
		s = "D;"
	}
	for _, k := range keys {
		s += itoa(int(k.label)) + ":" + itoa(k.class) + ";"
	}
	return s
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf []byte
	for v > 0 {
		buf = append([]byte{byte('0' + v%10)}, buf...)
		v /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

// hasCycle reports whether, starting from reach[0]'s owner state, the
// tau-same-class subgraph induced by reach contains a cycle (a reachable
// infinite tau path that never leaves the class).
func hasCycle(reach []int, out [][]lts.Transition, tau lts.Label, class []int) bool {
	inReach := map[int]bool{}
	for _, u := range reach {
		inReach[u] = true
	}
	if len(reach) == 0 {
		return false
	}
	owner := class[reach[0]]
	color := map[int]int{} // 0=unvisited, 1=on stack, 2=done
	var visit func(int) bool
	visit = func(u int) bool {
		color[u] = 1
		for _, t := range out[u] {
			if t.Label != tau || class[t.To] != owner || !inReach[t.To] {
				continue
			}
			switch color[t.To] {
			case 1:
				return true
			case 0:
				if visit(t.To) {
					return true
				}
			}
		}
		color[u] = 2
		return false
	}
	for _, u := range reach {
		if color[u] == 0 && visit(u) {
			return true
		}
	}
	return false
}

func renumber(sigs []string) []int {
	ids := map[string]int{}
	out := make([]int, len(sigs))
	for i, s := range sigs {
		id, ok := ids[s]
		if !ok {
			id = len(ids)
			ids[s] = id
		}
		out[i] = id
	}
	return out
}

func sameClassing(a, b []int) bool {
	// Two classings are the same partition iff they induce the same
	// equivalence relation, regardless of numeric ids.
	n := len(a)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if (a[i] == a[j]) != (b[i] == b[j]) {
				return false
			}
		}
	}
	return true
}

func classesToPairRelation(classes [][]int, n int) [][]bool {
	rel := make([][]bool, n)
	for i := range rel {
		rel[i] = make([]bool, n)
	}
	for _, cls := range classes {
		for _, i := range cls {
			for _, j := range cls {
				rel[i][j] = true
			}
		}
	}
	return rel
}

func naiveToPairRelation(class []int, n int) [][]bool {
	rel := make([][]bool, n)
	for i := range rel {
		rel[i] = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rel[i][j] = class[i] == class[j]
		}
	}
	return rel
}

func TestPropertyAgreesWithNaiveChecker(t *testing.T) {
	configs := []struct {
		branching, preserveDivergence bool
	}{
		{true, false},
		{true, true},
		{false, false},
	}

	for seed := int64(0); seed < 60; seed++ {
		r := rand.New(rand.NewSource(seed))
		numStates := 2 + r.Intn(5)
		numLabels := 2 + r.Intn(2)
		numTransitions := r.Intn(numStates * 3)
		l := randomLTS(r, numStates, numLabels, numTransitions)

		for _, cfg := range configs {
			classes := classesOf(t, l, Options{Branching: cfg.branching, PreserveDivergence: cfg.preserveDivergence})
			fast := classesToPairRelation(classes, numStates)

			naive := naivePartition(l, cfg.branching, cfg.preserveDivergence)
			slow := naiveToPairRelation(naive, numStates)

			for i := 0; i < numStates; i++ {
				assert.Equal(t, slow[i], fast[i],
					"seed=%d branching=%v preserveDivergence=%v state=%d: fast/naive disagree", seed, cfg.branching, cfg.preserveDivergence, i)
			}
		}
	}
}

func TestRandomLTSReductionNeverGrows(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		numStates := 2 + r.Intn(6)
		l := randomLTS(r, numStates, 3, r.Intn(numStates*3))
		out, err := Reduce(l, Options{Branching: true})
		require.NoError(t, err)
		assert.LessOrEqual(t, out.NumStates, l.NumStates)
	}
}
