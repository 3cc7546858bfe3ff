package partition

import (
	"sort"
	"testing"

	"github.com/jaxan/branching-bisim/lts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// classesOf groups the original states 0..n-1 by their output block,
// returning each class as a sorted slice of original state ids, sorted by
// minimum element — a renumbering-independent way to compare against an
// expected partition.
func classesOf(t *testing.T, l *lts.LTS, opts Options) [][]int {
	t.Helper()
	p, rep, err := refine(l, opts, discardLogger())
	require.NoError(t, err)

	byBlock := map[blockID][]int{}
	for s := 0; s < l.NumStates; s++ {
		b := p.state(rep[s]).block
		byBlock[b] = append(byBlock[b], s)
	}
	var classes [][]int
	for _, cls := range byBlock {
		sort.Ints(cls)
		classes = append(classes, cls)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i][0] < classes[j][0] })
	return classes
}

func TestScenarioS1StrongDistinguishesTargets(t *testing.T) {
	l := &lts.LTS{
		NumStates: 3, NumLabels: 1, Tau: 0, Initial: 0,
		Transitions: []lts.Transition{{From: 0, Label: 0, To: 1}, {From: 0, Label: 0, To: 2}},
	}
	classes := classesOf(t, l, Options{Branching: false})
	assert.ElementsMatch(t, [][]int{{0}, {1, 2}}, classes)
}

func TestScenarioS2BranchingMergesInertStep(t *testing.T) {
	l := &lts.LTS{
		NumStates: 2, NumLabels: 1, Tau: 0, Initial: 0,
		Transitions: []lts.Transition{{From: 0, Label: 0, To: 1}},
	}
	classes := classesOf(t, l, Options{Branching: true})
	assert.ElementsMatch(t, [][]int{{0, 1}}, classes)
}

func TestScenarioS3DivergencePreservationSeparatesLoopingState(t *testing.T) {
	l := &lts.LTS{
		NumStates: 2, NumLabels: 1, Tau: 0, Initial: 0,
		Transitions: []lts.Transition{{From: 0, Label: 0, To: 0}},
	}
	classes := classesOf(t, l, Options{Branching: true, PreserveDivergence: true})
	assert.ElementsMatch(t, [][]int{{0}, {1}}, classes)
}

func TestScenarioS3WithoutDivergencePreservationMerges(t *testing.T) {
	l := &lts.LTS{
		NumStates: 2, NumLabels: 1, Tau: 0, Initial: 0,
		Transitions: []lts.Transition{{From: 0, Label: 0, To: 0}},
	}
	classes := classesOf(t, l, Options{Branching: true, PreserveDivergence: false})
	assert.ElementsMatch(t, [][]int{{0, 1}}, classes)
}

func TestScenarioS4BranchingCollapsesTauPrefix(t *testing.T) {
	// labels: 0=tau, 1=a
	l := &lts.LTS{
		NumStates: 4, NumLabels: 2, Tau: 0, Initial: 0,
		Transitions: []lts.Transition{
			{From: 0, Label: 0, To: 1},
			{From: 1, Label: 1, To: 2},
			{From: 0, Label: 1, To: 3},
		},
	}
	classes := classesOf(t, l, Options{Branching: true})
	assert.ElementsMatch(t, [][]int{{0, 1}, {2, 3}}, classes)
}

func TestScenarioS5StrongDistinguishesByOutgoingLabel(t *testing.T) {
	// labels: 0=a, 1=b
	l := &lts.LTS{
		NumStates: 3, NumLabels: 2, Tau: 0, Initial: 0,
		Transitions: []lts.Transition{
			{From: 0, Label: 0, To: 1},
			{From: 0, Label: 1, To: 2},
			{From: 1, Label: 0, To: 0},
			{From: 2, Label: 1, To: 0},
		},
	}
	classes := classesOf(t, l, Options{Branching: false})
	assert.ElementsMatch(t, [][]int{{0}, {1}, {2}}, classes)
}

// buildTauChain constructs S6's synthetic chain: n tau-transitions
// q0->q1->...->qn ending at a final a-transition qn->qFinal, plus a
// single-state shortcut r0->qFinal via a. Expected: 2 classes regardless
// of n — {q0..qn, r0} and {qFinal}.
func buildTauChain(n int) *lts.LTS {
	numStates := n + 3 // q0..qn, qFinal, r0
	qFinal := n + 1
	r0 := n + 2
	l := &lts.LTS{NumStates: numStates, NumLabels: 2, Tau: 0, Initial: 0}
	for i := 0; i < n; i++ {
		l.Transitions = append(l.Transitions, lts.Transition{From: i, Label: 0, To: i + 1})
	}
	l.Transitions = append(l.Transitions, lts.Transition{From: n, Label: 1, To: qFinal})
	l.Transitions = append(l.Transitions, lts.Transition{From: r0, Label: 1, To: qFinal})
	return l
}

func TestScenarioS6ChainCollapsesRegardlessOfLength(t *testing.T) {
	for _, n := range []int{2, 5, 20} {
		l := buildTauChain(n)
		classes := classesOf(t, l, Options{Branching: true})
		require.Len(t, classes, 2, "n=%d", n)
		var sizes []int
		for _, c := range classes {
			sizes = append(sizes, len(c))
		}
		sort.Ints(sizes)
		assert.Equal(t, []int{1, n + 2}, sizes, "n=%d", n)
	}
}

func TestBranchingKeepsDirectActionDistinct(t *testing.T) {
	// s0 can do a immediately, but its tau successor s1 cannot do a at
	// all, so the tau step is not inert-collapsible: s0 stays alone while
	// the two deadlocked states merge.
	l := &lts.LTS{
		NumStates: 3, NumLabels: 2, Tau: 0, Initial: 0,
		Transitions: []lts.Transition{
			{From: 0, Label: 0, To: 1},
			{From: 0, Label: 1, To: 2},
		},
	}
	classes := classesOf(t, l, Options{Branching: true})
	assert.ElementsMatch(t, [][]int{{0}, {1, 2}}, classes)
}

func TestBranchingCollapsesTauCycle(t *testing.T) {
	// s0 and s1 form a tau cycle; s2 is reachable from it via a. The
	// cycle states are branching-bisimilar to each other.
	l := &lts.LTS{
		NumStates: 3, NumLabels: 2, Tau: 0, Initial: 0,
		Transitions: []lts.Transition{
			{From: 0, Label: 0, To: 1},
			{From: 1, Label: 0, To: 0},
			{From: 1, Label: 1, To: 2},
		},
	}
	classes := classesOf(t, l, Options{Branching: true})
	assert.ElementsMatch(t, [][]int{{0, 1}, {2}}, classes)
}

func TestDivergencePreservationSeparatesTauCycleFromDeadlock(t *testing.T) {
	// A two-state tau cycle diverges; the deadlocked s2 does not. Without
	// divergence preservation all three collapse into one class.
	l := &lts.LTS{
		NumStates: 3, NumLabels: 1, Tau: 0, Initial: 0,
		Transitions: []lts.Transition{
			{From: 0, Label: 0, To: 1},
			{From: 1, Label: 0, To: 0},
		},
	}
	classes := classesOf(t, l, Options{Branching: true, PreserveDivergence: true})
	assert.ElementsMatch(t, [][]int{{0, 1}, {2}}, classes)

	merged := classesOf(t, l, Options{Branching: true})
	assert.ElementsMatch(t, [][]int{{0, 1, 2}}, merged)
}

func TestReduceRejectsMalformedInput(t *testing.T) {
	l := &lts.LTS{NumStates: 1, NumLabels: 1, Tau: 0, Initial: 5}
	_, err := Reduce(l, Options{Branching: true})
	require.Error(t, err)
}

func TestReduceRejectsDivergenceWithoutBranching(t *testing.T) {
	l := &lts.LTS{NumStates: 1, NumLabels: 1, Tau: 0, Initial: 0}
	_, err := Reduce(l, Options{Branching: false, PreserveDivergence: true})
	require.ErrorIs(t, err, ErrDivergencePreservationNeedsBranching)
}

func TestReduceOutputNeverGrows(t *testing.T) {
	l := buildTauChain(6)
	out, err := Reduce(l, Options{Branching: true})
	require.NoError(t, err)
	assert.LessOrEqual(t, out.NumStates, l.NumStates)
}

func TestReduceIdempotentOnItsOwnOutput(t *testing.T) {
	l := buildTauChain(6)
	once, err := Reduce(l, Options{Branching: true})
	require.NoError(t, err)
	twice, err := Reduce(once, Options{Branching: true})
	require.NoError(t, err)
	assert.Equal(t, once.NumStates, twice.NumStates)
	assert.Equal(t, len(once.Transitions), len(twice.Transitions))
}

func TestReduceConcatenatesStateLabels(t *testing.T) {
	l := &lts.LTS{
		NumStates: 2, NumLabels: 1, Tau: 0, Initial: 0,
		Transitions: []lts.Transition{{From: 0, Label: 0, To: 1}},
		StateLabels: []string{"idle", "done"},
	}
	out, err := Reduce(l, Options{Branching: true})
	require.NoError(t, err)
	require.Len(t, out.StateLabels, 1)
	assert.Equal(t, "idle,done", out.StateLabels[0])
}
