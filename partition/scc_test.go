package partition

import (
	"testing"

	"github.com/jaxan/branching-bisim/lts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractTauCyclesCollapsesCycleOnly(t *testing.T) {
	// s0 <-> s1 is a tau cycle; s2 hangs off it via a visible step and
	// s3 via a cross-component tau that must survive as a transition.
	l := &lts.LTS{
		NumStates: 4, NumLabels: 2, Tau: 0, Initial: 0,
		Transitions: []lts.Transition{
			{From: 0, Label: 0, To: 1},
			{From: 1, Label: 0, To: 0},
			{From: 1, Label: 1, To: 2},
			{From: 2, Label: 0, To: 3},
		},
	}
	require.NoError(t, l.Validate())

	out, rep := contractTauCycles(lts.NewView(l, false))
	assert.Equal(t, 3, out.NumStates)
	assert.Equal(t, rep[0], rep[1])
	assert.NotEqual(t, rep[0], rep[2])
	assert.NotEqual(t, rep[2], rep[3])
	assert.Equal(t, rep[0], out.Initial)

	var labels []lts.Label
	for _, tr := range out.Transitions {
		labels = append(labels, tr.Label)
		assert.False(t, tr.Label == l.Tau && tr.From == tr.To,
			"no inert self-loop may survive contraction without divergence preservation")
	}
	assert.ElementsMatch(t, []lts.Label{1, 0}, labels)
}

func TestContractTauCyclesMarksDivergence(t *testing.T) {
	l := &lts.LTS{
		NumStates: 3, NumLabels: 1, Tau: 0, Initial: 0,
		Transitions: []lts.Transition{
			{From: 0, Label: 0, To: 1},
			{From: 1, Label: 0, To: 0},
		},
	}
	out, rep := contractTauCycles(lts.NewView(l, true))
	require.Equal(t, 2, out.NumStates)
	require.Len(t, out.Transitions, 1)
	loop := out.Transitions[0]
	assert.Equal(t, rep[0], loop.From)
	assert.Equal(t, loop.From, loop.To)
	assert.Equal(t, l.Tau, loop.Label)

	// The contracted view then reads the marker back as divergent tau.
	v := lts.NewView(out, true)
	assert.Equal(t, v.DivergentTau(), v.EffectiveLabel(loop))
}

func TestContractTauCyclesKeepsDivergentSelfLoop(t *testing.T) {
	// A lone tau self-loop is not an inert edge under divergence
	// preservation; it must pass through contraction unchanged.
	l := &lts.LTS{
		NumStates: 1, NumLabels: 1, Tau: 0, Initial: 0,
		Transitions: []lts.Transition{{From: 0, Label: 0, To: 0}},
	}
	out, _ := contractTauCycles(lts.NewView(l, true))
	assert.Equal(t, 1, out.NumStates)
	require.Len(t, out.Transitions, 1)
	assert.Equal(t, lts.Transition{From: 0, Label: 0, To: 0}, out.Transitions[0])
}

func TestTarjanComponentsChainAndCycle(t *testing.T) {
	// 0 -> 1 -> 2 -> 1 (cycle {1,2}), 3 isolated.
	succ := [][]int{{1}, {2}, {1}, nil}
	comp, n := tarjanComponents(4, succ)
	assert.Equal(t, 3, n)
	assert.Equal(t, comp[1], comp[2])
	assert.NotEqual(t, comp[0], comp[1])
	assert.NotEqual(t, comp[0], comp[3])
}
