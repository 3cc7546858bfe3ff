package lts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWellFormed(t *testing.T) {
	l := &LTS{
		NumStates: 2,
		NumLabels: 2,
		Tau:       0,
		Initial:   0,
		Transitions: []Transition{
			{From: 0, Label: 0, To: 1},
			{From: 1, Label: 1, To: 0},
		},
	}
	assert.NoError(t, l.Validate())
}

func TestValidateRejectsOutOfRangeLabel(t *testing.T) {
	l := &LTS{
		NumStates:   2,
		NumLabels:   1,
		Tau:         0,
		Initial:     0,
		Transitions: []Transition{{From: 0, Label: 5, To: 1}},
	}
	err := l.Validate()
	require.Error(t, err)
	var verr *InvalidLTSError
	assert.ErrorAs(t, err, &verr)
}

func TestValidateRejectsBadInitial(t *testing.T) {
	l := &LTS{NumStates: 2, NumLabels: 1, Tau: 0, Initial: 5}
	assert.Error(t, l.Validate())
}

func TestViewDivergentTauSynthesizedOnlyWhenPreserving(t *testing.T) {
	l := &LTS{
		NumStates:   1,
		NumLabels:   1,
		Tau:         0,
		Initial:     0,
		Transitions: []Transition{{From: 0, Label: 0, To: 0}},
	}
	require.NoError(t, l.Validate())

	branching := NewView(l, false)
	assert.Equal(t, 1, branching.NumLabels())
	assert.Equal(t, Label(0), branching.EffectiveLabel(l.Transitions[0]))

	divergent := NewView(l, true)
	assert.Equal(t, 2, divergent.NumLabels())
	assert.Equal(t, divergent.DivergentTau(), divergent.EffectiveLabel(l.Transitions[0]))
	assert.NotEqual(t, divergent.Tau(), divergent.EffectiveLabel(l.Transitions[0]))
}

func TestViewLeavesNonLoopTauAlone(t *testing.T) {
	l := &LTS{
		NumStates:   2,
		NumLabels:   1,
		Tau:         0,
		Initial:     0,
		Transitions: []Transition{{From: 0, Label: 0, To: 1}},
	}
	v := NewView(l, true)
	assert.Equal(t, Label(0), v.EffectiveLabel(l.Transitions[0]))
	assert.True(t, v.IsTau(v.EffectiveLabel(l.Transitions[0])))
}
