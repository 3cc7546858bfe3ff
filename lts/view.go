package lts

// View wraps an LTS together with the one piece of configuration that
// changes what "tau" means for refinement purposes: whether divergence
// (an infinite tau path that never leaves the class) must be preserved.
//
// When DivergencePreserving, a tau self-loop (from == to, label == Tau) is
// treated as carrying a synthetic "divergent tau" label instead of Tau
// itself: it is still invisible in the sense that it never distinguishes
// a state from its branching-bisimilar partners, but it must not be
// collapsed away the way an ordinary block-inert tau is, since its
// presence or absence is exactly the fact divergence-preservation must
// keep distinguishable.
//
// The synthetic label is appended past the real alphabet, so
// View.NumLabels() is one more than the underlying LTS's when the
// synthetic label is ever actually used, and equal otherwise.
type View struct {
	lts          *LTS
	diverging    bool
	divergentTau Label
	usesSynth    bool
}

// NewView constructs a view of l. preserveDivergence selects whether tau
// self-loops get the synthetic divergent-tau label.
func NewView(l *LTS, preserveDivergence bool) *View {
	v := &View{lts: l, diverging: preserveDivergence}
	if preserveDivergence {
		for _, t := range l.Transitions {
			if t.From == t.To && t.Label == l.Tau {
				v.usesSynth = true
				break
			}
		}
	}
	v.divergentTau = Label(l.NumLabels)
	return v
}

// NumStates returns the number of states in the underlying LTS.
func (v *View) NumStates() int { return v.lts.NumStates }

// NumLabels returns the size of the effective alphabet, including the
// synthetic divergent-tau label when it is in use.
func (v *View) NumLabels() int {
	if v.usesSynth {
		return v.lts.NumLabels + 1
	}
	return v.lts.NumLabels
}

// Tau returns the real invisible label.
func (v *View) Tau() Label { return v.lts.Tau }

// DivergentTau returns the synthetic label assigned to tau self-loops when
// divergence preservation is active; it is never equal to Tau().
func (v *View) DivergentTau() Label { return v.divergentTau }

// PreservesDivergence reports whether this view was built to preserve
// divergence.
func (v *View) PreservesDivergence() bool { return v.diverging }

// IsTau reports whether lbl is the real invisible label (never true for
// the synthetic divergent-tau label, even though that label is also
// invisible to an outside observer — see EffectiveLabel).
func (v *View) IsTau(lbl Label) bool { return v.lts.IsTau(lbl) }

// EffectiveLabel returns the label a transition carries for refinement
// purposes: Tau, DivergentTau for a preserved-divergence self-loop, or the
// transition's own visible label otherwise.
func (v *View) EffectiveLabel(t Transition) Label {
	if v.diverging && t.From == t.To && t.Label == v.lts.Tau {
		return v.divergentTau
	}
	return t.Label
}

// Transitions returns the underlying LTS's raw transitions.
func (v *View) Transitions() []Transition { return v.lts.Transitions }

// Initial returns the underlying LTS's initial state.
func (v *View) Initial() int { return v.lts.Initial }

// StateLabel returns the payload label of state s, or "" if the LTS
// carries no state labels.
func (v *View) StateLabel(s int) string {
	if len(v.lts.StateLabels) == 0 {
		return ""
	}
	return v.lts.StateLabels[s]
}

// Underlying returns the wrapped LTS.
func (v *View) Underlying() *LTS { return v.lts }
