//go:build !bisim_debug

package partition

// checkInvariants is a no-op in release builds; see invariants_debug.go
// for the bisim_debug-tagged version that actually walks the structures.
func (p *Partition) checkInvariants(where string) {}
