// Package partition computes the coarsest branching-bisimulation (optionally
// divergence-preserving) partition of a labelled transition system, using a
// partition-refinement engine structured after Groote, Jansen, Keiren and
// Wijs's O(m log n) algorithm: a block/constellation partition store (this
// file's neighbours store.go and blc.go), a four-way splitter that charges
// all its work to the smaller output subblocks (splitter.go), and an outer
// stabilizer loop that repeatedly carves the smaller side off a non-trivial
// constellation and restabilizes (stabilizer.go, init.go).
//
// Reduce is the package's single entry point; everything else is internal
// machinery that Reduce drives.
package partition
