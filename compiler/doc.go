// Package compiler turns Targets into resolve.Factory closures.
//
// Compiling a target for a requested type selects a builder by the target's
// kind (walking up the kind hierarchy, then trying fallback builders), checks
// the in-progress stack for cycles, builds the factory, links the
// placeholders the builder left for dependencies, inserts the conversion to
// the requested type and wraps the result in scope tracking. Finished
// factories are cached per (target, requested type); under a race the first
// stored factory wins and every caller uses it.
package compiler
