// Package spatializer is the control and state layer of a binaural
// spatialization effect hosted inside an audio engine that talks to its
// plugins through float-valued parameters and per-block render callbacks.
//
// A State owns the shared engine: the processing core, the listener with
// its tables, the output limiter, the readiness state machine and the
// parameter vector. Voices render one source each. Resource tables reach
// the State either directly (LoadBinary) or byte by byte through the
// parameter channel, where an Assembler rebuilds the path or blob.
//
// Control calls take the State's mutex. The render path never does: every
// mutation publishes an immutable snapshot that Voice.Process loads
// atomically, so a write is visible from the next block on.
package spatializer
