// Package dynamics provides the soft-knee compressor gain computer and the
// stereo-linked output limiter used after binaural rendering.
//
// Gains are computed in the log2 domain with a quadratic knee. The limiter
// links both ears to a single detector so the stereo image does not shift
// under gain reduction.
package dynamics
