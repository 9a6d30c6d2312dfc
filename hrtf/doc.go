// Package hrtf defines the binary table formats consumed by the binaural
// renderer and the operations on them: decoding and encoding of HRTF and
// ILD tables, resampling an HRTF onto a regular azimuth/elevation grid, and
// synthesis of spherical-head tables for tests and tooling.
//
// All tables share a little-endian header:
//
//	magic   [4]byte  "3DTI"
//	kind    [4]byte  "HRTF", "ILDN" (near-field ILD) or "ILDP" (high-performance ILD)
//	version uint16   1
//	_       uint16
//	rate    uint32   sample rate the table was measured or designed at
//	length  uint32   IR length (HRTF) or biquad sections per ear (ILD)
//	count   uint32   number of entries
//
// Angles are in degrees. Azimuth 0 is straight ahead and grows
// anticlockwise seen from above, so 90 is the left ear. Elevation is
// positive upwards.
package hrtf
