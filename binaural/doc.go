// Package binaural is the spatialization engine behind the spatializer
// control layer.
//
// A Core fixes the sample rate and the maximum block size. Tables decoded
// by package hrtf are prepared against a Core (grid resampling and kernel
// spectra) and installed into an immutable Listener. Each audio source owns
// a Source, which renders mono input to two ears using the Listener it is
// handed on every block:
//
//	HighQuality      HRIR convolution, ITD, near-field ILD
//	HighPerformance  ITD and a parametric ILD, no convolution
//	None             level only
//
// followed in every mode by distance attenuation, a far-distance low-pass
// and the optional hearing-aid directionality of each ear.
package binaural
