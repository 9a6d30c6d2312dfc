// Package biquad implements second-order IIR sections and the handful of
// RBJ cookbook designs the binaural renderer needs: a distance low-pass and
// shelving sections for interaural level difference correction.
package biquad
