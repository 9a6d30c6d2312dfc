package binaural

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/cwbudde/algo-binaural/hrtf"
)

var (
	axisForward = r3.Vec{X: 1}
	axisUp      = r3.Vec{Z: 1}
)

// Transform is a position with an orientation given by forward and up
// vectors. Coordinates follow the x-forward, y-left, z-up convention.
type Transform struct {
	Position r3.Vec
	Forward  r3.Vec
	Up       r3.Vec
}

// Identity returns a transform at the origin facing +x with +z up.
func Identity() Transform {
	return Transform{Forward: axisForward, Up: axisUp}
}

// Pose is where a source sits relative to the listener's head, in host
// units.
type Pose struct {
	Listener Transform
	Source   r3.Vec
}

// Geometry is a source direction and distance in the listener's frame.
type Geometry struct {
	Azimuth   float64 // degrees in [0, 360), 90 is left
	Elevation float64 // degrees, positive up
	Distance  float64 // meters
}

// Relative expresses the source of p in the listener frame. Host units
// are converted to meters by scaleFactor.
func Relative(p Pose, scaleFactor float64) Geometry {
	f, u := basis(p.Listener.Forward, p.Listener.Up)
	left := r3.Cross(u, f)

	d := r3.Sub(p.Source, p.Listener.Position)
	local := r3.Vec{X: r3.Dot(d, f), Y: r3.Dot(d, left), Z: r3.Dot(d, u)}

	az, el := hrtf.Angles(local)
	return Geometry{
		Azimuth:   az,
		Elevation: el,
		Distance:  r3.Norm(d) * scaleFactor,
	}
}

// basis returns an orthonormal forward/up pair, falling back to the
// default axes for degenerate input.
func basis(forward, up r3.Vec) (r3.Vec, r3.Vec) {
	f := axisForward
	if n := r3.Norm(forward); n > 0 && !math.IsNaN(n) && !math.IsInf(n, 0) {
		f = r3.Scale(1/n, forward)
	}

	u := r3.Sub(up, r3.Scale(r3.Dot(up, f), f))
	if n := r3.Norm(u); n > 1e-12 && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return f, r3.Scale(1/n, u)
	}

	u = r3.Sub(axisUp, r3.Scale(r3.Dot(axisUp, f), f))
	if n := r3.Norm(u); n > 1e-12 {
		return f, r3.Scale(1/n, u)
	}
	return f, r3.Vec{Y: 1}
}
