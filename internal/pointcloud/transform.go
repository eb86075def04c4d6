package pointcloud

import "gonum.org/v1/gonum/spatial/r3"

// The up-axis correction is two fixed axis permutations with sign flips:
// Z-up to Y-up, (x,y,z) -> (x, -z, y), then -90° about the new Z axis,
// (x,y,z) -> (y, -x, z). Net effect: (x,y,z) -> (-z, -x, y).
//
// Components are only moved and negated, never multiplied, so a NaN or
// Inf stays on its own axis.

// NormalizePoint applies the fixed up-axis correction to one point.
func NormalizePoint(v r3.Vec) r3.Vec {
	return r3.Vec{X: -v.Z, Y: -v.X, Z: v.Y}
}

// DenormalizePoint is the exact inverse of NormalizePoint.
func DenormalizePoint(v r3.Vec) r3.Vec {
	return r3.Vec{X: -v.Y, Y: v.Z, Z: -v.X}
}

// Normalize returns a new position buffer with NormalizePoint applied to
// every XYZ triple. The input is not modified.
func Normalize(positions []float32) []float32 {
	out := make([]float32, len(positions))
	n := len(positions) / 3
	for i := 0; i < n; i++ {
		x, y, z := positions[3*i], positions[3*i+1], positions[3*i+2]
		out[3*i], out[3*i+1], out[3*i+2] = -z, -x, y
	}
	copy(out[3*n:], positions[3*n:])
	return out
}

// Denormalize undoes Normalize.
func Denormalize(positions []float32) []float32 {
	out := make([]float32, len(positions))
	n := len(positions) / 3
	for i := 0; i < n; i++ {
		a, b, c := positions[3*i], positions[3*i+1], positions[3*i+2]
		out[3*i], out[3*i+1], out[3*i+2] = -b, c, -a
	}
	copy(out[3*n:], positions[3*n:])
	return out
}
