package pointcloud

import (
	"errors"
	"math"
)

// ErrEmptyInput is returned when bounds are requested for zero points.
var ErrEmptyInput = errors.New("empty input: bounds need at least one point")

// ComputeBounds reduces positions to min/max/center/size in one pass.
// Non-finite input is not filtered: a NaN coordinate yields NaN bounds on
// that axis.
func ComputeBounds(positions []float32) (Bounds, error) {
	if len(positions) < 3 {
		return Bounds{}, ErrEmptyInput
	}

	minV := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	maxV := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	n := len(positions) / 3
	for i := 0; i < n; i++ {
		for axis := 0; axis < 3; axis++ {
			v := float64(positions[3*i+axis])
			minV[axis] = math.Min(minV[axis], v)
			maxV[axis] = math.Max(maxV[axis], v)
		}
	}

	var b Bounds
	for axis := 0; axis < 3; axis++ {
		b.Min[axis] = float32(minV[axis])
		b.Max[axis] = float32(maxV[axis])
		b.Center[axis] = float32((minV[axis] + maxV[axis]) / 2)
		b.Size[axis] = float32(maxV[axis] - minV[axis])
	}
	return b, nil
}
