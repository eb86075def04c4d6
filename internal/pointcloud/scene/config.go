// Package scene adapts decoded point clouds to a 3D renderer.
//
// Scene owns the pivot, orientation and camera state machine; the drawing
// itself belongs to a Backend. Each load produces a new geometry handle
// and the previous handle is released explicitly.
package scene

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// CoordinateSystem is the up-axis convention of the displayed data.
type CoordinateSystem string

const (
	YUp CoordinateSystem = "y_up"
	ZUp CoordinateSystem = "z_up"
)

// RenderConfig is an immutable snapshot of display parameters. Scene only
// reads it; callers send a new value to change it.
type RenderConfig struct {
	PointSize        float32
	PointColor       string
	BackgroundColor  string
	CoordinateSystem CoordinateSystem

	// Rotation angles in degrees, applied X then Y then Z.
	RotationX float64
	RotationY float64
	RotationZ float64

	AutoRotate      bool
	AutoRotateSpeed float64 // degrees per second about the up axis

	CameraFOV float64 // vertical field of view, degrees
}

// DefaultRenderConfig returns the display defaults.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		PointSize:        0.05,
		PointColor:       "#4fc3f7",
		BackgroundColor:  "#111111",
		CoordinateSystem: YUp,
		AutoRotateSpeed:  30,
		CameraFOV:        50,
	}
}

// Validate checks ranges and enums.
func (c RenderConfig) Validate() error {
	if c.PointSize <= 0 {
		return fmt.Errorf("point size must be positive, got %g", c.PointSize)
	}
	if c.CoordinateSystem != YUp && c.CoordinateSystem != ZUp {
		return fmt.Errorf("unknown coordinate system %q", c.CoordinateSystem)
	}
	if c.CameraFOV <= 0 || c.CameraFOV >= 180 {
		return fmt.Errorf("camera fov must be in (0, 180), got %g", c.CameraFOV)
	}
	for _, a := range []float64{c.RotationX, c.RotationY, c.RotationZ, c.AutoRotateSpeed} {
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return fmt.Errorf("rotation values must be finite")
		}
	}
	return nil
}

func (c RenderConfig) sameOrientation(o RenderConfig) bool {
	return c.RotationX == o.RotationX && c.RotationY == o.RotationY && c.RotationZ == o.RotationZ &&
		c.CoordinateSystem == o.CoordinateSystem
}

func (c RenderConfig) sameStyle(o RenderConfig) bool {
	return c.PointSize == o.PointSize && c.PointColor == o.PointColor && c.BackgroundColor == o.BackgroundColor
}

var (
	axisX = r3.Vec{X: 1}
	axisY = r3.Vec{Y: 1}
	axisZ = r3.Vec{Z: 1}

	identity = r3.Rotation(quat.Number{Real: 1})
)

func degToRad(d float64) float64 { return d * math.Pi / 180.0 }

// then returns the rotation that applies a first and b second.
func then(a, b r3.Rotation) r3.Rotation {
	return r3.Rotation(quat.Mul(quat.Number(b), quat.Number(a)))
}

// Orientation returns the configured rotation: the coordinate-system
// correction, then RotationX, RotationY and RotationZ.
func (c RenderConfig) Orientation() r3.Rotation {
	q := identity
	if c.CoordinateSystem == ZUp {
		q = r3.NewRotation(degToRad(-90), axisX)
	}
	q = then(q, r3.NewRotation(degToRad(c.RotationX), axisX))
	q = then(q, r3.NewRotation(degToRad(c.RotationY), axisY))
	q = then(q, r3.NewRotation(degToRad(c.RotationZ), axisZ))
	return q
}
