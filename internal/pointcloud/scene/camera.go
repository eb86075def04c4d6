package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/npcloud/internal/pointcloud"
)

// Camera is a look-at camera in scene coordinates. Geometry is recentred
// on its pivot, so Target is always the origin.
type Camera struct {
	Position r3.Vec
	Target   r3.Vec
	Up       r3.Vec
	FOV      float64 // degrees
	Near     float64
	Far      float64
}

// viewDir is the direction from the target towards the camera.
var viewDir = r3.Unit(r3.Vec{Y: 0.5, Z: 1})

// FrameBounds places a camera so that the bounding sphere of b fits the
// vertical field of view.
func FrameBounds(b pointcloud.Bounds, fovDeg float64) Camera {
	radius := r3.Norm(b.Size.R3()) / 2
	if radius == 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		radius = 1
	}
	distance := radius / math.Sin(degToRad(fovDeg)/2)
	return Camera{
		Position: r3.Scale(distance, viewDir),
		Up:       axisY,
		FOV:      fovDeg,
		Near:     distance / 100,
		Far:      distance * 10,
	}
}
