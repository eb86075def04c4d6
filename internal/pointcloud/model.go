package pointcloud

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Format identifies the container a point cloud was decoded from.
type Format string

const (
	FormatNPY Format = "npy"
	FormatNPZ Format = "npz"
)

// Vec3 is a float32 triple in renderer coordinates.
type Vec3 [3]float32

// R3 widens v to a gonum vector.
func (v Vec3) R3() r3.Vec {
	return r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

func vec3From(v r3.Vec) Vec3 {
	return Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

// Bounds is the axis-aligned extent of a point cloud.
// Center = (Min+Max)/2 and Size = Max-Min, component-wise.
type Bounds struct {
	Min    Vec3
	Max    Vec3
	Center Vec3
	Size   Vec3
}

// Box returns the bounds as a gonum box.
func (b Bounds) Box() r3.Box {
	return r3.Box{Min: b.Min.R3(), Max: b.Max.R3()}
}

// MaxExtent returns the largest component of Size.
func (b Bounds) MaxExtent() float32 {
	m := b.Size[0]
	if b.Size[1] > m {
		m = b.Size[1]
	}
	if b.Size[2] > m {
		m = b.Size[2]
	}
	return m
}

// Attribute is a per-point scalar channel carried alongside positions:
// either a column beyond XYZ of the geometry array, or a 1-D archive
// member with one value per point.
type Attribute struct {
	Name   string
	Values []float32
}

// PointCloudData is the renderer-facing result of a load.
// Invariant: len(Positions) == 3*PointCount.
type PointCloudData struct {
	Positions  []float32 // x0 y0 z0 x1 y1 z1 ...
	PointCount int
	Bounds     Bounds

	Format        Format
	ArrayName     string // archive member key; empty for .npy input
	SourceColumns int    // k of the (N, k) source array
	Normalized    bool
	Attributes    []Attribute
}

// Point returns the i-th position.
func (pc *PointCloudData) Point(i int) Vec3 {
	return Vec3{pc.Positions[3*i], pc.Positions[3*i+1], pc.Positions[3*i+2]}
}

// DroppedColumns returns the number of source columns beyond XYZ.
func (pc *PointCloudData) DroppedColumns() int {
	if pc.SourceColumns <= 3 {
		return 0
	}
	return pc.SourceColumns - 3
}

// Attribute looks up a per-point channel by name.
func (pc *PointCloudData) Attribute(name string) (Attribute, bool) {
	for _, a := range pc.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// String summarises the cloud on one line.
func (pc *PointCloudData) String() string {
	src := string(pc.Format)
	if pc.ArrayName != "" {
		src += ":" + pc.ArrayName
	}
	return fmt.Sprintf("%s points=%d cols=%d normalized=%t min=%v max=%v center=%v size=%v attrs=%d",
		src, pc.PointCount, pc.SourceColumns, pc.Normalized,
		pc.Bounds.Min, pc.Bounds.Max, pc.Bounds.Center, pc.Bounds.Size, len(pc.Attributes))
}
