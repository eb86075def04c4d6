// Package preview renders static snapshots of a scene: PNG plots via
// gonum/plot and interactive HTML scatter pages via go-echarts.
//
// Canvas is an off-screen scene.Backend. It keeps every live geometry and
// its transform so that a snapshot shows exactly what an on-screen
// renderer driven by the same Scene would draw.
package preview

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/npcloud/internal/pointcloud/scene"
)

// ErrNothingPlaced is returned by Snapshot before any geometry has been
// uploaded and placed.
var ErrNothingPlaced = errors.New("preview: no placed geometry")

type geometry struct {
	positions   []float32
	pointCount  int
	pivot       r3.Vec
	orientation r3.Rotation
	placed      bool
}

// Canvas records backend calls from a scene.Scene.
type Canvas struct {
	mu     sync.Mutex
	geoms  map[scene.Handle]*geometry
	active scene.Handle
	style  scene.RenderConfig
	camera scene.Camera
	framed bool
}

var _ scene.Backend = (*Canvas)(nil)

// NewCanvas returns an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{geoms: make(map[scene.Handle]*geometry)}
}

// CreateGeometry stores positions under h. Positions are not copied; the
// decoder never mutates them after assembly.
func (c *Canvas) CreateGeometry(h scene.Handle, positions []float32, pointCount int) error {
	if len(positions) != 3*pointCount {
		return fmt.Errorf("geometry %s: %d floats for %d points", h, len(positions), pointCount)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.geoms[h]; ok {
		return fmt.Errorf("geometry %s already exists", h)
	}
	c.geoms[h] = &geometry{positions: positions, pointCount: pointCount}
	return nil
}

func (c *Canvas) ReleaseGeometry(h scene.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.geoms, h)
	if c.active == h {
		c.active = scene.Handle{}
	}
}

func (c *Canvas) SetTransform(h scene.Handle, pivot r3.Vec, orientation r3.Rotation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.geoms[h]
	if !ok {
		return
	}
	g.pivot = pivot
	g.orientation = orientation
	g.placed = true
	c.active = h
}

func (c *Canvas) SetStyle(cfg scene.RenderConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.style = cfg
}

func (c *Canvas) FrameCamera(cam scene.Camera) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.camera = cam
	c.framed = true
}

// Live returns the number of geometries not yet released.
func (c *Canvas) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.geoms)
}

// Snapshot is the drawable state of a Canvas in world coordinates.
type Snapshot struct {
	Handle scene.Handle
	Points []r3.Vec
	Style  scene.RenderConfig
	Camera scene.Camera
	Framed bool
}

// Snapshot returns the most recently placed geometry with its transform
// applied: world = orientation * (p - pivot).
func (c *Canvas) Snapshot() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.geoms[c.active]
	if !ok || !g.placed {
		return Snapshot{}, ErrNothingPlaced
	}

	pts := make([]r3.Vec, g.pointCount)
	for i := range pts {
		p := r3.Vec{
			X: float64(g.positions[3*i]),
			Y: float64(g.positions[3*i+1]),
			Z: float64(g.positions[3*i+2]),
		}
		pts[i] = g.orientation.Rotate(r3.Sub(p, g.pivot))
	}
	return Snapshot{
		Handle: c.active,
		Points: pts,
		Style:  c.style,
		Camera: c.camera,
		Framed: c.framed,
	}, nil
}
