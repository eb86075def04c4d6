package scene

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/npcloud/internal/monitoring"
	"github.com/banshee-data/npcloud/internal/pointcloud"
	"github.com/banshee-data/npcloud/internal/timeutil"
)

// Handle identifies one uploaded geometry. Generation increases by one per
// load within a Scene.
type Handle struct {
	ID         uuid.UUID
	Generation uint64
}

// IsZero reports whether h refers to no geometry.
func (h Handle) IsZero() bool { return h.Generation == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("geom#%d(%s)", h.Generation, h.ID)
}

// Backend is the drawing side of a scene. Implementations own GPU or
// other display resources for each handle until ReleaseGeometry.
type Backend interface {
	// CreateGeometry uploads positions under h. The previous geometry stays
	// displayed until it is released.
	CreateGeometry(h Handle, positions []float32, pointCount int) error
	ReleaseGeometry(h Handle)
	// SetTransform places h so that world = orientation * (p - pivot).
	SetTransform(h Handle, pivot r3.Vec, orientation r3.Rotation)
	SetStyle(cfg RenderConfig)
	FrameCamera(cam Camera)
}

// State is a snapshot of the scene state machine.
type State struct {
	Handle      Handle
	PointCount  int
	Pivot       r3.Vec
	Orientation r3.Rotation
	Framed      bool
	AutoAngle   float64 // degrees accumulated by auto-rotation
	Config      RenderConfig
}

// ErrNoPointCloud is returned by Load when given nil data.
var ErrNoPointCloud = errors.New("scene: nil point cloud")

// Scene drives a Backend from PointCloudData and RenderConfig updates.
// It is safe for concurrent use.
type Scene struct {
	mu      sync.Mutex
	backend Backend
	cfg     RenderConfig

	current    Handle
	pointCount int
	pivot      r3.Vec
	generation uint64
	framedGen  uint64
	autoAngle  float64
}

// New creates a Scene and applies the initial style.
func New(backend Backend, cfg RenderConfig) (*Scene, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid render config: %w", err)
	}
	s := &Scene{backend: backend, cfg: cfg}
	backend.SetStyle(cfg)
	return s, nil
}

// Load replaces the displayed geometry with pc. The new geometry is
// uploaded and placed before the previous handle is released; on upload
// failure the previous geometry stays displayed. The camera is framed
// once for the new handle.
func (s *Scene) Load(pc *pointcloud.PointCloudData) (Handle, error) {
	if pc == nil {
		return Handle{}, ErrNoPointCloud
	}
	if len(pc.Positions) != 3*pc.PointCount {
		return Handle{}, fmt.Errorf("scene: %d positions for %d points", len(pc.Positions), pc.PointCount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := Handle{ID: uuid.New(), Generation: s.generation + 1}
	if err := s.backend.CreateGeometry(next, pc.Positions, pc.PointCount); err != nil {
		return Handle{}, fmt.Errorf("upload %s: %w", next, err)
	}
	s.generation = next.Generation

	prev := s.current
	s.current = next
	s.pointCount = pc.PointCount
	s.pivot = pc.Bounds.Center.R3()
	s.backend.SetTransform(next, s.pivot, s.orientationLocked())

	if !prev.IsZero() {
		s.backend.ReleaseGeometry(prev)
		monitoring.Debugf("[scene] released %s", prev)
	}

	if s.framedGen != next.Generation {
		s.backend.FrameCamera(FrameBounds(pc.Bounds, s.cfg.CameraFOV))
		s.framedGen = next.Generation
	}
	monitoring.Debugf("[scene] loaded %s with %d points, pivot %v", next, pc.PointCount, s.pivot)
	return next, nil
}

// Configure applies a new config snapshot. Orientation changes re-place
// the current geometry, style changes restyle it; neither reloads the
// geometry or reframes the camera.
func (s *Scene) Configure(cfg RenderConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid render config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cfg
	s.cfg = cfg
	if !cfg.sameStyle(prev) {
		s.backend.SetStyle(cfg)
	}
	if !cfg.sameOrientation(prev) && !s.current.IsZero() {
		s.backend.SetTransform(s.current, s.pivot, s.orientationLocked())
	}
	return nil
}

// Tick advances auto-rotation by dt. It is a no-op while AutoRotate is
// off or nothing is loaded.
func (s *Scene) Tick(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.AutoRotate || s.current.IsZero() || dt <= 0 {
		return
	}
	s.autoAngle = math.Mod(s.autoAngle+s.cfg.AutoRotateSpeed*dt.Seconds(), 360)
	s.backend.SetTransform(s.current, s.pivot, s.orientationLocked())
}

// Animate calls Tick with the elapsed clock time on every interval until
// ctx is done.
func (s *Scene) Animate(ctx context.Context, clock timeutil.Clock, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scene: animation interval must be positive, got %v", interval)
	}
	last := clock.Now()
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C():
			s.Tick(now.Sub(last))
			last = now
		}
	}
}

// Watch applies configs from updates until ctx is done or updates is
// closed. Invalid configs are logged and skipped.
func (s *Scene) Watch(ctx context.Context, updates <-chan RenderConfig) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cfg, ok := <-updates:
			if !ok {
				return nil
			}
			if err := s.Configure(cfg); err != nil {
				monitoring.Logf("[scene] ignoring config update: %v", err)
			}
		}
	}
}

// Close releases the current geometry.
func (s *Scene) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current.IsZero() {
		s.backend.ReleaseGeometry(s.current)
		s.current = Handle{}
		s.pointCount = 0
	}
}

// State returns a snapshot of the scene.
func (s *Scene) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		Handle:      s.current,
		PointCount:  s.pointCount,
		Pivot:       s.pivot,
		Orientation: s.orientationLocked(),
		Framed:      !s.current.IsZero() && s.framedGen == s.current.Generation,
		AutoAngle:   s.autoAngle,
		Config:      s.cfg,
	}
}

// orientationLocked composes the configured orientation with the
// accumulated auto-rotation about the up axis. Caller holds s.mu.
func (s *Scene) orientationLocked() r3.Rotation {
	q := s.cfg.Orientation()
	if s.autoAngle != 0 {
		q = then(q, r3.NewRotation(degToRad(s.autoAngle), axisY))
	}
	return q
}
