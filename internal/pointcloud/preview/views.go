package preview

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/npcloud/internal/fsutil"
	"github.com/banshee-data/npcloud/internal/monitoring"
	"github.com/banshee-data/npcloud/internal/security"
)

// DefaultMaxPoints caps the points drawn per view.
const DefaultMaxPoints = 20000

// view is an orthographic projection of world coordinates onto a plot.
type view struct {
	name    string
	xLabel  string
	yLabel  string
	project func(r3.Vec) (float64, float64)
}

// Front looks down -Z with +Y up; top looks down -Y with -Z up.
var views = []view{
	{name: "front", xLabel: "X", yLabel: "Y", project: func(p r3.Vec) (float64, float64) { return p.X, p.Y }},
	{name: "top", xLabel: "X", yLabel: "-Z", project: func(p r3.Vec) (float64, float64) { return p.X, -p.Z }},
}

// Writer writes preview files for snapshots into Dir.
type Writer struct {
	FS  fsutil.FileSystem
	Dir string

	// MaxPoints caps the points drawn per view; zero means DefaultMaxPoints.
	MaxPoints int

	// Validate, when set, is called with each output path and Dir before
	// writing. The CLI uses security.ValidatePathWithinDirectory.
	Validate func(path, dir string) error
}

func (w *Writer) maxPoints() int {
	if w.MaxPoints > 0 {
		return w.MaxPoints
	}
	return DefaultMaxPoints
}

func (w *Writer) outputPath(stem, suffix string) (string, error) {
	path, err := security.JoinWithin(w.Dir, security.SanitizeFilename(stem)+suffix)
	if err != nil {
		return "", err
	}
	if w.Validate != nil {
		if err := w.Validate(path, w.Dir); err != nil {
			return "", err
		}
	}
	return path, nil
}

func (w *Writer) write(path string, data []byte) error {
	if err := w.FS.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	monitoring.Debugf("[preview] wrote %s (%d bytes)", path, len(data))
	return nil
}

// stride returns the step that keeps n points within max.
func stride(n, max int) int {
	if n <= max || max <= 0 {
		return 1
	}
	return int(math.Ceil(float64(n) / float64(max)))
}

// projected holds the decimated, finite 2D points of one view and the
// half-width of a square range containing them.
type projected struct {
	xs, ys []float64
	extent float64
	stride int
}

func project(pts []r3.Vec, v view, max int) projected {
	s := stride(len(pts), max)
	out := projected{
		xs:     make([]float64, 0, len(pts)/s+1),
		ys:     make([]float64, 0, len(pts)/s+1),
		stride: s,
	}
	for i := 0; i < len(pts); i += s {
		x, y := v.project(pts[i])
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			continue
		}
		out.xs = append(out.xs, x)
		out.ys = append(out.ys, y)
		out.extent = math.Max(out.extent, math.Max(math.Abs(x), math.Abs(y)))
	}
	out.extent *= 1.05
	if out.extent == 0 {
		out.extent = 1
	}
	return out
}

// parseHexColor accepts #rgb and #rrggbb.
func parseHexColor(s string) (color.RGBA, error) {
	h, ok := strings.CutPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if !ok || len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func colorOr(s string, fallback color.RGBA) color.RGBA {
	c, err := parseHexColor(s)
	if err != nil {
		monitoring.Debugf("[preview] %v, using default", err)
		return fallback
	}
	return c
}
