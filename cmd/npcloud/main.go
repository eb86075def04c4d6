// Command npcloud decodes .npy and .npz point clouds, prints a summary per
// file and optionally writes previews and a catalog entry.
//
// Usage:
//
//	npcloud [flags] FILE...
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/npcloud/internal/config"
	"github.com/banshee-data/npcloud/internal/fsutil"
	"github.com/banshee-data/npcloud/internal/monitoring"
	"github.com/banshee-data/npcloud/internal/pointcloud"
	"github.com/banshee-data/npcloud/internal/pointcloud/catalog"
	"github.com/banshee-data/npcloud/internal/pointcloud/preview"
	"github.com/banshee-data/npcloud/internal/pointcloud/scene"
	"github.com/banshee-data/npcloud/internal/security"
	"github.com/banshee-data/npcloud/internal/version"
)

const (
	exitOK       = 0
	exitFailures = 1
	exitUsage    = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, fsutil.OSFileSystem{})
	stop()
	os.Exit(code)
}

type options struct {
	jsonOut    bool
	key        string
	normalize  string
	configPath string
	pngDir     string
	htmlDir    string
	dbPath     string
	maxPoints  int
	jobs       int
	verbose    bool
	version    bool
	files      []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("npcloud", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&o.jsonOut, "json", false, "print one JSON object per file")
	fs.StringVar(&o.key, "key", "", "npz member holding the geometry (default: first (N,>=3) member)")
	fs.StringVar(&o.normalize, "normalize", "auto", "up-axis correction: auto (per config), on or off")
	fs.StringVar(&o.configPath, "config", "", "path to a JSON config file")
	fs.StringVar(&o.pngDir, "png", "", "write front and top PNG previews into this directory")
	fs.StringVar(&o.htmlDir, "html", "", "write an interactive HTML preview into this directory")
	fs.StringVar(&o.dbPath, "db", "", "record decoded clouds in this sqlite catalog")
	fs.IntVar(&o.maxPoints, "max-points", preview.DefaultMaxPoints, "maximum points drawn per preview view")
	fs.IntVar(&o.jobs, "j", runtime.NumCPU(), "files decoded concurrently")
	fs.BoolVar(&o.verbose, "v", false, "verbose logging")
	fs.BoolVar(&o.version, "version", false, "print the build version and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: npcloud [flags] FILE...\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.files = fs.Args()
	if o.version {
		return o, nil
	}
	if len(o.files) == 0 {
		fs.Usage()
		return nil, errors.New("no input files")
	}
	if _, err := pointcloud.ParseNormalizeMode(o.normalize); err != nil {
		return nil, err
	}
	if o.jobs < 1 {
		o.jobs = 1
	}
	return o, nil
}

// result is the outcome of decoding one input file.
type result struct {
	path  string
	cloud *pointcloud.PointCloudData
	err   error
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, fsys fsutil.FileSystem) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "npcloud: %v\n", err)
		return exitUsage
	}
	if o.version {
		fmt.Fprintln(stdout, version.String())
		return exitOK
	}
	monitoring.SetVerbose(o.verbose)

	cfg, err := loadConfig(o.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "npcloud: %v\n", err)
		return exitUsage
	}

	results, err := decodeAll(ctx, fsys, cfg, o)
	if err != nil {
		fmt.Fprintf(stderr, "npcloud: %v\n", err)
		return exitFailures
	}

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
		}
		if err := printResult(stdout, r, o.jsonOut); err != nil {
			fmt.Fprintf(stderr, "npcloud: %v\n", err)
			return exitFailures
		}
	}

	if o.pngDir != "" || o.htmlDir != "" {
		if err := writePreviews(fsys, cfg.RenderConfig(), o, results); err != nil {
			fmt.Fprintf(stderr, "npcloud: %v\n", err)
			return exitFailures
		}
	}

	if o.dbPath != "" {
		if err := recordAll(ctx, o.dbPath, results); err != nil {
			fmt.Fprintf(stderr, "npcloud: %v\n", err)
			return exitFailures
		}
	}

	if failed > 0 {
		return exitFailures
	}
	return exitOK
}

func loadConfig(path string) (*config.LoaderConfig, error) {
	cfg := config.EmptyLoaderConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadLoaderConfig(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeAll decodes every input concurrently. Per-file failures are kept
// in the results; only cancellation aborts the batch.
func decodeAll(ctx context.Context, fsys fsutil.FileSystem, cfg *config.LoaderConfig, o *options) ([]result, error) {
	results := make([]result, len(o.files))
	mode, _ := pointcloud.ParseNormalizeMode(o.normalize)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.jobs)
	for i, path := range o.files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = decodeFile(fsys, cfg, path, mode, o.key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func decodeFile(fsys fsutil.FileSystem, cfg *config.LoaderConfig, path string, mode pointcloud.NormalizeMode, key string) result {
	raw, err := fsutil.ReadLimited(fsys, path, cfg.GetMaxFileBytes())
	if err != nil {
		return result{path: path, err: err}
	}

	opts := cfg.LoadOptions(pointcloud.SniffFormat(raw))
	if mode != pointcloud.NormalizeAuto {
		opts.Normalize = mode
	}
	if key != "" {
		opts.ArrayKey = key
	}

	pc, err := pointcloud.LoadWithOptions(raw, opts)
	if err != nil {
		return result{path: path, err: err}
	}
	monitoring.Debugf("[npcloud] %s: %s", path, pc)
	return result{path: path, cloud: pc}
}

type jsonResult struct {
	File       string            `json:"file"`
	Format     pointcloud.Format `json:"format,omitempty"`
	Array      string            `json:"array,omitempty"`
	Points     int               `json:"points"`
	Columns    int               `json:"columns,omitempty"`
	Normalized bool              `json:"normalized"`
	Min        []*float32        `json:"min,omitempty"`
	Max        []*float32        `json:"max,omitempty"`
	Attributes []string          `json:"attributes,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func printResult(w io.Writer, r result, asJSON bool) error {
	if !asJSON {
		var err error
		if r.err != nil {
			_, err = fmt.Fprintf(w, "%s: error: %v\n", r.path, r.err)
		} else {
			_, err = fmt.Fprintf(w, "%s: %s\n", r.path, r.cloud)
		}
		return err
	}

	out := jsonResult{File: r.path}
	if r.err != nil {
		out.Error = r.err.Error()
	} else {
		pc := r.cloud
		out.Format = pc.Format
		out.Array = pc.ArrayName
		out.Points = pc.PointCount
		out.Columns = pc.SourceColumns
		out.Normalized = pc.Normalized
		if pc.PointCount > 0 {
			out.Min = jsonVec(pc.Bounds.Min)
			out.Max = jsonVec(pc.Bounds.Max)
		}
		for _, a := range pc.Attributes {
			out.Attributes = append(out.Attributes, a.Name)
		}
	}
	return json.NewEncoder(w).Encode(out)
}

// jsonVec maps non-finite components to null; encoding/json rejects NaN.
func jsonVec(v pointcloud.Vec3) []*float32 {
	out := make([]*float32, len(v))
	for i := range v {
		f := float64(v[i])
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		c := v[i]
		out[i] = &c
	}
	return out
}

// writePreviews drives one scene through every decoded cloud in input
// order, snapshotting each load.
func writePreviews(fsys fsutil.FileSystem, rc scene.RenderConfig, o *options, results []result) error {
	canvas := preview.NewCanvas()
	sc, err := scene.New(canvas, rc)
	if err != nil {
		return err
	}
	defer sc.Close()

	var pngWriter, htmlWriter *preview.Writer
	if o.pngDir != "" {
		if pngWriter, err = newWriter(fsys, o.pngDir, o.maxPoints); err != nil {
			return err
		}
	}
	if o.htmlDir != "" {
		if htmlWriter, err = newWriter(fsys, o.htmlDir, o.maxPoints); err != nil {
			return err
		}
	}

	stems := previewStems(results)
	for i, r := range results {
		if r.err != nil {
			continue
		}
		if _, err := sc.Load(r.cloud); err != nil {
			return fmt.Errorf("%s: %w", r.path, err)
		}
		snap, err := canvas.Snapshot()
		if err != nil {
			return fmt.Errorf("%s: %w", r.path, err)
		}

		stem := stems[i]
		if pngWriter != nil {
			if _, err := pngWriter.WritePNG(stem, snap); err != nil {
				return fmt.Errorf("%s: %w", r.path, err)
			}
		}
		if htmlWriter != nil {
			if _, err := htmlWriter.WriteHTML(stem, snap); err != nil {
				return fmt.Errorf("%s: %w", r.path, err)
			}
		}
	}
	return nil
}

// previewStems names each successful result after its file's base name.
// Inputs sharing a base name get their 1-based input position appended so
// no preview overwrites another.
func previewStems(results []result) []string {
	stems := make([]string, len(results))
	count := make(map[string]int)
	for i, r := range results {
		if r.err != nil {
			continue
		}
		stems[i] = strings.TrimSuffix(filepath.Base(r.path), filepath.Ext(r.path))
		count[stems[i]]++
	}

	used := make(map[string]bool)
	for i, r := range results {
		if r.err == nil && count[stems[i]] == 1 {
			used[stems[i]] = true
		}
	}
	for i, r := range results {
		if r.err != nil || count[stems[i]] == 1 {
			continue
		}
		base := stems[i]
		stem := fmt.Sprintf("%s-%d", base, i+1)
		for n := 2; used[stem]; n++ {
			stem = fmt.Sprintf("%s-%d-%d", base, i+1, n)
		}
		used[stem] = true
		monitoring.Logf("[npcloud] %s shares preview name %q, writing %q", r.path, base, stem)
		stems[i] = stem
	}
	return stems
}

func newWriter(fsys fsutil.FileSystem, dir string, maxPoints int) (*preview.Writer, error) {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create preview directory: %w", err)
	}
	w := &preview.Writer{FS: fsys, Dir: dir, MaxPoints: maxPoints}
	if _, ok := fsys.(fsutil.OSFileSystem); ok {
		w.Validate = security.ValidatePathWithinDirectory
	}
	return w, nil
}

func recordAll(ctx context.Context, dbPath string, results []result) error {
	store, err := catalog.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	for _, r := range results {
		if r.err != nil {
			continue
		}
		rec, err := store.Record(ctx, r.path, r.cloud)
		if err != nil {
			return fmt.Errorf("record %s: %w", r.path, err)
		}
		monitoring.Debugf("[catalog] %s -> %s", r.path, rec.ID)
	}
	return nil
}
