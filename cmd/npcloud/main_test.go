package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/npcloud/internal/fsutil"
	"github.com/banshee-data/npcloud/internal/monitoring"
	"github.com/banshee-data/npcloud/internal/pointcloud/catalog"
	"github.com/banshee-data/npcloud/internal/testutil"
	"github.com/banshee-data/npcloud/internal/version"
)

func quiet(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

// inputs returns a memory filesystem holding a small .npy and a .npz with
// a four-column geometry array plus a per-point label member.
func inputs(t *testing.T) *fsutil.MemoryFileSystem {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/in", 0755))

	npyData := testutil.Float32Cloud([3]float32{0, 0, 0}, [3]float32{2, 4, 6})
	require.NoError(t, mfs.WriteFile("/in/scan.npy", npyData, 0644))

	geom := testutil.BuildNPY("<f4", false, []int{2, 4},
		testutil.Float32Payload(1, 0, 0, 9, 0, 1, 0, 8))
	labels := testutil.BuildNPY("<i4", false, []int{2}, testutil.Int32Payload(3, 4))
	npzData := testutil.BuildNPZ(t,
		testutil.NPZEntry{Name: "points.npy", Data: geom, Deflate: true},
		testutil.NPZEntry{Name: "labels.npy", Data: labels},
	)
	require.NoError(t, mfs.WriteFile("/in/frame.npz", npzData, 0644))
	require.NoError(t, mfs.WriteFile("/in/broken.npy", []byte("not an array"), 0644))
	return mfs
}

func runCLI(t *testing.T, fsys fsutil.FileSystem, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, fsys)
	return code, stdout.String(), stderr.String()
}

func decodeLines(t *testing.T, out string) []jsonResult {
	t.Helper()
	var results []jsonResult
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var r jsonResult
		require.NoError(t, dec.Decode(&r))
		results = append(results, r)
	}
	return results
}

func TestRun_TextSummary(t *testing.T) {
	quiet(t)
	code, stdout, stderr := runCLI(t, inputs(t), "/in/scan.npy")

	assert.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "/in/scan.npy: npy points=2 cols=3 normalized=false min=[0 0 0] max=[2 4 6] center=[1 2 3] size=[2 4 6] attrs=0\n", stdout)
}

func TestRun_JSONKeepsInputOrderAndFailures(t *testing.T) {
	quiet(t)
	code, stdout, _ := runCLI(t, inputs(t), "-json", "-j", "3", "/in/frame.npz", "/in/broken.npy", "/in/scan.npy")

	assert.Equal(t, exitFailures, code)
	results := decodeLines(t, stdout)
	require.Len(t, results, 3)

	frame := results[0]
	assert.Equal(t, "/in/frame.npz", frame.File)
	assert.Equal(t, "npz", string(frame.Format))
	assert.Equal(t, "points", frame.Array)
	assert.Equal(t, 2, frame.Points)
	assert.Equal(t, 4, frame.Columns)
	assert.True(t, frame.Normalized)
	assert.Equal(t, []string{"points[3]", "labels"}, frame.Attributes)

	assert.Equal(t, "/in/broken.npy", results[1].File)
	assert.NotEmpty(t, results[1].Error)

	assert.Equal(t, "/in/scan.npy", results[2].File)
	assert.False(t, results[2].Normalized)
	require.Len(t, results[2].Max, 3)
	assert.Equal(t, float32(6), *results[2].Max[2])
}

func TestRun_NormalizeFlagOverridesConfig(t *testing.T) {
	quiet(t)
	code, stdout, _ := runCLI(t, inputs(t), "-json", "-normalize", "off", "/in/frame.npz")
	require.Equal(t, exitOK, code)
	assert.False(t, decodeLines(t, stdout)[0].Normalized)

	code, stdout, _ = runCLI(t, inputs(t), "-json", "-normalize", "on", "/in/scan.npy")
	require.Equal(t, exitOK, code)
	res := decodeLines(t, stdout)[0]
	assert.True(t, res.Normalized)
	// (2,4,6) -> (-6,-2,4)
	assert.Equal(t, float32(-6), *res.Min[0])
}

func TestRun_KeyFlag(t *testing.T) {
	quiet(t)
	code, stdout, _ := runCLI(t, inputs(t), "-json", "-key", "labels", "/in/frame.npz")
	assert.Equal(t, exitFailures, code)
	assert.Contains(t, decodeLines(t, stdout)[0].Error, "shape")
}

func TestRun_ConfigFileAndEnv(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "npcloud.json")
	require.NoError(t, fsutil.OSFileSystem{}.WriteFile(cfgPath, []byte(`{"normalize_npz": false}`), 0644))

	code, stdout, _ := runCLI(t, inputs(t), "-json", "-config", cfgPath, "/in/frame.npz")
	require.Equal(t, exitOK, code)
	assert.False(t, decodeLines(t, stdout)[0].Normalized)

	t.Setenv("NPCLOUD_MAX_FILE_BYTES", "16")
	code, stdout, _ = runCLI(t, inputs(t), "/in/scan.npy")
	assert.Equal(t, exitFailures, code)
	assert.Contains(t, stdout, "exceeds size limit")
}

func TestRun_UsageErrors(t *testing.T) {
	quiet(t)
	code, _, stderr := runCLI(t, inputs(t))
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "no input files")

	code, _, stderr = runCLI(t, inputs(t), "-normalize", "sideways", "/in/scan.npy")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "invalid normalize mode")

	code, _, _ = runCLI(t, inputs(t), "-config", "/nope.yaml", "/in/scan.npy")
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, inputs(t), "-h")
	assert.Equal(t, exitOK, code)
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, inputs(t), "-version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, version.String()+"\n", stdout)
}

func TestRun_Previews(t *testing.T) {
	quiet(t)
	mfs := inputs(t)
	code, _, stderr := runCLI(t, mfs, "-png", "/out/png", "-html", "/out/html", "-max-points", "10",
		"/in/scan.npy", "/in/broken.npy", "/in/frame.npz")
	assert.Equal(t, exitFailures, code, "broken input still fails the run")
	assert.Empty(t, stderr)

	var written []string
	for _, name := range mfs.Files() {
		if strings.HasPrefix(name, "/out/") {
			written = append(written, name)
		}
	}
	sort.Strings(written)
	assert.Equal(t, []string{
		"/out/html/frame.html",
		"/out/html/scan.html",
		"/out/png/frame_front.png",
		"/out/png/frame_top.png",
		"/out/png/scan_front.png",
		"/out/png/scan_top.png",
	}, written)
}

func TestRun_PreviewsSharedBaseName(t *testing.T) {
	quiet(t)
	mfs := inputs(t)
	require.NoError(t, mfs.MkdirAll("/in/other", 0755))
	require.NoError(t, mfs.WriteFile("/in/other/scan.npy",
		testutil.Float32Cloud([3]float32{5, 5, 5}), 0644))

	code, _, stderr := runCLI(t, mfs, "-html", "/out", "/in/scan.npy", "/in/other/scan.npy")
	require.Equal(t, exitOK, code, stderr)

	first, err := mfs.ReadFile("/out/scan-1.html")
	require.NoError(t, err)
	second, err := mfs.ReadFile("/out/scan-2.html")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	_, err = mfs.ReadFile("/out/scan.html")
	assert.Error(t, err)
}

func TestPreviewStems(t *testing.T) {
	quiet(t)
	results := []result{
		{path: "/a/scan.npy"},
		{path: "/b/scan.npz"},
		{path: "/c/scan-2.npy"},
		{path: "/d/frame.npz"},
		{path: "/e/scan.npy", err: errors.New("bad magic")},
	}
	assert.Equal(t, []string{"scan-1", "scan-2-2", "scan-2", "frame", ""}, previewStems(results))
}

func TestRun_PreviewsOnDisk(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	fsys := fsutil.OSFileSystem{}
	input := filepath.Join(dir, "cloud.npy")
	require.NoError(t, fsys.WriteFile(input, testutil.Float32Cloud([3]float32{1, 1, 1}), 0644))

	code, _, stderr := runCLI(t, fsys, "-html", filepath.Join(dir, "html"), input)
	require.Equal(t, exitOK, code, stderr)
	assert.FileExists(t, filepath.Join(dir, "html", "cloud.html"))
}

func TestRun_Catalog(t *testing.T) {
	quiet(t)
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	code, _, stderr := runCLI(t, inputs(t), "-db", dbPath, "/in/scan.npy", "/in/frame.npz", "/in/broken.npy")
	assert.Equal(t, exitFailures, code, stderr)

	store, err := catalog.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	recs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	sources := []string{recs[0].Source, recs[1].Source}
	sort.Strings(sources)
	assert.Equal(t, []string{"/in/frame.npz", "/in/scan.npy"}, sources)
}

func TestRun_Cancelled(t *testing.T) {
	quiet(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"/in/scan.npy"}, &stdout, &stderr, inputs(t))
	assert.Equal(t, exitFailures, code)
	assert.Contains(t, stderr.String(), "context canceled")
	assert.Empty(t, stdout.String())
}
