// Package testutil provides shared test fixtures for the point cloud
// decoders: synthetic .npy streams, .npz archives and assertion helpers.
package testutil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertErrorIs fails the test unless errors.Is(err, target).
func AssertErrorIs(t testing.TB, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// ShapeLiteral formats shape as a Python tuple, e.g. "(5,)" or "(2, 3)".
func ShapeLiteral(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	if len(shape) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// HeaderDict returns the dict literal numpy writes for an array.
func HeaderDict(descr string, fortran bool, shape []int) string {
	order := "False"
	if fortran {
		order = "True"
	}
	return fmt.Sprintf("{'descr': '%s', 'fortran_order': %s, 'shape': %s, }", descr, order, ShapeLiteral(shape))
}

// BuildNPYRaw assembles an .npy stream around an arbitrary dict literal.
// The header is padded with spaces and a trailing newline so that the
// payload starts on an align-byte boundary (align <= 0 disables padding).
func BuildNPYRaw(major byte, dict string, align int, payload []byte) []byte {
	preamble := 10
	if major >= 2 {
		preamble = 12
	}
	header := dict
	if align > 0 {
		total := preamble + len(header) + 1
		if rem := total % align; rem != 0 {
			header += strings.Repeat(" ", align-rem)
		}
		header += "\n"
	}

	var buf bytes.Buffer
	buf.Write([]byte{0x93, 'N', 'U', 'M', 'P', 'Y', major, 0})
	if major >= 2 {
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(header)))
	} else {
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	}
	buf.WriteString(header)
	buf.Write(payload)
	return buf.Bytes()
}

// BuildNPY assembles a version 1.0 .npy stream the way numpy.save does.
func BuildNPY(descr string, fortran bool, shape []int, payload []byte) []byte {
	return BuildNPYRaw(1, HeaderDict(descr, fortran, shape), 64, payload)
}

// Float32Payload encodes values as little-endian float32.
func Float32Payload(values ...float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// Float64Payload encodes values as little-endian float64.
func Float64Payload(values ...float64) []byte {
	out := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
	}
	return out
}

// Int32Payload encodes values as little-endian int32.
func Int32Payload(values ...int32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
	}
	return out
}

// Float32Cloud encodes an (N,3) float32 array as an .npy stream.
func Float32Cloud(points ...[3]float32) []byte {
	flat := make([]float32, 0, 3*len(points))
	for _, p := range points {
		flat = append(flat, p[0], p[1], p[2])
	}
	return BuildNPY("<f4", false, []int{len(points), 3}, Float32Payload(flat...))
}

// NPZEntry is one member of a synthetic .npz archive.
type NPZEntry struct {
	Name    string
	Data    []byte
	Deflate bool
}

// BuildNPZ writes entries, in order, into a zip archive.
func BuildNPZ(t testing.TB, entries ...NPZEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		method := zip.Store
		if e.Deflate {
			method = zip.Deflate
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: method})
		if err != nil {
			t.Fatalf("create zip entry %s: %v", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			t.Fatalf("write zip entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}
