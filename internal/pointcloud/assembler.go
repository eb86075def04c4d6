package pointcloud

import (
	"fmt"

	"github.com/banshee-data/npcloud/internal/monitoring"
	"github.com/banshee-data/npcloud/internal/pointcloud/npy"
	"github.com/banshee-data/npcloud/internal/pointcloud/npz"
)

// NormalizeMode selects whether the up-axis correction is applied.
type NormalizeMode int

const (
	// NormalizeAuto normalizes .npz input and leaves .npy input untouched.
	NormalizeAuto NormalizeMode = iota
	NormalizeAlways
	NormalizeNever
)

// ParseNormalizeMode accepts "auto", "on"/"always"/"true" and
// "off"/"never"/"false".
func ParseNormalizeMode(s string) (NormalizeMode, error) {
	switch s {
	case "", "auto":
		return NormalizeAuto, nil
	case "on", "always", "true":
		return NormalizeAlways, nil
	case "off", "never", "false":
		return NormalizeNever, nil
	}
	return NormalizeAuto, fmt.Errorf("invalid normalize mode %q (want auto, on or off)", s)
}

func (m NormalizeMode) String() string {
	switch m {
	case NormalizeAlways:
		return "on"
	case NormalizeNever:
		return "off"
	default:
		return "auto"
	}
}

func (m NormalizeMode) applies(f Format) bool {
	switch m {
	case NormalizeAlways:
		return true
	case NormalizeNever:
		return false
	default:
		return f == FormatNPZ
	}
}

// Options tunes a load. The zero value reproduces the default behaviour.
type Options struct {
	Normalize NormalizeMode

	// ArrayKey names the .npz member holding geometry. Empty uses the
	// first (N, >=3) member.
	ArrayKey string

	// MaxEntryBytes caps each .npz member; 0 uses npz.DefaultMaxEntryBytes.
	MaxEntryBytes int64
}

// SniffFormat reports the container format of raw: zip archives are .npz,
// anything else is treated as .npy.
func SniffFormat(raw []byte) Format {
	if npz.IsZip(raw) {
		return FormatNPZ
	}
	return FormatNPY
}

// Load decodes raw .npy or .npz bytes with default options.
func Load(raw []byte) (*PointCloudData, error) {
	return LoadWithOptions(raw, Options{})
}

// LoadWithOptions sniffs the container, selects the geometry array, narrows
// it to float32 XYZ, optionally normalizes it and computes bounds. The
// first failure is returned unchanged.
func LoadWithOptions(raw []byte, opts Options) (*PointCloudData, error) {
	var (
		arr     *npy.DecodedArray
		entries []npz.Entry
		pc      = &PointCloudData{}
	)

	if SniffFormat(raw) == FormatNPZ {
		var err error
		dec := &npz.Decoder{MaxEntryBytes: opts.MaxEntryBytes}
		entries, err = dec.Decode(raw)
		if err != nil {
			return nil, err
		}
		sel, err := npz.Select(entries, opts.ArrayKey)
		if err != nil {
			return nil, err
		}
		arr = sel.Array
		pc.Format = FormatNPZ
		pc.ArrayName = sel.Key()
	} else {
		var err error
		arr, err = npy.DecodeNPY(raw)
		if err != nil {
			return nil, err
		}
		pc.Format = FormatNPY
		if opts.ArrayKey != "" {
			monitoring.Debugf("[pointcloud] array key %q ignored for .npy input", opts.ArrayKey)
		}
	}

	positions, extra, err := splitColumns(arr, pc.ArrayName)
	if err != nil {
		return nil, err
	}
	pc.PointCount = arr.Rows()
	pc.SourceColumns = arr.Cols()
	pc.Attributes = append(extra, memberAttributes(entries, pc.ArrayName, pc.PointCount)...)

	if len(extra) > 0 {
		monitoring.Debugf("[pointcloud] keeping %d columns beyond XYZ as attributes", len(extra))
	}

	if opts.Normalize.applies(pc.Format) {
		positions = Normalize(positions)
		pc.Normalized = true
	}
	pc.Positions = positions

	if pc.PointCount > 0 {
		if pc.Bounds, err = ComputeBounds(positions); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

// splitColumns narrows an (N, k>=3) row-major array into interleaved XYZ
// positions plus one attribute per column beyond the third.
func splitColumns(arr *npy.DecodedArray, name string) ([]float32, []Attribute, error) {
	desc := arr.Descriptor
	if len(desc.Shape) != 2 || desc.Shape[1] < 3 {
		return nil, nil, npy.Errorf(npy.ErrInvalidShape, "expected (N,3) shape, got %v", desc.Shape)
	}
	if desc.FortranOrder {
		return nil, nil, npy.Errorf(npy.ErrUnsupportedLayout, "fortran_order array with shape %v", desc.Shape)
	}

	rows, cols := desc.Shape[0], desc.Shape[1]
	positions := make([]float32, 3*rows)
	var extra []Attribute
	if cols > 3 {
		if name == "" {
			name = "array"
		}
		extra = make([]Attribute, cols-3)
		for c := range extra {
			extra[c] = Attribute{
				Name:   fmt.Sprintf("%s[%d]", name, c+3),
				Values: make([]float32, rows),
			}
		}
	}

	for r := 0; r < rows; r++ {
		row := arr.Values[r*cols : (r+1)*cols]
		positions[3*r] = float32(row[0])
		positions[3*r+1] = float32(row[1])
		positions[3*r+2] = float32(row[2])
		for c := range extra {
			extra[c].Values[r] = float32(row[c+3])
		}
	}
	return positions, extra, nil
}

// memberAttributes collects 1-D archive members, (N,) or (N,1), with one
// value per point.
func memberAttributes(entries []npz.Entry, selected string, points int) []Attribute {
	var attrs []Attribute
	for _, e := range entries {
		if !e.OK() || e.Key() == selected {
			continue
		}
		shape := e.Array.Descriptor.Shape
		perPoint := (len(shape) == 1 && shape[0] == points) ||
			(len(shape) == 2 && shape[0] == points && shape[1] == 1)
		if !perPoint || points == 0 {
			continue
		}
		values := make([]float32, points)
		for i := range values {
			values[i] = float32(e.Array.Values[i])
		}
		attrs = append(attrs, Attribute{Name: e.Key(), Values: values})
	}
	return attrs
}
