package npy

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/x448/float16"
)

// Kind is the scalar family of a dtype.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	default:
		return "unknown"
	}
}

// DType is a tagged scalar type parsed from a descr string such as "<f4".
// A DType with Kind == KindUnknown keeps its Code so the decoder can report
// it; the header parser never rejects a dtype on its own.
type DType struct {
	Code      string
	Kind      Kind
	Size      int
	BigEndian bool
}

// Common little-endian dtypes.
var (
	Float32 = DType{Code: "<f4", Kind: KindFloat, Size: 4}
	Float64 = DType{Code: "<f8", Kind: KindFloat, Size: 8}
	Int32   = DType{Code: "<i4", Kind: KindInt, Size: 4}
	Int64   = DType{Code: "<i8", Kind: KindInt, Size: 8}
	Uint8   = DType{Code: "|u1", Kind: KindUint, Size: 1}
)

// ParseDType interprets a NumPy descr code. Unsupported codes come back
// with KindUnknown and no error.
func ParseDType(code string) DType {
	dt := DType{Code: code}
	s := code
	if s == "" {
		return dt
	}
	switch s[0] {
	case '<', '|', '=':
		s = s[1:]
	case '>':
		dt.BigEndian = true
		s = s[1:]
	}
	if len(s) < 2 {
		return dt
	}
	size, err := strconv.Atoi(s[1:])
	if err != nil {
		return dt
	}

	var kind Kind
	switch s[0] {
	case 'b':
		if size == 1 {
			kind = KindBool
		}
	case 'i':
		if size == 1 || size == 2 || size == 4 || size == 8 {
			kind = KindInt
		}
	case 'u':
		if size == 1 || size == 2 || size == 4 || size == 8 {
			kind = KindUint
		}
	case 'f':
		if size == 2 || size == 4 || size == 8 {
			kind = KindFloat
		}
	}
	if kind == KindUnknown {
		return dt
	}
	dt.Kind = kind
	dt.Size = size
	return dt
}

// Supported reports whether values of this dtype can be decoded.
func (d DType) Supported() bool {
	return d.Kind != KindUnknown && d.Size > 0
}

// String returns the dtype code.
func (d DType) String() string { return d.Code }

func (d DType) order() binary.ByteOrder {
	if d.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// read widens one scalar at the start of b to float64.
// Precondition: len(b) >= d.Size and d.Supported().
func (d DType) read(b []byte, bo binary.ByteOrder) float64 {
	switch d.Kind {
	case KindBool:
		if b[0] != 0 {
			return 1
		}
		return 0
	case KindInt:
		switch d.Size {
		case 1:
			return float64(int8(b[0]))
		case 2:
			return float64(int16(bo.Uint16(b)))
		case 4:
			return float64(int32(bo.Uint32(b)))
		default:
			return float64(int64(bo.Uint64(b)))
		}
	case KindUint:
		switch d.Size {
		case 1:
			return float64(b[0])
		case 2:
			return float64(bo.Uint16(b))
		case 4:
			return float64(bo.Uint32(b))
		default:
			return float64(bo.Uint64(b))
		}
	case KindFloat:
		switch d.Size {
		case 2:
			return float64(float16.Frombits(bo.Uint16(b)).Float32())
		case 4:
			return float64(math.Float32frombits(bo.Uint32(b)))
		default:
			return math.Float64frombits(bo.Uint64(b))
		}
	}
	return math.NaN()
}
