package npy

import (
	"errors"
	"testing"

	"github.com/banshee-data/npcloud/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader_GrammarVariants(t *testing.T) {
	t.Parallel()

	want := ArrayDescriptor{
		Shape:        []int{5},
		FortranOrder: false,
		DType:        Float32,
		Major:        1,
	}

	tests := []struct {
		name string
		dict string
	}{
		{"numpy default", "{'descr': '<f4', 'fortran_order': False, 'shape': (5,), }"},
		{"double quotes", `{"descr": "<f4", "fortran_order": False, "shape": (5,)}`},
		{"no trailing comma", "{'descr': '<f4', 'fortran_order': False, 'shape': (5,)}"},
		{"reordered keys", "{'shape': (5,), 'fortran_order': False, 'descr': '<f4'}"},
		{"tight spacing", "{'descr':'<f4','fortran_order':False,'shape':(5,),}"},
		{"extra key with comma in string", "{'descr': '<f4', 'note': 'a, b: c}', 'fortran_order': False, 'shape': (5,), }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, align := range []int{0, 16, 64} {
				buf := testutil.BuildNPYRaw(1, tt.dict, align, nil)
				got, err := ParseHeader(buf)
				require.NoError(t, err)

				w := want
				w.DataOffset = len(buf)
				if diff := cmp.Diff(w, got); diff != "" {
					t.Errorf("align=%d descriptor mismatch (-want +got):\n%s", align, diff)
				}
			}
		})
	}
}

func TestParseHeader_Version2(t *testing.T) {
	t.Parallel()

	buf := testutil.BuildNPYRaw(2, testutil.HeaderDict("<f8", true, []int{4, 3}), 64, nil)
	got, err := ParseHeader(buf)
	require.NoError(t, err)

	assert.Equal(t, uint8(2), got.Major)
	assert.Equal(t, []int{4, 3}, got.Shape)
	assert.True(t, got.FortranOrder)
	assert.Equal(t, Float64, got.DType)
	assert.Equal(t, len(buf), got.DataOffset)
	assert.Zero(t, got.DataOffset%64)
}

func TestParseHeader_DataOffset(t *testing.T) {
	t.Parallel()

	dict := testutil.HeaderDict("<f4", false, []int{1, 3})
	v1 := testutil.BuildNPYRaw(1, dict, 0, nil)
	v2 := testutil.BuildNPYRaw(2, dict, 0, nil)

	d1, err := ParseHeader(v1)
	require.NoError(t, err)
	d2, err := ParseHeader(v2)
	require.NoError(t, err)

	assert.Equal(t, 10+len(dict), d1.DataOffset)
	assert.Equal(t, 12+len(dict), d2.DataOffset)
}

func TestParseHeader_BadMagic(t *testing.T) {
	t.Parallel()

	buf := testutil.Float32Cloud([3]float32{1, 2, 3})
	for i := 0; i < 6; i++ {
		buf[i] = 0
	}

	desc, err := ParseHeader(buf)
	require.ErrorIs(t, err, ErrBadMagic)
	assert.Nil(t, desc.Shape)

	arr, err := DecodeNPY(buf)
	require.ErrorIs(t, err, ErrBadMagic)
	assert.Nil(t, arr)

	_, err = ParseHeader([]byte{0x93, 'N'})
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestParseHeader_UnsupportedVersion(t *testing.T) {
	t.Parallel()

	for _, major := range []byte{0, 3, 9} {
		buf := testutil.BuildNPYRaw(1, testutil.HeaderDict("<f4", false, []int{1}), 64, nil)
		buf[6] = major
		_, err := ParseHeader(buf)
		assert.ErrorIs(t, err, ErrUnsupportedVersion, "major=%d", major)
	}
}

func TestParseHeader_MissingFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dict  string
		field string
	}{
		{"{'fortran_order': False, 'shape': (5,), }", "descr"},
		{"{'descr': '<f4', 'shape': (5,), }", "fortran_order"},
		{"{'descr': '<f4', 'fortran_order': False, }", "shape"},
	}
	for _, tt := range tests {
		_, err := ParseHeader(testutil.BuildNPYRaw(1, tt.dict, 64, nil))
		require.ErrorIs(t, err, ErrMissingField)

		var fe *FormatError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, tt.field, fe.Field)
	}
}

func TestParseHeader_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dict string
		kind error
	}{
		{"not a dict", "'descr': '<f4'", ErrMalformedHeader},
		{"unterminated", "{'descr': '<f4', 'shape': (5,", ErrMalformedHeader},
		{"bad fortran literal", "{'descr': '<f4', 'fortran_order': 0, 'shape': (5,)}", ErrMalformedHeader},
		{"shape not tuple", "{'descr': '<f4', 'fortran_order': False, 'shape': [5]}", ErrMalformedHeader},
		{"negative dimension", "{'descr': '<f4', 'fortran_order': False, 'shape': (-1, 3)}", ErrInvalidShape},
		{"scalar shape", "{'descr': '<f4', 'fortran_order': False, 'shape': ()}", ErrInvalidShape},
		{"empty middle dimension", "{'descr': '<f4', 'fortran_order': False, 'shape': (2,,3)}", ErrMalformedHeader},
		{"empty leading dimension", "{'descr': '<f4', 'fortran_order': False, 'shape': (,2,3)}", ErrMalformedHeader},
		{"comma only", "{'descr': '<f4', 'fortran_order': False, 'shape': (,)}", ErrMalformedHeader},
		{"double trailing comma", "{'descr': '<f4', 'fortran_order': False, 'shape': (5,,)}", ErrMalformedHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeader(testutil.BuildNPYRaw(1, tt.dict, 64, nil))
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestParseHeader_TruncatedHeader(t *testing.T) {
	t.Parallel()

	buf := testutil.BuildNPY("<f4", false, []int{5}, nil)
	_, err := ParseHeader(buf[:20])
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = ParseHeader(buf[:8])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestParseHeader_UnknownDTypeDeferred(t *testing.T) {
	t.Parallel()

	buf := testutil.BuildNPY("<c16", false, []int{2}, nil)
	desc, err := ParseHeader(buf)
	require.NoError(t, err)
	assert.False(t, desc.DType.Supported())
	assert.Equal(t, "<c16", desc.DType.Code)

	structured := "{'descr': [('x', '<f4'), ('y', '<f4')], 'fortran_order': False, 'shape': (2,), }"
	desc, err = ParseHeader(testutil.BuildNPYRaw(1, structured, 64, nil))
	require.NoError(t, err)
	assert.False(t, desc.DType.Supported())
}

func TestParseDType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code      string
		kind      Kind
		size      int
		bigEndian bool
	}{
		{"<f4", KindFloat, 4, false},
		{"<f8", KindFloat, 8, false},
		{"<f2", KindFloat, 2, false},
		{">f8", KindFloat, 8, true},
		{"<i4", KindInt, 4, false},
		{"<i8", KindInt, 8, false},
		{"|i1", KindInt, 1, false},
		{"|u1", KindUint, 1, false},
		{"<u2", KindUint, 2, false},
		{"=u4", KindUint, 4, false},
		{"|b1", KindBool, 1, false},
		{"f4", KindFloat, 4, false},
		{"<c8", KindUnknown, 0, false},
		{"<f3", KindUnknown, 0, false},
		{"|O", KindUnknown, 0, false},
		{"<U10", KindUnknown, 0, false},
		{"", KindUnknown, 0, false},
	}
	for _, tt := range tests {
		got := ParseDType(tt.code)
		assert.Equal(t, tt.kind, got.Kind, tt.code)
		assert.Equal(t, tt.size, got.Size, tt.code)
		assert.Equal(t, tt.bigEndian, got.BigEndian, tt.code)
		assert.Equal(t, tt.code, got.Code)
	}
}

func TestArrayDescriptor_LenOverflow(t *testing.T) {
	t.Parallel()

	d := ArrayDescriptor{Shape: []int{1 << 40, 1 << 40}, DType: Float32}
	_, ok := d.Len()
	assert.False(t, ok)

	d = ArrayDescriptor{Shape: []int{0, 3}, DType: Float32}
	n, ok := d.Len()
	assert.True(t, ok)
	assert.Zero(t, n)
}

func TestFormatError_Message(t *testing.T) {
	t.Parallel()

	err := InEntry(&FormatError{Kind: ErrMissingField, Field: "shape"}, "labels.npy")
	assert.Equal(t, `entry labels.npy: missing header field "shape"`, err.Error())
	assert.ErrorIs(t, err, ErrMissingField)

	cause := errors.New("flate: corrupt input")
	err = InEntry(cause, "points.npy")
	assert.ErrorIs(t, err, ErrCorruptArchive)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsFormatError(err))
}
