package npy

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/banshee-data/npcloud/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestDecodeNPY_Float32RoundTrip(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 1000} {
		values := make([]float32, 3*n)
		for i := range values {
			values[i] = float32(i)*0.25 - 100
		}
		buf := testutil.BuildNPY("<f4", false, []int{n, 3}, testutil.Float32Payload(values...))

		arr, err := DecodeNPY(buf)
		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, []int{n, 3}, arr.Descriptor.Shape)
		assert.Equal(t, n, arr.Rows())
		assert.Equal(t, 3, arr.Cols())
		require.Len(t, arr.Values, 3*n)
		for i, v := range values {
			if arr.Values[i] != float64(v) {
				t.Fatalf("n=%d value[%d] = %v, want %v", n, i, arr.Values[i], v)
			}
		}
	}
}

func TestDecodeNPY_Truncated(t *testing.T) {
	t.Parallel()

	buf := testutil.BuildNPY("<f4", false, []int{1000, 3}, make([]byte, 100))
	arr, err := DecodeNPY(buf)
	require.ErrorIs(t, err, ErrTruncated)
	assert.Nil(t, arr)
}

func TestDecodeNPY_IgnoresTrailingBytes(t *testing.T) {
	t.Parallel()

	payload := append(testutil.Float32Payload(1, 2, 3), 0xde, 0xad)
	arr, err := DecodeNPY(testutil.BuildNPY("<f4", false, []int{1, 3}, payload))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, arr.Values)
}

func TestDecode_DTypes(t *testing.T) {
	t.Parallel()

	le := binary.LittleEndian
	be := binary.BigEndian

	i64 := make([]byte, 16)
	neg7 := int64(-7)
	le.PutUint64(i64, uint64(neg7))
	le.PutUint64(i64[8:], 1<<40)

	u16 := make([]byte, 4)
	le.PutUint16(u16, 65535)
	le.PutUint16(u16[2:], 3)

	f64be := make([]byte, 8)
	be.PutUint64(f64be, math.Float64bits(-2.5))

	i32be := make([]byte, 4)
	negI32 := int32(-123456)
	be.PutUint32(i32be, uint32(negI32))

	half := make([]byte, 4)
	le.PutUint16(half, float16.Fromfloat32(1.5).Bits())
	le.PutUint16(half[2:], float16.Fromfloat32(-0.25).Bits())

	tests := []struct {
		name    string
		descr   string
		shape   []int
		payload []byte
		want    []float64
	}{
		{"float32", "<f4", []int{2}, testutil.Float32Payload(0.5, -1), []float64{0.5, -1}},
		{"float64", "<f8", []int{2}, testutil.Float64Payload(1e300, -3.25), []float64{1e300, -3.25}},
		{"int32", "<i4", []int{3}, testutil.Int32Payload(-1, 0, 2147483647), []float64{-1, 0, 2147483647}},
		{"int64", "<i8", []int{2}, i64, []float64{-7, 1 << 40}},
		{"uint8", "|u1", []int{3}, []byte{0, 128, 255}, []float64{0, 128, 255}},
		{"int8", "|i1", []int{2}, []byte{0xff, 0x7f}, []float64{-1, 127}},
		{"uint16", "<u2", []int{2}, u16, []float64{65535, 3}},
		{"bool", "|b1", []int{3}, []byte{0, 1, 2}, []float64{0, 1, 1}},
		{"float16", "<f2", []int{2}, half, []float64{1.5, -0.25}},
		{"float64 big-endian", ">f8", []int{1}, f64be, []float64{-2.5}},
		{"int32 big-endian", ">i4", []int{1}, i32be, []float64{-123456}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arr, err := DecodeNPY(testutil.BuildNPY(tt.descr, false, tt.shape, tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, arr.Values)
		})
	}
}

func TestDecode_UnsupportedDType(t *testing.T) {
	t.Parallel()

	for _, code := range []string{"<c8", "|O", "<U4", "<M8"} {
		_, err := DecodeNPY(testutil.BuildNPY(code, false, []int{1}, make([]byte, 16)))
		require.ErrorIs(t, err, ErrUnsupportedDType, code)
		assert.Contains(t, err.Error(), code)
	}
}

func TestDecode_FortranOrderPassThrough(t *testing.T) {
	t.Parallel()

	// Column-major (2,3): stored order is x0 x1 y0 y1 z0 z1.
	payload := testutil.Float32Payload(1, 2, 3, 4, 5, 6)
	arr, err := DecodeNPY(testutil.BuildNPY("<f4", true, []int{2, 3}, payload))
	require.NoError(t, err)
	assert.True(t, arr.Descriptor.FortranOrder)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, arr.Values)
}

func TestDecode_HigherRank(t *testing.T) {
	t.Parallel()

	payload := testutil.Float32Payload(make([]float32, 24)...)
	arr, err := DecodeNPY(testutil.BuildNPY("<f4", false, []int{2, 3, 4}, payload))
	require.NoError(t, err)
	assert.Len(t, arr.Values, 24)
	assert.Equal(t, 3, arr.Descriptor.Rank())
}

func TestIsNPY(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNPY(testutil.BuildNPY("<f4", false, []int{0}, nil)))
	assert.False(t, IsNPY([]byte("PK\x03\x04")))
	assert.False(t, IsNPY(nil))
}
