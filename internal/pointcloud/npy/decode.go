package npy

// DecodedArray is a decoded array in stored (on-disk) linear order.
// Values are widened to float64 regardless of the source dtype.
type DecodedArray struct {
	Descriptor ArrayDescriptor
	Values     []float64
}

// Rows returns Shape[0], or 0 for an array without dimensions.
func (a *DecodedArray) Rows() int {
	if len(a.Descriptor.Shape) == 0 {
		return 0
	}
	return a.Descriptor.Shape[0]
}

// Cols returns Shape[1] for a 2D array and 1 for a 1D array.
func (a *DecodedArray) Cols() int {
	switch len(a.Descriptor.Shape) {
	case 0:
		return 0
	case 1:
		return 1
	default:
		return a.Descriptor.Shape[1]
	}
}

// Decode reads the payload described by desc. payload must start at the
// first data byte; trailing bytes beyond the declared size are ignored.
func Decode(desc ArrayDescriptor, payload []byte) (*DecodedArray, error) {
	if !desc.DType.Supported() {
		return nil, &FormatError{Kind: ErrUnsupportedDType, DType: desc.DType.Code}
	}
	count, ok := desc.Len()
	if !ok {
		return nil, Errorf(ErrTruncated, "shape %v overflows", desc.Shape)
	}
	size, ok := desc.PayloadSize()
	if !ok || len(payload) < size {
		return nil, Errorf(ErrTruncated, "shape %v needs %d bytes of %s, got %d",
			desc.Shape, size, desc.DType.Code, len(payload))
	}

	values := make([]float64, count)
	width := desc.DType.Size
	bo := desc.DType.order()
	for i := range values {
		values[i] = desc.DType.read(payload[i*width:], bo)
	}
	return &DecodedArray{Descriptor: desc, Values: values}, nil
}

// DecodeNPY parses a complete .npy stream.
func DecodeNPY(buf []byte) (*DecodedArray, error) {
	desc, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	return Decode(desc, buf[desc.DataOffset:])
}

// IsNPY reports whether buf starts with the .npy magic.
func IsNPY(buf []byte) bool {
	if len(buf) < len(Magic) {
		return false
	}
	for i, b := range Magic {
		if buf[i] != b {
			return false
		}
	}
	return true
}
