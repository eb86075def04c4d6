// Package npy decodes NumPy .npy array streams.
//
// Responsibilities: validating the magic and version, parsing the
// Python-literal header dict into an ArrayDescriptor, and decoding the
// trailing payload into a flat float64 buffer.
// Key types: ArrayDescriptor, DType, DecodedArray, FormatError.
//
// Decoding is a pure function of its input bytes. Values are widened to
// float64 here; narrowing to float32 happens only when a point cloud is
// assembled.
package npy
