// Package pointcloud turns raw .npy/.npz bytes into renderer-ready point
// clouds.
//
// Responsibilities: format sniffing, array selection, narrowing to float32
// positions, the optional up-axis normalization and bounds computation.
// Key types: PointCloudData, Bounds, Options.
//
// Loading is a pure, single-shot transformation: no state is retained
// between calls, so concurrent loads on separate buffers are safe.
package pointcloud
