package npz

import (
	"github.com/banshee-data/npcloud/internal/pointcloud/npy"
)

// IsPointCloudShape reports whether desc is an (N, k) array with k >= 3.
func IsPointCloudShape(desc npy.ArrayDescriptor) bool {
	return len(desc.Shape) == 2 && desc.Shape[1] >= 3
}

// SelectPointCloud returns the first successfully decoded member, in
// directory order, whose shape is (N, k>=3). Member names are not
// consulted.
func SelectPointCloud(entries []Entry) (Entry, error) {
	for _, e := range entries {
		if e.OK() && IsPointCloudShape(e.Array.Descriptor) {
			return e, nil
		}
	}
	return Entry{}, npy.Errorf(npy.ErrNoPointCloudArray, "none of %d members has shape (N, >=3)", len(entries))
}

// Select picks the member named key (with or without the ".npy" suffix),
// or falls back to SelectPointCloud when key is empty.
func Select(entries []Entry, key string) (Entry, error) {
	if key == "" {
		return SelectPointCloud(entries)
	}
	for _, e := range entries {
		if e.Name != key && e.Key() != key {
			continue
		}
		if !e.OK() {
			return Entry{}, e.Err
		}
		if !IsPointCloudShape(e.Array.Descriptor) {
			return Entry{}, npy.Errorf(npy.ErrInvalidShape, "member %s has shape %v, expected (N,3)", e.Name, e.Array.Descriptor.Shape)
		}
		return e, nil
	}
	return Entry{}, npy.Errorf(npy.ErrNoPointCloudArray, "no member named %q", key)
}
