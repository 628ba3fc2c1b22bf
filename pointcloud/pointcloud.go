// Package pointcloud holds point clouds and their file formats. An Organized cloud mirrors the
// pixel grid of the depth frame it was reconstructed from; a List is what reading a cloud back
// from disk produces.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// MetaData summarizes the valid points of a cloud.
type MetaData struct {
	HasColor bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// PointCloud is a read only view of a set of points.
type PointCloud interface {
	// Size returns the number of valid points.
	Size() int
	MetaData() MetaData
	// Iterate calls fn for each valid point until it returns false. With numBatches > 0 only
	// the myBatch-th of numBatches contiguous slices of the cloud is visited, so callers can
	// split the work across goroutines.
	Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool)
}

// NewMetaData returns the meta data of an empty cloud, whose bounds are inverted so the first
// Merge sets them.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64, MaxX: -math.MaxFloat64,
		MinY: math.MaxFloat64, MaxY: -math.MaxFloat64,
		MinZ: math.MaxFloat64, MaxZ: -math.MaxFloat64,
	}
}

// Merge widens the bounds to include v and records whether data is colored.
func (meta *MetaData) Merge(v r3.Vector, data Data) {
	if data != nil && data.HasColor() {
		meta.HasColor = true
	}
	meta.MinX, meta.MaxX = math.Min(meta.MinX, v.X), math.Max(meta.MaxX, v.X)
	meta.MinY, meta.MaxY = math.Min(meta.MinY, v.Y), math.Max(meta.MaxY, v.Y)
	meta.MinZ, meta.MaxZ = math.Min(meta.MinZ, v.Z), math.Max(meta.MaxZ, v.Z)
}

// batchRange returns the half open range of [0, size) that batch myBatch of numBatches covers.
// A non-positive numBatches covers everything.
func batchRange(size, numBatches, myBatch int) (int, int) {
	if numBatches <= 0 {
		return 0, size
	}
	batchSize := (size + numBatches - 1) / numBatches
	from := myBatch * batchSize
	to := from + batchSize
	if from > size {
		from = size
	}
	if to > size {
		to = size
	}
	return from, to
}

// Centroid returns the mean position of the points in cloud, and false if it is empty.
func Centroid(cloud PointCloud) (r3.Vector, bool) {
	var sum r3.Vector
	count := 0
	cloud.Iterate(0, 0, func(p r3.Vector, _ Data) bool {
		sum = sum.Add(p)
		count++
		return true
	})
	if count == 0 {
		return r3.Vector{}, false
	}
	return sum.Mul(1 / float64(count)), true
}
