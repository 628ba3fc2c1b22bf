package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// List is an unorganized cloud keeping points in the order they were first added. It is what
// the file readers return.
type List struct {
	positions []r3.Vector
	data      []Data
	// index maps a position to its slot so re-adding a position replaces its data.
	index map[r3.Vector]int
	meta  MetaData
}

// NewList returns an empty list with room for capacity points.
func NewList(capacity int) *List {
	if capacity < 0 {
		capacity = 0
	}
	return &List{
		positions: make([]r3.Vector, 0, capacity),
		data:      make([]Data, 0, capacity),
		index:     make(map[r3.Vector]int, capacity),
		meta:      NewMetaData(),
	}
}

// Size returns the number of distinct positions.
func (l *List) Size() int {
	return len(l.positions)
}

// MetaData returns the bounds of the points and whether any has color.
func (l *List) MetaData() MetaData {
	return l.meta
}

// Set adds p, or replaces its data if p is already present. Positions with a NaN coordinate
// are rejected since they could never be found again.
func (l *List) Set(p r3.Vector, d Data) error {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
		return errors.Errorf("cannot add point with NaN coordinates %v", p)
	}
	if d == nil {
		d = Uncolored
	}
	if i, ok := l.index[p]; ok {
		l.data[i] = d
		if d.HasColor() {
			l.meta.HasColor = true
		}
		return nil
	}
	l.index[p] = len(l.positions)
	l.positions = append(l.positions, p)
	l.data = append(l.data, d)
	l.meta.Merge(p, d)
	return nil
}

// At returns the data stored at p.
func (l *List) At(p r3.Vector) (Data, bool) {
	i, ok := l.index[p]
	if !ok {
		return nil, false
	}
	return l.data[i], true
}

// Iterate visits the points in insertion order.
func (l *List) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	from, to := batchRange(len(l.positions), numBatches, myBatch)
	for i := from; i < to; i++ {
		if !fn(l.positions[i], l.data[i]) {
			return
		}
	}
}
