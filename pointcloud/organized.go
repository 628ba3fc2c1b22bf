package pointcloud

import (
	"image/color"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// NeutralColor is assigned to vertices without a color sample.
var NeutralColor = color.NRGBA{A: math.MaxUint8}

// InvalidVertex returns the marker stored for pixels without a valid depth sample.
func InvalidVertex() r3.Vector {
	return r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
}

// InvalidTexCoord returns the marker stored for vertices that were never texture mapped.
func InvalidTexCoord() r2.Point {
	return r2.Point{X: math.NaN(), Y: math.NaN()}
}

// IsValidVertex returns whether v holds a reconstructed position.
func IsValidVertex(v r3.Vector) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsNaN(v.Z)
}

// Organized is a point cloud laid out on the pixel grid of the depth frame it came from. Slot
// y*Width()+x of every slice belongs to pixel (x, y). Invalid pixels hold InvalidVertex.
type Organized struct {
	width, height int

	Vertices  []r3.Vector
	TexCoords []r2.Point
	Colors    []color.NRGBA
}

// NewOrganized returns a width x height cloud in which every vertex is invalid.
func NewOrganized(width, height int) *Organized {
	size := width * height
	o := &Organized{
		width:     width,
		height:    height,
		Vertices:  make([]r3.Vector, size),
		TexCoords: make([]r2.Point, size),
		Colors:    make([]color.NRGBA, size),
	}
	for i := 0; i < size; i++ {
		o.Vertices[i] = InvalidVertex()
		o.TexCoords[i] = InvalidTexCoord()
		o.Colors[i] = NeutralColor
	}
	return o
}

// Width returns the number of columns of the grid.
func (o *Organized) Width() int {
	return o.width
}

// Height returns the number of rows of the grid.
func (o *Organized) Height() int {
	return o.height
}

// Index returns the slot of pixel (x, y).
func (o *Organized) Index(x, y int) int {
	return y*o.width + x
}

// SetPixel stores a reconstructed vertex for (x, y).
func (o *Organized) SetPixel(x, y int, v r3.Vector, tc r2.Point, c color.NRGBA) {
	i := o.Index(x, y)
	o.Vertices[i] = v
	o.TexCoords[i] = tc
	o.Colors[i] = c
}

// At returns the vertex, texture coordinate and color of pixel (x, y) and whether the vertex is
// valid.
func (o *Organized) At(x, y int) (r3.Vector, r2.Point, color.NRGBA, bool) {
	i := o.Index(x, y)
	return o.Vertices[i], o.TexCoords[i], o.Colors[i], IsValidVertex(o.Vertices[i])
}

// ValidCount returns the number of valid vertices.
func (o *Organized) ValidCount() int {
	count := 0
	for _, v := range o.Vertices {
		if IsValidVertex(v) {
			count++
		}
	}
	return count
}

// Size returns the number of valid vertices.
func (o *Organized) Size() int {
	return o.ValidCount()
}

// MetaData returns the bounds of the valid vertices. Organized clouds always carry color.
func (o *Organized) MetaData() MetaData {
	meta := NewMetaData()
	meta.HasColor = true
	for _, v := range o.Vertices {
		if IsValidVertex(v) {
			meta.Merge(v, nil)
		}
	}
	return meta
}

// Iterate visits the valid vertices in row-major order. Batches split the pixel grid, so
// batches may hold different numbers of points.
func (o *Organized) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	from, to := batchRange(len(o.Vertices), numBatches, myBatch)
	for i := from; i < to; i++ {
		if !IsValidVertex(o.Vertices[i]) {
			continue
		}
		if !fn(o.Vertices[i], ColoredData(o.Colors[i])) {
			return
		}
	}
}
