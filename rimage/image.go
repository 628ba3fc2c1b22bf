package rimage

import (
	"image"
	"image/color"
	"image/draw"
)

// Image is an owned RGB color frame. Reads are safe from many goroutines as long as nobody
// writes concurrently.
type Image struct {
	data          []color.NRGBA
	width, height int
}

// NewImage returns a black image of the given size.
func NewImage(width, height int) *Image {
	return &Image{data: make([]color.NRGBA, width*height), width: width, height: height}
}

// NewImageFromStdImage copies img into a new Image with its origin moved to (0, 0). No
// reference to img is retained.
func NewImageFromStdImage(img image.Image) *Image {
	b := img.Bounds()
	src, ok := img.(*image.NRGBA)
	if !ok {
		src = image.NewNRGBA(b)
		draw.Draw(src, b, img, b.Min, draw.Src)
	}
	ret := NewImage(b.Dx(), b.Dy())
	for y := range ret.height {
		row := ret.data[y*ret.width : (y+1)*ret.width]
		for x := range row {
			row[x] = src.NRGBAAt(b.Min.X+x, b.Min.Y+y)
		}
	}
	return ret
}

func (i *Image) offset(x, y int) int {
	return y*i.width + x
}

// In returns whether (x, y) lies inside the image.
func (i *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < i.width && y < i.height
}

// Width returns the number of columns.
func (i *Image) Width() int {
	return i.width
}

// Height returns the number of rows.
func (i *Image) Height() int {
	return i.height
}

// Bounds implements image.Image.
func (i *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.width, i.height)
}

// ColorModel implements image.Image.
func (i *Image) ColorModel() color.Model {
	return color.NRGBAModel
}

// At implements image.Image. Points outside the image are transparent black.
func (i *Image) At(x, y int) color.Color {
	if !i.In(x, y) {
		return color.NRGBA{}
	}
	return i.data[i.offset(x, y)]
}

// GetXY returns the color at (x, y).
func (i *Image) GetXY(x, y int) color.NRGBA {
	return i.data[i.offset(x, y)]
}

// SetXY stores c at (x, y).
func (i *Image) SetXY(x, y int, c color.NRGBA) {
	i.data[i.offset(x, y)] = c
}
