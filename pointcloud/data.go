package pointcloud

import (
	"image/color"
)

// Data is what a cloud stores alongside each position.
type Data interface {
	HasColor() bool
	// RGB255 returns the color channels; all zero when HasColor is false.
	RGB255() (uint8, uint8, uint8)
}

// Colored is the data of a textured point. Alpha is ignored.
type Colored color.NRGBA

// ColoredData returns the data of a point textured with c.
func ColoredData(c color.NRGBA) Data {
	return Colored(c)
}

// HasColor is always true.
func (c Colored) HasColor() bool {
	return true
}

// RGB255 returns the color channels.
func (c Colored) RGB255() (uint8, uint8, uint8) {
	return c.R, c.G, c.B
}

type uncolored struct{}

func (uncolored) HasColor() bool {
	return false
}

func (uncolored) RGB255() (uint8, uint8, uint8) {
	return 0, 0, 0
}

// Uncolored is the data of a point read from a file without color channels.
var Uncolored Data = uncolored{}
