package rimage

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/montanaflynn/stats"
)

// NewColorFromHSV returns an opaque color for the given hue in degrees, saturation and value.
func NewColorFromHSV(h, s, v float64) color.NRGBA {
	r, g, b := colorful.Hsv(h, s, v).Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: math.MaxUint8}
}

// Colorize renders the valid samples of rb on a hue ramp from near (orange) to far (blue).
// Samples outside [minV, maxV] are clamped; invalid samples stay black. If minV >= maxV the
// range is taken from the 2nd and 98th percentile of the valid samples.
func Colorize(rb *RangeBuffer, minV, maxV float64) (*Image, error) {
	if err := CheckValid(rb); err != nil {
		return nil, err
	}
	if minV >= maxV {
		var err error
		minV, maxV, err = rb.percentileRange(2, 98)
		if err != nil {
			return nil, err
		}
	}

	img := NewImage(rb.width, rb.height)
	span := maxV - minV
	for y := 0; y < rb.height; y++ {
		for x := 0; x < rb.width; x++ {
			v := rb.GetXY(x, y)
			if v == 0 {
				img.SetXY(x, y, color.NRGBA{A: math.MaxUint8})
				continue
			}
			ratio := 0.0
			if span > 0 {
				ratio = (math.Min(math.Max(v, minV), maxV) - minV) / span
			}
			img.SetXY(x, y, NewColorFromHSV(30+(200*ratio), 1, 1))
		}
	}
	return img, nil
}

func (rb *RangeBuffer) percentileRange(low, high float64) (float64, float64, error) {
	valid := rb.validSamples()
	if len(valid) == 0 {
		return 0, 0, nil
	}
	minV, err := stats.Percentile(valid, low)
	if err != nil {
		return 0, 0, err
	}
	maxV, err := stats.Percentile(valid, high)
	if err != nil {
		return 0, 0, err
	}
	return minV, maxV, nil
}
