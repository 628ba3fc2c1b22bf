package pointcloud

import (
	"image/color"
	"math"

	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/depthcloud/logging"
)

// LAS point formats used here. Format 2 adds 16-bit RGB to format 0.
const (
	lasFormatPlain   = 0
	lasFormatColored = 2
)

// float32 stops representing every integer past 2^24.
const float32ExactLimit = 1 << 24

// NewFromLASFile reads a LAS file. Coordinates too large for float32 precision are logged
// rather than rejected.
func NewFromLASFile(fn string, logger logging.Logger) (PointCloud, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	colored := lf.Header.PointFormatID == lasFormatColored
	cloud := NewList(lf.Header.NumberPoints)
	for i := 0; i < lf.Header.NumberPoints; i++ {
		lp, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		pd := lp.PointData()
		pos := r3.Vector{X: pd.X, Y: pd.Y, Z: pd.Z}
		if a := pos.Abs(); math.Max(a.X, math.Max(a.Y, a.Z)) > float32ExactLimit {
			logger.Warnw("LAS point exceeds float32 precision", "index", i, "point", pos)
		}

		d := Uncolored
		if rgb := lp.RgbData(); colored && rgb != nil {
			d = ColoredData(color.NRGBA{R: uint8(rgb.Red >> 8), G: uint8(rgb.Green >> 8), B: uint8(rgb.Blue >> 8), A: 255})
		}
		if err := cloud.Set(pos, d); err != nil {
			return nil, err
		}
	}
	return cloud, nil
}

// WriteToLASFile writes every point of cloud to fn, using point format 2 when the cloud has
// color.
func WriteToLASFile(cloud PointCloud, fn string) (err error) {
	defer func() { err = NewWriteError(fn, err) }()

	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return err
	}
	defer func() { err = multierr.Combine(err, lf.Close()) }()

	colored := cloud.MetaData().HasColor
	format := lasFormatPlain
	if colored {
		format = lasFormatColored
	}
	if err := lf.AddHeader(lidario.LasHeader{PointFormatID: byte(format)}); err != nil {
		return err
	}

	cloud.Iterate(0, 0, func(pos r3.Vector, d Data) bool {
		err = lf.AddLasPoint(lasRecord(pos, d, colored))
		return err == nil
	})
	return err
}

func lasRecord(pos r3.Vector, d Data, colored bool) lidario.LasPointer {
	base := &lidario.PointRecord0{
		X: pos.X,
		Y: pos.Y,
		Z: pos.Z,
		// single return: return number 1 of 1
		BitField:      lidario.PointBitField{Value: 1 | 1<<3},
		PointSourceID: 1,
	}
	if !colored {
		return base
	}
	var r, g, b uint8
	if d != nil && d.HasColor() {
		r, g, b = d.RGB255()
	}
	return &lidario.PointRecord2{
		PointRecord0: base,
		RGB:          &lidario.RgbData{Red: uint16(r) << 8, Green: uint16(g) << 8, Blue: uint16(b) << 8},
	}
}
