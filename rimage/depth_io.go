package rimage

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// maxDepthDimension bounds the width and height accepted from depth files.
const maxDepthDimension = 100000

// NewRangeBufferFromFile reads a depth buffer from a 16-bit grayscale PNG (".png") or the raw
// depth format (".dat", optionally gzipped as ".dat.gz"). Samples are in the file's native unit,
// usually millimeters.
func NewRangeBufferFromFile(fn string) (*RangeBuffer, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	switch {
	case strings.HasSuffix(fn, ".png"):
		return ReadDepthPNG(f)
	case strings.HasSuffix(fn, ".dat.gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer utils.UncheckedErrorFunc(gz.Close)
		return ReadDepthMap(bufio.NewReader(gz))
	case filepath.Ext(fn) == ".dat":
		return ReadDepthMap(bufio.NewReader(f))
	default:
		return nil, errors.Errorf("do not know how to read depth file %q", fn)
	}
}

// ReadDepthPNG decodes a 16-bit grayscale PNG into a depth buffer.
func ReadDepthPNG(r io.Reader) (*RangeBuffer, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, err
	}
	return ConvertImageToRangeBuffer(img)
}

// ConvertImageToRangeBuffer copies a 16-bit grayscale image into a depth buffer.
func ConvertImageToRangeBuffer(img image.Image) (*RangeBuffer, error) {
	gray, ok := img.(*image.Gray16)
	if !ok {
		return nil, errors.Errorf("depth image must be 16-bit grayscale, got %T", img)
	}
	bounds := gray.Bounds()
	rb, err := NewRangeBuffer(bounds.Dx(), bounds.Dy(), DepthDomain)
	if err != nil {
		return nil, err
	}
	for y := 0; y < rb.height; y++ {
		for x := 0; x < rb.width; x++ {
			rb.Set(x, y, float64(gray.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y))
		}
	}
	return rb, nil
}

// ToGray16 converts a depth buffer to a 16-bit grayscale image, rounding and clamping each
// sample to [0, 65535].
func (rb *RangeBuffer) ToGray16() *image.Gray16 {
	img := image.NewGray16(rb.Bounds())
	for y := 0; y < rb.height; y++ {
		for x := 0; x < rb.width; x++ {
			img.SetGray16(x, y, toGray16(rb.GetXY(x, y)))
		}
	}
	return img
}

// WriteDepthPNG writes rb as a 16-bit grayscale PNG.
func (rb *RangeBuffer) WriteDepthPNG(out io.Writer) error {
	return png.Encode(out, rb.ToGray16())
}

// ReadDepthMap reads the raw depth format: little endian int64 width and height followed by
// width*height int64 samples in row-major order.
func ReadDepthMap(r io.Reader) (*RangeBuffer, error) {
	rawWidth, err := readNext(r)
	if err != nil {
		return nil, err
	}
	rawHeight, err := readNext(r)
	if err != nil {
		return nil, err
	}
	if rawWidth <= 0 || rawWidth >= maxDepthDimension || rawHeight <= 0 || rawHeight >= maxDepthDimension {
		return nil, NewInvalidInputError("bad width or height for depth map %v %v", rawWidth, rawHeight)
	}

	rb, err := NewRangeBuffer(int(rawWidth), int(rawHeight), DepthDomain)
	if err != nil {
		return nil, err
	}
	for i := range rb.data {
		sample, err := readNext(r)
		if err != nil {
			return nil, errors.Wrapf(err, "reading sample %d", i)
		}
		rb.data[i] = float64(sample)
	}
	return rb, nil
}

func readNext(r io.Reader) (int64, error) {
	data := make([]byte, 8)
	if _, err := io.ReadFull(r, data); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(data)), nil
}

// WriteTo writes rb in the raw depth format, rounding samples to integers.
func (rb *RangeBuffer) WriteTo(out io.Writer) error {
	buf := make([]byte, 8)

	binary.LittleEndian.PutUint64(buf, uint64(rb.width))
	if _, err := out.Write(buf); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(buf, uint64(rb.height))
	if _, err := out.Write(buf); err != nil {
		return err
	}
	for _, v := range rb.data {
		binary.LittleEndian.PutUint64(buf, uint64(int64(math.Round(v))))
		if _, err := out.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// WriteToFile writes rb to fn in the raw depth format, gzipped when fn ends in ".gz", or as a
// 16-bit PNG when fn ends in ".png".
func (rb *RangeBuffer) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	switch filepath.Ext(fn) {
	case ".png":
		if err := rb.WriteDepthPNG(f); err != nil {
			return err
		}
	case ".gz":
		gout := gzip.NewWriter(f)
		if err := rb.WriteTo(gout); err != nil {
			return multierr.Combine(err, gout.Close())
		}
		if err := gout.Close(); err != nil {
			return err
		}
	default:
		if err := rb.WriteTo(f); err != nil {
			return err
		}
	}
	return f.Sync()
}

func toGray16(v float64) color.Gray16 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return color.Gray16{}
	case v >= math.MaxUint16:
		return color.Gray16{Y: math.MaxUint16}
	default:
		return color.Gray16{Y: uint16(math.Round(v))}
	}
}
