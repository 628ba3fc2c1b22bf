// Package rimage holds the owned image types flowing through the depth pipeline: range
// buffers carrying depth or disparity samples, and color frames.
package rimage

import (
	"fmt"
	"image"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// ErrInvalidInput is returned when a malformed or zero-sized buffer is handed to an operation.
var ErrInvalidInput = errors.New("invalid input")

// NewInvalidInputError wraps ErrInvalidInput with a description of what was wrong.
func NewInvalidInputError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidInput, format, args...)
}

// Domain is the unit space the samples of a RangeBuffer live in.
type Domain int

const (
	// DepthDomain samples are linear distances along the optical axis.
	DepthDomain Domain = iota
	// DisparityDomain samples are inversely proportional to distance.
	DisparityDomain
)

func (d Domain) String() string {
	switch d {
	case DepthDomain:
		return "depth"
	case DisparityDomain:
		return "disparity"
	default:
		return fmt.Sprintf("Domain(%d)", int(d))
	}
}

// RangeBuffer is a row-major grid of range samples. A sample of exactly zero marks a pixel
// without a valid measurement, in either domain.
type RangeBuffer struct {
	width  int
	height int
	domain Domain

	data []float64
}

// NewRangeBuffer returns a zeroed (all invalid) buffer of the given size.
func NewRangeBuffer(width, height int, domain Domain) (*RangeBuffer, error) {
	if width < 1 || height < 1 {
		return nil, NewInvalidInputError("range buffer size must be positive, got (%d, %d)", width, height)
	}
	return &RangeBuffer{
		width:  width,
		height: height,
		domain: domain,
		data:   make([]float64, width*height),
	}, nil
}

// NewRangeBufferFromData copies data, which must hold width*height row-major samples, into a new
// buffer. The caller keeps ownership of data.
func NewRangeBufferFromData(width, height int, domain Domain, data []float64) (*RangeBuffer, error) {
	rb, err := NewRangeBuffer(width, height, domain)
	if err != nil {
		return nil, err
	}
	if len(data) != width*height {
		return nil, NewInvalidInputError("expected %d samples for (%d, %d) but got %d", width*height, width, height, len(data))
	}
	copy(rb.data, data)
	return rb, nil
}

// CheckValid returns an ErrInvalidInput error if rb is nil or has no samples.
func CheckValid(rb *RangeBuffer) error {
	if rb == nil {
		return NewInvalidInputError("range buffer is nil")
	}
	if rb.width < 1 || rb.height < 1 || len(rb.data) != rb.width*rb.height {
		return NewInvalidInputError("range buffer is malformed (%d, %d) with %d samples", rb.width, rb.height, len(rb.data))
	}
	return nil
}

// Width returns the number of columns.
func (rb *RangeBuffer) Width() int {
	return rb.width
}

// Height returns the number of rows.
func (rb *RangeBuffer) Height() int {
	return rb.height
}

// Bounds returns the rectangle covered by the buffer.
func (rb *RangeBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, rb.width, rb.height)
}

// Domain returns the unit space of the samples.
func (rb *RangeBuffer) Domain() Domain {
	return rb.domain
}

// Contains returns whether (x, y) lies inside the buffer.
func (rb *RangeBuffer) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < rb.width && y < rb.height
}

func (rb *RangeBuffer) kxy(x, y int) int {
	return (y * rb.width) + x
}

// Get returns the sample at p.
func (rb *RangeBuffer) Get(p image.Point) float64 {
	return rb.data[rb.kxy(p.X, p.Y)]
}

// GetXY returns the sample at (x, y).
func (rb *RangeBuffer) GetXY(x, y int) float64 {
	return rb.data[rb.kxy(x, y)]
}

// Set stores v at (x, y).
func (rb *RangeBuffer) Set(x, y int, v float64) {
	rb.data[rb.kxy(x, y)] = v
}

// Valid returns whether the sample at (x, y) is a measurement.
func (rb *RangeBuffer) Valid(x, y int) bool {
	return rb.data[rb.kxy(x, y)] != 0
}

// Data returns the backing samples in row-major order. Writes through the slice modify the
// buffer.
func (rb *RangeBuffer) Data() []float64 {
	return rb.data
}

// ValidCount returns the number of non-zero samples.
func (rb *RangeBuffer) ValidCount() int {
	count := 0
	for _, v := range rb.data {
		if v != 0 {
			count++
		}
	}
	return count
}

// Clone returns a deep copy.
func (rb *RangeBuffer) Clone() *RangeBuffer {
	ret := &RangeBuffer{width: rb.width, height: rb.height, domain: rb.domain, data: make([]float64, len(rb.data))}
	copy(ret.data, rb.data)
	return ret
}

// WithDomain returns a zeroed buffer of the same size in the given domain.
func (rb *RangeBuffer) WithDomain(domain Domain) *RangeBuffer {
	return &RangeBuffer{width: rb.width, height: rb.height, domain: domain, data: make([]float64, len(rb.data))}
}

// RangeStats summarizes the valid samples of a buffer.
type RangeStats struct {
	Valid  int
	Min    float64
	Max    float64
	Median float64
}

// Stats computes summary statistics over the valid samples. A buffer without valid samples
// reports zero values.
func (rb *RangeBuffer) Stats() (RangeStats, error) {
	valid := rb.validSamples()
	if len(valid) == 0 {
		return RangeStats{}, nil
	}
	minV, err := stats.Min(valid)
	if err != nil {
		return RangeStats{}, err
	}
	maxV, err := stats.Max(valid)
	if err != nil {
		return RangeStats{}, err
	}
	median, err := stats.Median(valid)
	if err != nil {
		return RangeStats{}, err
	}
	return RangeStats{Valid: len(valid), Min: minV, Max: maxV, Median: median}, nil
}

func (rb *RangeBuffer) validSamples() stats.Float64Data {
	valid := make(stats.Float64Data, 0, len(rb.data))
	for _, v := range rb.data {
		if v != 0 {
			valid = append(valid, v)
		}
	}
	return valid
}
