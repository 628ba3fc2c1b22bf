package depthfilter

import (
	"slices"

	"github.com/pkg/errors"

	"go.viam.com/depthcloud/rimage"
)

const (
	// MinDecimationFactor is a pass-through.
	MinDecimationFactor = 1
	// MaxDecimationFactor is the coarsest supported downsample.
	MaxDecimationFactor = 8
	// maxMedianFactor is the largest factor aggregated with a median; larger blocks use a mean.
	maxMedianFactor = 3
)

// Decimation downsamples a depth buffer by Factor along both axes. Each output sample aggregates
// the valid samples of one Factor x Factor block: the median for factors up to 3 and the mean
// above. Output dimensions are floor(W/Factor) x floor(H/Factor), dropping partial trailing
// blocks, but never less than 1; a dimension smaller than Factor collapses to a single block of
// what is available.
type Decimation struct {
	Factor int

	scratch []float64
}

// NewDecimation returns a decimation stage for factor.
func NewDecimation(factor int) (*Decimation, error) {
	if factor < MinDecimationFactor || factor > MaxDecimationFactor {
		return nil, errors.Errorf("decimation factor must be between %d and %d, got %d",
			MinDecimationFactor, MaxDecimationFactor, factor)
	}
	return &Decimation{Factor: factor}, nil
}

// Name returns "decimation".
func (d *Decimation) Name() string {
	return "decimation"
}

// Reset is a no-op.
func (d *Decimation) Reset() {}

// OutputSize returns the resolution Process produces for a width x height input.
func (d *Decimation) OutputSize(width, height int) (int, int) {
	if d.Factor <= 1 {
		return width, height
	}
	return max(1, width/d.Factor), max(1, height/d.Factor)
}

// Process downsamples in.
func (d *Decimation) Process(in *rimage.RangeBuffer) (*rimage.RangeBuffer, error) {
	if err := checkInput(d.Name(), in, rimage.DepthDomain); err != nil {
		return nil, err
	}
	if d.Factor <= 1 {
		return in.Clone(), nil
	}

	f := d.Factor
	outW, outH := d.OutputSize(in.Width(), in.Height())
	out, err := rimage.NewRangeBuffer(outW, outH, rimage.DepthDomain)
	if err != nil {
		return nil, err
	}
	if cap(d.scratch) < f*f {
		d.scratch = make([]float64, 0, f*f)
	}
	for oy := 0; oy < outH; oy++ {
		yEnd := min((oy+1)*f, in.Height())
		for ox := 0; ox < outW; ox++ {
			xEnd := min((ox+1)*f, in.Width())
			block := d.scratch[:0]
			for y := oy * f; y < yEnd; y++ {
				for x := ox * f; x < xEnd; x++ {
					if v := in.GetXY(x, y); v > 0 {
						block = append(block, v)
					}
				}
			}
			out.Set(ox, oy, aggregate(block, f))
		}
	}
	return out, nil
}

func aggregate(block []float64, factor int) float64 {
	if len(block) == 0 {
		return 0
	}
	if factor <= maxMedianFactor {
		slices.Sort(block)
		mid := len(block) / 2
		if len(block)%2 == 1 {
			return block[mid]
		}
		return (block[mid-1] + block[mid]) / 2
	}
	sum := 0.0
	for _, v := range block {
		sum += v
	}
	return sum / float64(len(block))
}
