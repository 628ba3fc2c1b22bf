package depthfilter

import (
	"github.com/pkg/errors"

	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/rimage"
)

// Chain runs the fixed sequence decimation, depth to disparity, spatial, temporal and disparity
// to depth over each raw depth frame. The temporal stage keeps state between calls, so a Chain
// must only be used by one goroutine at a time.
type Chain struct {
	decimation *Decimation
	temporal   *Temporal
	stages     []Stage

	logger                logging.Logger
	lastWidth, lastHeight int
}

// NewChain builds a chain from conf.
func NewChain(conf Config, logger logging.Logger) (*Chain, error) {
	if err := conf.Validate("filters"); err != nil {
		return nil, err
	}
	decimation, err := NewDecimation(conf.DecimationFactor)
	if err != nil {
		return nil, err
	}
	toDisparity, err := NewDepthToDisparity(conf.DisparityScale)
	if err != nil {
		return nil, err
	}
	spatial, err := NewSpatial(conf.SpatialAlpha, conf.SpatialDelta, conf.SpatialIterations, conf.HolesFill)
	if err != nil {
		return nil, err
	}
	temporal, err := NewTemporal(conf.TemporalAlpha, conf.TemporalDelta, conf.TemporalPersistence)
	if err != nil {
		return nil, err
	}
	toDepth, err := NewDisparityToDepth(conf.DisparityScale)
	if err != nil {
		return nil, err
	}
	return &Chain{
		decimation: decimation,
		temporal:   temporal,
		stages:     []Stage{decimation, toDisparity, spatial, temporal, toDepth},
		logger:     logger,
	}, nil
}

// Stages returns the stages in the order they run.
func (c *Chain) Stages() []Stage {
	return append([]Stage(nil), c.stages...)
}

// DecimationFactor returns the factor the first stage downsamples by.
func (c *Chain) DecimationFactor() int {
	return c.decimation.Factor
}

// OutputSize returns the resolution Process produces for a width x height input.
func (c *Chain) OutputSize(width, height int) (int, int) {
	return c.decimation.OutputSize(width, height)
}

// Process filters one raw depth frame. raw is not modified.
func (c *Chain) Process(raw *rimage.RangeBuffer) (*rimage.RangeBuffer, error) {
	if err := rimage.CheckValid(raw); err != nil {
		return nil, err
	}
	if c.temporal.Primed() && (raw.Width() != c.lastWidth || raw.Height() != c.lastHeight) {
		c.logger.Infow("depth resolution changed, dropping temporal state",
			"from_width", c.lastWidth, "from_height", c.lastHeight, "to_width", raw.Width(), "to_height", raw.Height())
		c.temporal.Reset()
	}
	c.lastWidth, c.lastHeight = raw.Width(), raw.Height()

	buf := raw
	for _, stage := range c.stages {
		next, err := stage.Process(buf)
		if err != nil {
			return nil, errors.Wrapf(err, "%s stage", stage.Name())
		}
		buf = next
	}
	return buf, nil
}

// Reset clears the state of every stage.
func (c *Chain) Reset() {
	for _, stage := range c.stages {
		stage.Reset()
	}
	c.logger.Debug("filter chain reset")
}
