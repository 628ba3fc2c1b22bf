package depthfilter

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Config holds the parameters of a Chain.
type Config struct {
	DecimationFactor    int         `json:"decimation_factor"`
	DisparityScale      float64     `json:"disparity_scale"`
	SpatialAlpha        float64     `json:"spatial_alpha"`
	SpatialDelta        float64     `json:"spatial_delta"`
	SpatialIterations   int         `json:"spatial_iterations"`
	HolesFill           HoleFill    `json:"holes_fill"`
	TemporalAlpha       float64     `json:"temporal_alpha"`
	TemporalDelta       float64     `json:"temporal_delta"`
	TemporalPersistence Persistence `json:"temporal_persistence"`
}

// DefaultConfig returns the settings used when a field is not configured: the smallest
// downsample that reduces noise and the strongest hole filling.
func DefaultConfig() Config {
	return Config{
		DecimationFactor:    2,
		DisparityScale:      DefaultDisparityScale,
		SpatialAlpha:        0.5,
		SpatialDelta:        20,
		SpatialIterations:   2,
		HolesFill:           HoleFillUnlimited,
		TemporalAlpha:       0.4,
		TemporalDelta:       20,
		TemporalPersistence: Valid2of4,
	}
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.DecimationFactor < MinDecimationFactor || conf.DecimationFactor > MaxDecimationFactor {
		return utils.NewConfigValidationError(path, errors.Errorf(
			"decimation_factor must be between %d and %d, got %d", MinDecimationFactor, MaxDecimationFactor, conf.DecimationFactor))
	}
	if err := checkScale(conf.DisparityScale); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if _, err := NewSpatial(conf.SpatialAlpha, conf.SpatialDelta, conf.SpatialIterations, conf.HolesFill); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if _, err := NewTemporal(conf.TemporalAlpha, conf.TemporalDelta, conf.TemporalPersistence); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}
