package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/rimage/depthfilter"
)

// DefaultHistoryCapacity is how many positions the trajectory keeps unless configured.
const DefaultHistoryCapacity = 30

// ReconstructionConfig configures point cloud reconstruction.
type ReconstructionConfig struct {
	// Workers is the number of goroutines deprojecting rows. Zero uses every available CPU.
	Workers int `json:"workers"`
}

// ExportConfig configures where exported clouds go.
type ExportConfig struct {
	Dir    string            `json:"dir"`
	Prefix string            `json:"prefix"`
	Format pointcloud.Format `json:"format"`
}

// HistoryConfig configures the trajectory history.
type HistoryConfig struct {
	Capacity int `json:"capacity"`
}

// Config holds everything a Pipeline needs besides its frame source.
type Config struct {
	Filters        depthfilter.Config   `json:"filters"`
	Reconstruction ReconstructionConfig `json:"reconstruction"`
	Export         ExportConfig         `json:"export"`
	History        HistoryConfig        `json:"history"`
}

// DefaultConfig returns a config with every field set to its default.
func DefaultConfig() Config {
	return Config{
		Filters: depthfilter.DefaultConfig(),
		Export: ExportConfig{
			Dir:    ".",
			Format: pointcloud.FormatPLY,
		},
		History: HistoryConfig{Capacity: DefaultHistoryCapacity},
	}
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if err := conf.Filters.Validate(fieldPath(path, "filters")); err != nil {
		return err
	}
	if conf.Reconstruction.Workers < 0 {
		return utils.NewConfigValidationError(fieldPath(path, "reconstruction"),
			errors.Errorf("workers must not be negative, got %d", conf.Reconstruction.Workers))
	}
	if err := conf.Export.Format.Validate(); err != nil {
		return utils.NewConfigValidationError(fieldPath(path, "export"), err)
	}
	if conf.History.Capacity < 1 {
		return utils.NewConfigValidationError(fieldPath(path, "history"),
			errors.Errorf("capacity must be at least 1, got %d", conf.History.Capacity))
	}
	return nil
}

func fieldPath(path, field string) string {
	if path == "" {
		return field
	}
	return fmt.Sprintf("%s.%s", path, field)
}
