// Package config reads the JSON configuration of a depthcloud run.
package config

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/depthcloud/framesource"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/pipeline"
	"go.viam.com/depthcloud/rimage/depthfilter"
)

// Config describes where frames come from and how they are processed and exported.
type Config struct {
	Source         framesource.DirectoryConfig   `json:"source"`
	Filters        depthfilter.Config            `json:"filters"`
	Reconstruction pipeline.ReconstructionConfig `json:"reconstruction"`
	Export         pipeline.ExportConfig         `json:"export"`
	History        pipeline.HistoryConfig        `json:"history"`
	LogLevel       logging.Level                 `json:"log_level"`
}

// Default returns a config with every optional field set. Source.Dir has no default.
func Default() *Config {
	pipe := pipeline.DefaultConfig()
	return &Config{
		Filters:        pipe.Filters,
		Reconstruction: pipe.Reconstruction,
		Export:         pipe.Export,
		History:        pipe.History,
		LogLevel:       logging.INFO,
	}
}

// Pipeline returns the part of the config a pipeline.Pipeline is built from.
func (conf *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Filters:        conf.Filters,
		Reconstruction: conf.Reconstruction,
		Export:         conf.Export,
		History:        conf.History,
	}
}

// Validate ensures all parts of the config are valid, including that source.dir is set.
func (conf *Config) Validate() error {
	if err := conf.Source.Validate("source"); err != nil {
		return err
	}
	return conf.validatePipeline()
}

// ValidateSettings is Validate with source.dir optional, since directories may also be given on
// the command line.
func (conf *Config) ValidateSettings() error {
	if err := conf.Source.ValidateSettings("source"); err != nil {
		return err
	}
	return conf.validatePipeline()
}

func (conf *Config) validatePipeline() error {
	pipe := conf.Pipeline()
	if err := pipe.Validate(""); err != nil {
		return err
	}
	if conf.LogLevel < logging.DEBUG || conf.LogLevel > logging.ERROR {
		return utils.NewConfigValidationError("log_level", errors.Errorf("unknown log level %d", conf.LogLevel))
	}
	return nil
}
