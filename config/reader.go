package config

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/depthcloud/logging"
)

// Read reads a config from the given file, expanding ${VAR} references from the environment.
// Relative directories in the file are resolved against the file's directory.
func Read(filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	conf, err := FromReader(filePath, bytes.NewReader(buf), logger)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(filePath)
	conf.Source.Dir = resolve(base, conf.Source.Dir)
	conf.Export.Dir = resolve(base, conf.Export.Dir)
	return conf, nil
}

func resolve(base, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}

// FromReader decodes and validates a config. source.dir may be left empty; Validate requires it.
// originalPath names the source in errors and may be empty.
func FromReader(originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	var attributes map[string]interface{}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&attributes); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", originalPath)
	}

	conf := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      conf,
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrapf(err, "cannot decode config %q", originalPath)
	}
	if err := conf.ValidateSettings(); err != nil {
		return nil, err
	}
	logger.Debugw("read config", "path", originalPath, "source", conf.Source.Dir, "export", conf.Export.Dir)
	return conf, nil
}
