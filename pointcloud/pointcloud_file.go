package pointcloud

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/depthcloud/logging"
)

// NewFromFile reads a cloud from disk, picking the decoder from the file extension.
func NewFromFile(fn string, logger logging.Logger) (PointCloud, error) {
	ext := strings.ToLower(filepath.Ext(fn))
	if ext == ".las" {
		return NewFromLASFile(fn, logger)
	}
	var decode func(*os.File) (PointCloud, error)
	switch ext {
	case ".pcd":
		decode = func(f *os.File) (PointCloud, error) { return ReadPCD(f) }
	case ".ply":
		decode = func(f *os.File) (PointCloud, error) { return ReadPLY(f) }
	default:
		return nil, errors.Errorf("unsupported point cloud file %q", fn)
	}

	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return decode(f)
}
