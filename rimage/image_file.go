package rimage

import (
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	// register ppm.
	_ "github.com/lmittmann/ppm"
	// register qoi.
	_ "github.com/xfmoulet/qoi"
)

// ReadImageFromFile reads a color frame from any format registered with the image package.
func ReadImageFromFile(path string) (*Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading color frame %q", path)
	}
	return NewImageFromStdImage(img), nil
}

// WriteImageToFile writes img to path, choosing the encoding from the file extension.
func WriteImageToFile(path string, img image.Image) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".bmp":
		return imaging.Save(img, path)
	default:
		return errors.Errorf("unsupported image extension %q", filepath.Ext(path))
	}
}
