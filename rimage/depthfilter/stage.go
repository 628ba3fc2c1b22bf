// Package depthfilter implements the depth post-processing chain: decimation, conversion to the
// disparity domain, edge preserving spatial smoothing with hole filling, temporal smoothing with
// persistence, and conversion back to depth.
package depthfilter

import (
	"go.viam.com/depthcloud/rimage"
)

// Stage transforms one range buffer into another. Stages never modify their input.
type Stage interface {
	// Name identifies the stage in logs.
	Name() string
	// Process returns the stage's output for in, updating any state the stage keeps across
	// frames.
	Process(in *rimage.RangeBuffer) (*rimage.RangeBuffer, error)
	// Reset clears state kept across frames.
	Reset()
}

func checkInput(name string, in *rimage.RangeBuffer, domain rimage.Domain) error {
	if err := rimage.CheckValid(in); err != nil {
		return err
	}
	if in.Domain() != domain {
		return rimage.NewInvalidInputError("%s expects a %s buffer but got %s", name, domain, in.Domain())
	}
	return nil
}
