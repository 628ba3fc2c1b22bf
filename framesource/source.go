// Package framesource defines where depth frames come from and provides sources that replay
// frames from memory or from a directory of recorded frames.
package framesource

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/transform"
)

var (
	// ErrStreamTimeout is returned when no frame arrived within the configured timeout.
	ErrStreamTimeout = errors.New("timed out waiting for a frame")
	// ErrDeviceDisconnected is returned once the source can no longer produce frames.
	ErrDeviceDisconnected = errors.New("frame source disconnected")
)

// Frame is one synchronized depth and color capture. Color and Registration may be nil, in which
// case reconstructed points get the neutral color.
type Frame struct {
	Depth        *rimage.RangeBuffer
	Color        *rimage.Image
	Intrinsics   transform.PinholeCameraIntrinsics
	Registration transform.Registration
	Timestamp    time.Time
}

// Source produces frames. NextFrame blocks until a frame is ready, the context is done, or the
// source fails with ErrStreamTimeout, ErrDeviceDisconnected or io.EOF.
type Source interface {
	NextFrame(ctx context.Context) (Frame, error)
	Close(ctx context.Context) error
}

// copyFrame returns a frame that shares no sample storage with f.
func copyFrame(f Frame) Frame {
	out := f
	if f.Depth != nil {
		out.Depth = f.Depth.Clone()
	}
	if f.Color != nil {
		out.Color = rimage.NewImageFromStdImage(f.Color)
	}
	return out
}
