package framesource

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"go.viam.com/depthcloud/rimage"
)

// StaticSource returns the same frame on every call, stamped with the current time.
type StaticSource struct {
	frame  Frame
	clock  clock.Clock
	closed atomic.Bool
}

// NewStaticSource returns a source repeating frame. The frame is copied so later changes by the
// caller are not observed.
func NewStaticSource(frame Frame, clk clock.Clock) (*StaticSource, error) {
	if err := rimage.CheckValid(frame.Depth); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &StaticSource{frame: copyFrame(frame), clock: clk}, nil
}

// NextFrame returns a fresh copy of the frame.
func (ss *StaticSource) NextFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if ss.closed.Load() {
		return Frame{}, ErrDeviceDisconnected
	}
	f := copyFrame(ss.frame)
	f.Timestamp = ss.clock.Now()
	return f, nil
}

// Close makes later NextFrame calls fail with ErrDeviceDisconnected.
func (ss *StaticSource) Close(ctx context.Context) error {
	ss.closed.Store(true)
	return nil
}
