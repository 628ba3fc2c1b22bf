package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthcloud/framesource"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/depthfilter"
	"go.viam.com/depthcloud/rimage/transform"
)

var scenarioIntrinsics = transform.PinholeCameraIntrinsics{Width: 4, Height: 4, Fx: 2, Fy: 2, Ppx: 1.5, Ppy: 1.5}

// scenarioFrame is a flat wall at 1000 with one dropped pixel at (2, 1).
func scenarioFrame(t *testing.T) framesource.Frame {
	t.Helper()
	depth, err := rimage.NewRangeBuffer(4, 4, rimage.DepthDomain)
	test.That(t, err, test.ShouldBeNil)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			depth.Set(x, y, 1000)
		}
	}
	depth.Set(2, 1, 0)
	return framesource.Frame{Depth: depth, Intrinsics: scenarioIntrinsics}
}

// passThroughConfig keeps every pixel where it is so results can be checked exactly.
func passThroughConfig(t *testing.T) Config {
	conf := DefaultConfig()
	conf.Filters.DecimationFactor = 1
	conf.Filters.HolesFill = depthfilter.HoleFillDisabled
	conf.Export.Dir = t.TempDir()
	conf.Export.Prefix = "cloud"
	return conf
}

func newStatic(t *testing.T, frame framesource.Frame) framesource.Source {
	t.Helper()
	src, err := framesource.NewStaticSource(frame, nil)
	test.That(t, err, test.ShouldBeNil)
	return src
}

func TestPipelineScenario(t *testing.T) {
	logger := logging.NewTestLogger(t)
	conf := passThroughConfig(t)
	p, err := New(conf, newStatic(t, scenarioFrame(t)), logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, p.Close(context.Background()), test.ShouldBeNil)
	}()
	test.That(t, p.ID(), test.ShouldNotBeEmpty)

	_, err = p.ExportCurrentCloud()
	test.That(t, err, test.ShouldEqual, ErrNoCloud)

	res, err := p.Step(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Index, test.ShouldEqual, 0)
	test.That(t, res.Cloud.ValidCount(), test.ShouldEqual, 15)
	_, _, _, ok := res.Cloud.At(2, 1)
	test.That(t, ok, test.ShouldBeFalse)
	v, _, c, ok := res.Cloud.At(0, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldResemble, r3.Vector{X: -750, Y: -750, Z: 1000})
	test.That(t, c, test.ShouldResemble, pointcloud.NeutralColor)

	test.That(t, res.HasCentroid, test.ShouldBeTrue)
	test.That(t, res.Centroid.X, test.ShouldAlmostEqual, -250.0/15)
	test.That(t, res.Centroid.Y, test.ShouldAlmostEqual, 250.0/15)
	test.That(t, res.Centroid.Z, test.ShouldAlmostEqual, 1000.0)
	test.That(t, p.Trajectory(), test.ShouldHaveLength, 1)
	test.That(t, p.CurrentCloud(), test.ShouldEqual, res.Cloud)

	path, err := p.ExportCurrentCloud()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filepath.Base(path), test.ShouldEqual, "cloud000.ply")
	exported, err := pointcloud.NewFromFile(path, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, exported.Size(), test.ShouldEqual, 15)

	path, err = p.ExportCurrentCloud()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filepath.Base(path), test.ShouldEqual, "cloud001.ply")
}

func TestPipelineLogsFilteredStats(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	p, err := New(passThroughConfig(t), newStatic(t, scenarioFrame(t)), logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, p.Close(context.Background()), test.ShouldBeNil)
	}()

	_, err = p.Step(context.Background())
	test.That(t, err, test.ShouldBeNil)
	entries := logs.FilterMessage("filtered frame").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	fields := entries[0].ContextMap()
	test.That(t, fields["valid"], test.ShouldEqual, int64(15))
	test.That(t, fields["min"], test.ShouldAlmostEqual, 1000.0, 1e-6)
	test.That(t, fields["median"], test.ShouldAlmostEqual, 1000.0, 1e-6)
}

func TestPipelineDecimates(t *testing.T) {
	logger := logging.NewTestLogger(t)
	depth, err := rimage.NewRangeBuffer(64, 48, rimage.DepthDomain)
	test.That(t, err, test.ShouldBeNil)
	for i := range depth.Data() {
		depth.Data()[i] = 1500
	}
	intrinsics := transform.PinholeCameraIntrinsics{Width: 64, Height: 48, Fx: 60, Fy: 60, Ppx: 31.5, Ppy: 23.5}
	conf := DefaultConfig()
	conf.Export.Dir = t.TempDir()
	p, err := New(conf, newStatic(t, framesource.Frame{Depth: depth, Intrinsics: intrinsics}), logger)
	test.That(t, err, test.ShouldBeNil)

	res, err := p.Step(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Filtered.Width(), test.ShouldEqual, 32)
	test.That(t, res.Filtered.Height(), test.ShouldEqual, 24)
	test.That(t, res.Intrinsics.Width, test.ShouldEqual, 32)
	test.That(t, res.Intrinsics.Fx, test.ShouldAlmostEqual, 30.0)
	test.That(t, res.Intrinsics.Ppx, test.ShouldAlmostEqual, 15.5)
	test.That(t, res.Cloud.Width(), test.ShouldEqual, 32)
	test.That(t, res.Cloud.ValidCount(), test.ShouldEqual, 32*24)
	// a centred flat wall stays centred
	test.That(t, res.Centroid.X, test.ShouldAlmostEqual, 0.0, 1e-6)
	test.That(t, res.Centroid.Y, test.ShouldAlmostEqual, 0.0, 1e-6)
}

func TestPipelineRunAndReset(t *testing.T) {
	logger := logging.NewTestLogger(t)
	conf := passThroughConfig(t)
	conf.History.Capacity = 2
	p, err := New(conf, newStatic(t, scenarioFrame(t)), logger)
	test.That(t, err, test.ShouldBeNil)

	var indices []int
	err = p.Run(context.Background(), 3, func(res *Result) error {
		indices = append(indices, res.Index)
		return nil
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, indices, test.ShouldResemble, []int{0, 1, 2})
	test.That(t, p.Trajectory(), test.ShouldHaveLength, 2)

	p.ResetFilterChain()
	test.That(t, p.Trajectory(), test.ShouldHaveLength, 0)

	stop := errors.New("stop")
	err = p.Run(context.Background(), 0, func(res *Result) error {
		if res.Index == 4 {
			return stop
		}
		return nil
	})
	test.That(t, err, test.ShouldEqual, stop)
	test.That(t, p.Trajectory(), test.ShouldHaveLength, 2)
}

func TestPipelineRunEndsAtEOF(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	frame := scenarioFrame(t)
	for i := 0; i < 3; i++ {
		test.That(t, frame.Depth.WriteToFile(filepath.Join(dir, fmt.Sprintf("%06d_depth.png", i))), test.ShouldBeNil)
	}
	intrinsics := scenarioIntrinsics
	src, err := framesource.NewDirectorySource(framesource.DirectoryConfig{Dir: dir, Intrinsics: &intrinsics}, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	p, err := New(passThroughConfig(t), src, logger)
	test.That(t, err, test.ShouldBeNil)

	count := 0
	err = p.Run(context.Background(), 0, func(*Result) error {
		count++
		return nil
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, count, test.ShouldEqual, 3)
}

type failingSource struct {
	err error
}

func (fs *failingSource) NextFrame(ctx context.Context) (framesource.Frame, error) {
	return framesource.Frame{}, fs.err
}

func (fs *failingSource) Close(ctx context.Context) error {
	return nil
}

func TestPipelineSourceErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	for _, sourceErr := range []error{framesource.ErrStreamTimeout, framesource.ErrDeviceDisconnected} {
		p, err := New(passThroughConfig(t), &failingSource{err: errors.Wrap(sourceErr, "camera")}, logger)
		test.That(t, err, test.ShouldBeNil)
		_, err = p.Step(context.Background())
		test.That(t, errors.Is(err, sourceErr), test.ShouldBeTrue)
		err = p.Run(context.Background(), 0, nil)
		test.That(t, errors.Is(err, sourceErr), test.ShouldBeTrue)
	}
}

func TestPipelineRejectsMismatchedIntrinsics(t *testing.T) {
	logger := logging.NewTestLogger(t)
	frame := scenarioFrame(t)
	frame.Intrinsics.Width = 8
	p, err := New(passThroughConfig(t), newStatic(t, frame), logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = p.Step(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, p.CurrentCloud(), test.ShouldBeNil)
}

func TestNewValidates(t *testing.T) {
	logger := logging.NewTestLogger(t)
	src := newStatic(t, scenarioFrame(t))

	_, err := New(DefaultConfig(), nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	for _, mutate := range []func(c *Config){
		func(c *Config) { c.Filters.DecimationFactor = 0 },
		func(c *Config) { c.Reconstruction.Workers = -1 },
		func(c *Config) { c.Export.Format = "obj" },
		func(c *Config) { c.History.Capacity = 0 },
	} {
		conf := passThroughConfig(t)
		mutate(&conf)
		_, err := New(conf, src, logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "pipeline")
	}

	conf := passThroughConfig(t)
	conf.Export.Dir = filepath.Join(conf.Export.Dir, "nested", "exports")
	_, err = New(conf, src, logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = os.Stat(conf.Export.Dir)
	test.That(t, err, test.ShouldBeNil)
}
