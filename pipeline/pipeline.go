// Package pipeline turns a stream of raw depth frames into filtered, textured point clouds and
// tracks where the observed scene sits over time.
package pipeline

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/depthcloud/framesource"
	"go.viam.com/depthcloud/history"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/depthfilter"
	"go.viam.com/depthcloud/rimage/transform"
)

// ErrNoCloud is returned when exporting before any frame was processed.
var ErrNoCloud = errors.New("no point cloud has been produced yet")

// Result is the outcome of processing one frame.
type Result struct {
	// Index counts processed frames from zero.
	Index     int
	Timestamp time.Time
	// Filtered is the depth buffer after the filter chain.
	Filtered *rimage.RangeBuffer
	// Intrinsics describe Filtered's grid.
	Intrinsics transform.PinholeCameraIntrinsics
	Cloud      *pointcloud.Organized
	// Centroid is the mean of the valid vertices; HasCentroid is false when there are none.
	Centroid    r3.Vector
	HasCentroid bool
}

// A Pipeline owns one frame source and the state needed to process its stream: the filter
// chain, the reconstructor, the trajectory history and the latest cloud. Step and Run must be
// called from one goroutine at a time; the remaining methods may be called concurrently with
// them. Independent streams use independent pipelines.
type Pipeline struct {
	id            string
	src           framesource.Source
	chain         *depthfilter.Chain
	reconstructor *transform.Reconstructor
	exporter      *pointcloud.Exporter
	logger        logging.Logger

	// stepMu serializes use of the filter chain.
	stepMu sync.Mutex

	mu         sync.Mutex
	trajectory *history.Buffer[r3.Vector]
	current    *pointcloud.Organized
	processed  int
}

// New returns a pipeline reading from src. The pipeline closes src when it is closed.
func New(conf Config, src framesource.Source, logger logging.Logger) (*Pipeline, error) {
	if src == nil {
		return nil, errors.New("pipeline needs a frame source")
	}
	if err := conf.Validate("pipeline"); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	logger = logger.WithFields("session", id)

	chain, err := depthfilter.NewChain(conf.Filters, logger.Sublogger("filters"))
	if err != nil {
		return nil, err
	}
	exporter, err := pointcloud.NewExporter(conf.Export.Dir, conf.Export.Prefix, conf.Export.Format)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		id:            id,
		src:           src,
		chain:         chain,
		reconstructor: transform.NewReconstructor(conf.Reconstruction.Workers, logger.Sublogger("reconstruct")),
		exporter:      exporter,
		logger:        logger,
		trajectory:    history.New[r3.Vector](conf.History.Capacity),
	}
	logger.Infow("pipeline created",
		"decimation_factor", chain.DecimationFactor(),
		"workers", p.reconstructor.Workers,
		"export_dir", exporter.Dir,
		"history_capacity", conf.History.Capacity)
	return p, nil
}

// ID returns the session id tagged on the pipeline's logs.
func (p *Pipeline) ID() string {
	return p.id
}

// Step processes the next frame from the source. Errors from the source are returned as is so
// callers can match framesource.ErrStreamTimeout, framesource.ErrDeviceDisconnected and io.EOF.
func (p *Pipeline) Step(ctx context.Context) (*Result, error) {
	frame, err := p.src.NextFrame(ctx)
	if err != nil {
		return nil, err
	}
	if err := frame.Intrinsics.CheckMatches(frame.Depth); err != nil {
		return nil, errors.Wrap(err, "frame does not match its intrinsics")
	}

	p.stepMu.Lock()
	defer p.stepMu.Unlock()
	filtered, err := p.chain.Process(frame.Depth)
	if err != nil {
		return nil, errors.Wrap(err, "filtering frame")
	}
	intrinsics := frame.Intrinsics.Decimated(p.chain.DecimationFactor(), filtered.Width(), filtered.Height())
	cloud, err := p.reconstructor.Reconstruct(ctx, filtered, intrinsics, frame.Color, frame.Registration)
	if err != nil {
		return nil, err
	}
	centroid, hasCentroid := pointcloud.Centroid(cloud)
	stats, err := filtered.Stats()
	if err != nil {
		return nil, errors.Wrap(err, "summarizing filtered frame")
	}

	p.mu.Lock()
	if hasCentroid {
		p.trajectory.Push(centroid)
	}
	p.current = cloud
	index := p.processed
	p.processed++
	p.mu.Unlock()

	if !hasCentroid {
		p.logger.Debugw("frame has no valid depth", "index", index)
	} else {
		p.logger.Debugw("filtered frame", "index", index, "valid", stats.Valid, "min", stats.Min, "median", stats.Median)
	}
	return &Result{
		Index:       index,
		Timestamp:   frame.Timestamp,
		Filtered:    filtered,
		Intrinsics:  intrinsics,
		Cloud:       cloud,
		Centroid:    centroid,
		HasCentroid: hasCentroid,
	}, nil
}

// Run calls Step until ctx is done, frames frames were processed (no limit when frames <= 0),
// or an error occurs. onResult, when not nil, sees every result and may stop the run by
// returning an error. The source running out of frames ends the run without error.
func (p *Pipeline) Run(ctx context.Context, frames int, onResult func(*Result) error) error {
	start := time.Now()
	count := 0
	defer func() {
		p.logger.Infow("run finished", "frames", count, "elapsed", time.Since(start))
	}()
	for frames <= 0 || count < frames {
		res, err := p.Step(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		count++
		if onResult != nil {
			if err := onResult(res); err != nil {
				return err
			}
		}
	}
	return nil
}

// CurrentCloud returns the cloud of the last processed frame, or nil.
func (p *Pipeline) CurrentCloud() *pointcloud.Organized {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Trajectory returns the recorded centroids, newest first.
func (p *Pipeline) Trajectory() []r3.Vector {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]r3.Vector, 0, p.trajectory.Len())
	for v := range p.trajectory.NewestFirst() {
		out = append(out, v)
	}
	return out
}

// ExportCurrentCloud writes the current cloud to the next numbered file and returns its path.
func (p *Pipeline) ExportCurrentCloud() (string, error) {
	cloud := p.CurrentCloud()
	if cloud == nil {
		return "", ErrNoCloud
	}
	path, err := p.exporter.ExportNext(cloud)
	if err != nil {
		return "", err
	}
	p.logger.Infow("exported point cloud", "path", path, "points", cloud.Size())
	return path, nil
}

// ResetFilterChain drops the temporal filter state and the trajectory.
func (p *Pipeline) ResetFilterChain() {
	p.stepMu.Lock()
	p.chain.Reset()
	p.stepMu.Unlock()

	p.mu.Lock()
	p.trajectory.Clear()
	p.mu.Unlock()
	p.logger.Info("filter chain reset")
}

// Close closes the frame source.
func (p *Pipeline) Close(ctx context.Context) error {
	return errors.Wrap(p.src.Close(ctx), "closing frame source")
}
