package framesource

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/transform"
)

// CameraSystemFile is the optional file in a frame directory describing both cameras and the
// depth to color extrinsics.
const CameraSystemFile = "camera_system.json"

var (
	depthFilePattern = regexp.MustCompile(`^(\d+)_depth\.(png|dat\.gz|dat)$`)
	colorExtensions  = []string{".png", ".jpg", ".jpeg", ".ppm", ".qoi"}
)

// DirectoryConfig describes a directory of recorded frames named NNNNNN_depth.{png,dat.gz} with
// optional NNNNNN_color.{png,jpg,ppm,qoi} next to them.
type DirectoryConfig struct {
	Dir string `json:"dir"`
	// Follow waits for new frames once the recorded ones are consumed.
	Follow bool `json:"follow"`
	// Timeout bounds each wait in follow mode. Zero waits forever.
	Timeout time.Duration `json:"timeout"`
	// Intrinsics of the depth camera, used when the directory has no camera_system.json. Color
	// frames are then assumed to be aligned to depth.
	Intrinsics *transform.PinholeCameraIntrinsics `json:"intrinsics,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *DirectoryConfig) Validate(path string) error {
	if conf.Dir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "dir")
	}
	return conf.ValidateSettings(path)
}

// ValidateSettings is Validate without requiring Dir, for configs whose directory is supplied
// later.
func (conf *DirectoryConfig) ValidateSettings(path string) error {
	if conf.Timeout < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("timeout must not be negative, got %s", conf.Timeout))
	}
	if conf.Intrinsics != nil {
		if err := conf.Intrinsics.CheckValid(); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

// DirectorySource replays the frames of a directory in index order.
type DirectorySource struct {
	conf         DirectoryConfig
	clock        clock.Clock
	logger       logging.Logger
	intrinsics   transform.PinholeCameraIntrinsics
	registration transform.Registration

	// mu serializes NextFrame calls. Close does not take it.
	mu        sync.Mutex
	lastIndex int
	watcher   *fsnotify.Watcher

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewDirectorySource opens conf.Dir. In follow mode the directory is watched for new frames.
func NewDirectorySource(conf DirectoryConfig, clk clock.Clock, logger logging.Logger) (*DirectorySource, error) {
	if err := conf.Validate("source"); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	if _, err := os.Stat(conf.Dir); err != nil {
		return nil, errors.Wrapf(err, "cannot open frame directory %q", conf.Dir)
	}

	ds := &DirectorySource{conf: conf, clock: clk, logger: logger, lastIndex: -1, done: make(chan struct{})}
	systemPath := filepath.Join(conf.Dir, CameraSystemFile)
	switch _, err := os.Stat(systemPath); {
	case err == nil:
		system, err := transform.NewDepthColorIntrinsicsExtrinsicsFromJSONFile(systemPath)
		if err != nil {
			return nil, err
		}
		if err := system.CheckValid(); err != nil {
			return nil, errors.Wrapf(err, "invalid %s", systemPath)
		}
		ds.intrinsics = system.DepthCamera
		ds.registration = system
		logger.Debugw("using camera system", "path", systemPath)
	case conf.Intrinsics != nil:
		ds.intrinsics = *conf.Intrinsics
		ds.registration = transform.NewAlignedRegistration(ds.intrinsics)
	default:
		return nil, transform.NewNoIntrinsicsError(
			"frame directory " + conf.Dir + " has no " + CameraSystemFile + " and no intrinsics are configured")
	}

	hfov, vfov := ds.intrinsics.FieldOfView()
	logger.Debugw("depth camera", "width", ds.intrinsics.Width, "height", ds.intrinsics.Height,
		"hfov_deg", hfov, "vfov_deg", vfov)

	if conf.Follow {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		if err := watcher.Add(conf.Dir); err != nil {
			utils.UncheckedError(watcher.Close())
			return nil, errors.Wrapf(err, "cannot watch frame directory %q", conf.Dir)
		}
		ds.watcher = watcher
	}
	return ds, nil
}

// NextFrame reads the next frame after the last one returned. Without follow it returns io.EOF
// once every frame was read. With follow it waits for a new depth file to appear, and a newest
// file that cannot be decoded yet is retried on every directory change, since its writer may
// still be filling it. If the timeout passes first, the decode error is reported with
// ErrStreamTimeout.
func (ds *DirectorySource) NextFrame(ctx context.Context) (Frame, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.isClosed() {
		return Frame{}, errClosed
	}

	var timeout <-chan time.Time
	if ds.conf.Follow && ds.conf.Timeout > 0 {
		timer := ds.clock.Timer(ds.conf.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	var unreadable error
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		index, depthPath, newest, err := ds.nextDepthFile()
		if err != nil {
			return Frame{}, err
		}
		switch {
		case depthPath != "":
			frame, err := ds.readFrame(index, depthPath)
			if err == nil {
				ds.lastIndex = index
				return frame, nil
			}
			if !ds.conf.Follow || !newest {
				return Frame{}, err
			}
			if unreadable == nil {
				ds.logger.Debugw("frame not complete yet", "index", index, "error", err)
			}
			unreadable = err
		case !ds.conf.Follow:
			return Frame{}, io.EOF
		}

		select {
		case <-ds.done:
			return Frame{}, errClosed
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-timeout:
			if unreadable != nil {
				return Frame{}, errors.Wrapf(ErrStreamTimeout, "frame in %s still unreadable after %s: %v",
					ds.conf.Dir, ds.conf.Timeout, unreadable)
			}
			return Frame{}, errors.Wrapf(ErrStreamTimeout, "no frame in %s after %s", ds.conf.Dir, ds.conf.Timeout)
		case event, ok := <-ds.watcher.Events:
			if !ok {
				return Frame{}, errClosed
			}
			ds.logger.Debugw("frame directory changed", "event", event.String())
		case err, ok := <-ds.watcher.Errors:
			if !ok {
				return Frame{}, errClosed
			}
			ds.logger.Warnw("frame directory watch error", "error", err)
		}
	}
}

var errClosed = errors.Wrap(ErrDeviceDisconnected, "source is closed")

func (ds *DirectorySource) isClosed() bool {
	select {
	case <-ds.done:
		return true
	default:
		return false
	}
}

// nextDepthFile returns the depth file with the smallest index after lastIndex, or an empty path
// when there is none yet. newest reports that no file with a larger index exists.
func (ds *DirectorySource) nextDepthFile() (index int, path string, newest bool, err error) {
	entries, err := os.ReadDir(ds.conf.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, "", false, errors.Wrapf(ErrDeviceDisconnected, "frame directory %q is gone", ds.conf.Dir)
		}
		return 0, "", false, err
	}
	type candidate struct {
		index int
		name  string
	}
	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := depthFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		index, err := strconv.Atoi(match[1])
		if err != nil || index <= ds.lastIndex {
			continue
		}
		candidates = append(candidates, candidate{index, entry.Name()})
	}
	if len(candidates) == 0 {
		return 0, "", false, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].index != candidates[j].index {
			return candidates[i].index < candidates[j].index
		}
		return candidates[i].name < candidates[j].name
	})
	first, last := candidates[0], candidates[len(candidates)-1]
	return first.index, filepath.Join(ds.conf.Dir, first.name), first.index == last.index, nil
}

func (ds *DirectorySource) readFrame(index int, depthPath string) (Frame, error) {
	depth, err := rimage.NewRangeBufferFromFile(depthPath)
	if err != nil {
		return Frame{}, errors.Wrapf(err, "reading frame %d", index)
	}
	frame := Frame{
		Depth:        depth,
		Intrinsics:   ds.intrinsics,
		Registration: ds.registration,
		Timestamp:    ds.clock.Now(),
	}
	prefix := depthFilePattern.FindStringSubmatch(filepath.Base(depthPath))[1]
	for _, ext := range colorExtensions {
		colorPath := filepath.Join(ds.conf.Dir, prefix+"_color"+ext)
		if _, err := os.Stat(colorPath); err != nil {
			continue
		}
		img, err := rimage.ReadImageFromFile(colorPath)
		if err != nil {
			return Frame{}, errors.Wrapf(err, "reading frame %d", index)
		}
		frame.Color = img
		break
	}
	if frame.Color == nil {
		ds.logger.Debugw("frame has no color image", "index", index)
	}
	return frame, nil
}

// Close stops watching the directory and wakes a blocked NextFrame. Later NextFrame calls fail
// with ErrDeviceDisconnected.
func (ds *DirectorySource) Close(ctx context.Context) error {
	ds.closeOnce.Do(func() {
		close(ds.done)
		if ds.watcher != nil {
			ds.closeErr = ds.watcher.Close()
		}
	})
	return ds.closeErr
}
