package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/depthcloud/config"
	"go.viam.com/depthcloud/framesource"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/pipeline"
	"go.viam.com/depthcloud/rimage"
)

type processArgs struct {
	frames      int
	exportEvery int
	snapshotDir string
}

// ProcessAction runs one pipeline per frame directory, all concurrently.
func ProcessAction(c *cli.Context) error {
	conf := config.Default()
	if path := c.String(generalFlagConfig); path != "" {
		var err error
		conf, err = config.Read(path, logging.NewBlankLogger("config"))
		if err != nil {
			return err
		}
	}
	logger := newLogger(c, conf.LogLevel)
	defer utils.UncheckedErrorFunc(logger.Sync)

	dirs := c.Args().Slice()
	if len(dirs) == 0 {
		if conf.Source.Dir == "" {
			return errors.New("no frame directory given in the config or as an argument")
		}
		dirs = []string{conf.Source.Dir}
	}
	args := processArgs{
		frames:      c.Int(processFlagFrames),
		exportEvery: c.Int(processFlagExportEvery),
		snapshotDir: c.String(processFlagSnapshotDir),
	}
	if args.frames < 0 || args.exportEvery < 0 {
		return errors.Errorf("--%s and --%s must not be negative", processFlagFrames, processFlagExportEvery)
	}
	if args.snapshotDir != "" {
		if err := os.MkdirAll(args.snapshotDir, 0o750); err != nil {
			return err
		}
	}

	out := &lockedWriter{w: c.App.Writer}
	group, ctx := errgroup.WithContext(c.Context)
	for _, dir := range dirs {
		dirConf := *conf
		dirConf.Source.Dir = dir
		if len(dirs) > 1 {
			dirConf.Export.Prefix = filepath.Base(dir) + "_" + conf.Export.Prefix
		}
		group.Go(func() error {
			return processDirectory(ctx, out, &dirConf, args, logger.Sublogger(filepath.Base(dir)))
		})
	}
	return group.Wait()
}

func processDirectory(ctx context.Context, out io.Writer, conf *config.Config, args processArgs, logger logging.Logger) (err error) {
	if err := conf.Validate(); err != nil {
		return err
	}
	src, err := framesource.NewDirectorySource(conf.Source, nil, logger)
	if err != nil {
		return err
	}
	p, err := pipeline.New(conf.Pipeline(), src, logger)
	if err != nil {
		return multierr.Combine(err, src.Close(ctx))
	}
	defer func() {
		err = multierr.Combine(err, p.Close(context.Background()))
	}()

	exported := 0
	lastExported := -1
	var last *pipeline.Result
	err = p.Run(ctx, args.frames, func(res *pipeline.Result) error {
		last = res
		if args.snapshotDir != "" {
			if err := writeSnapshot(args.snapshotDir, p.ID(), res); err != nil {
				return err
			}
		}
		if args.exportEvery > 0 && (res.Index+1)%args.exportEvery == 0 {
			if _, err := p.ExportCurrentCloud(); err != nil {
				return err
			}
			exported++
			lastExported = res.Index
		}
		return nil
	})
	if err != nil {
		return err
	}
	if last == nil {
		fmt.Fprintf(out, "%s: no frames\n", conf.Source.Dir)
		return nil
	}
	if lastExported != last.Index {
		if _, err := p.ExportCurrentCloud(); err != nil {
			return err
		}
		exported++
	}

	trajectory := p.Trajectory()
	fmt.Fprintf(out, "%s: %d frames, %d clouds exported to %s, %d positions tracked\n",
		conf.Source.Dir, last.Index+1, exported, conf.Export.Dir, len(trajectory))
	if len(trajectory) > 0 {
		newest := trajectory[0]
		fmt.Fprintf(out, "%s: latest centroid (%.1f, %.1f, %.1f)\n", conf.Source.Dir, newest.X, newest.Y, newest.Z)
	}
	return nil
}

func writeSnapshot(dir, session string, res *pipeline.Result) error {
	img, err := rimage.Colorize(res.Filtered, 0, 0)
	if err != nil {
		return err
	}
	return rimage.WriteImageToFile(filepath.Join(dir, fmt.Sprintf("%s_%06d.png", session, res.Index)), img)
}

// lockedWriter serializes writes from concurrent pipelines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}
