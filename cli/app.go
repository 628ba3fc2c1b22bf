// Package cli contains the depthcloud command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/depthcloud/logging"
)

const (
	generalFlagConfig = "config"
	generalFlagDebug  = "debug"

	processFlagFrames      = "frames"
	processFlagExportEvery = "export-every"
	processFlagSnapshotDir = "snapshot-dir"

	inspectFlagBins = "bins"
)

var app = &cli.App{
	Name:            "depthcloud",
	Usage:           "filter recorded depth frames into point clouds",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    generalFlagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "process",
			Usage:     "run the filter and reconstruction pipeline over frame directories",
			ArgsUsage: "[DIR...]",
			UsageText: "depthcloud [--config FILE] process [--frames N] [--export-every N] [--snapshot-dir DIR] [DIR...]",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  processFlagFrames,
					Usage: "stop after `N` frames per directory (0 processes every frame)",
				},
				&cli.IntFlag{
					Name:  processFlagExportEvery,
					Usage: "export the cloud of every `N`th frame (0 exports only the last one)",
				},
				&cli.StringFlag{
					Name:  processFlagSnapshotDir,
					Usage: "write a colorized image of every filtered depth frame to `DIR`",
				},
			},
			Action: ProcessAction,
		},
		{
			Name:      "inspect",
			Usage:     "print statistics of exported point cloud files",
			ArgsUsage: "FILE...",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  inspectFlagBins,
					Value: 10,
					Usage: "number of depth histogram `BINS`",
				},
			},
			Action: InspectAction,
		},
	},
}

// NewApp returns the CLI application writing normal output to out.
func NewApp(out io.Writer) *cli.App {
	app.Writer = out
	return app
}

func newLogger(c *cli.Context, level logging.Level) logging.Logger {
	logger := logging.NewLogger("depthcloud")
	if c.Bool(generalFlagDebug) {
		level = logging.DEBUG
	}
	logger.SetLevel(level)
	return logger
}
