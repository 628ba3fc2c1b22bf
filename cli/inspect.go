package cli

import (
	"fmt"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/pointcloud"
)

const histogramWidth = 40

// InspectAction prints the size, bounds and depth distribution of point cloud files.
func InspectAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("inspect needs at least one point cloud file")
	}
	bins := c.Int(inspectFlagBins)
	if bins < 1 {
		return errors.Errorf("--%s must be at least 1", inspectFlagBins)
	}
	logger := newLogger(c, logging.WARN)
	for _, path := range c.Args().Slice() {
		cloud, err := pointcloud.NewFromFile(path, logger)
		if err != nil {
			return err
		}
		if err := printCloudSummary(c, path, cloud, bins); err != nil {
			return err
		}
	}
	return nil
}

func printCloudSummary(c *cli.Context, path string, cloud pointcloud.PointCloud, bins int) error {
	w := c.App.Writer
	meta := cloud.MetaData()
	fmt.Fprintf(w, "%s: %d points, color: %t\n", path, cloud.Size(), meta.HasColor)
	if cloud.Size() == 0 {
		return nil
	}
	fmt.Fprintf(w, "  min (%.1f, %.1f, %.1f) max (%.1f, %.1f, %.1f)\n",
		meta.MinX, meta.MinY, meta.MinZ, meta.MaxX, meta.MaxY, meta.MaxZ)
	if centroid, ok := pointcloud.Centroid(cloud); ok {
		fmt.Fprintf(w, "  centroid (%.1f, %.1f, %.1f)\n", centroid.X, centroid.Y, centroid.Z)
	}

	depths := make([]float64, 0, cloud.Size())
	cloud.Iterate(0, 0, func(p r3.Vector, _ pointcloud.Data) bool {
		depths = append(depths, p.Z)
		return true
	})
	if meta.MaxZ == meta.MinZ {
		fmt.Fprintf(w, "  every point at depth %.1f\n", meta.MinZ)
		return nil
	}
	return histogram.Fprint(w, histogram.Hist(bins, depths), histogram.Linear(histogramWidth))
}
