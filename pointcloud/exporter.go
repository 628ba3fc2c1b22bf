package pointcloud

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// Format selects the file format an Exporter writes.
type Format string

const (
	// FormatPLY writes ascii PLY.
	FormatPLY Format = "ply"
	// FormatPLYBinary writes little endian binary PLY.
	FormatPLYBinary Format = "ply_binary"
	// FormatPCD writes ascii PCD.
	FormatPCD Format = "pcd"
	// FormatPCDBinary writes binary PCD.
	FormatPCDBinary Format = "pcd_binary"
	// FormatLAS writes LAS.
	FormatLAS Format = "las"
)

// Extension returns the file extension, without the dot, used for f.
func (f Format) Extension() string {
	switch f {
	case FormatPLY, FormatPLYBinary:
		return "ply"
	case FormatPCD, FormatPCDBinary:
		return "pcd"
	case FormatLAS:
		return "las"
	default:
		return string(f)
	}
}

// Validate returns an error for unknown formats.
func (f Format) Validate() error {
	switch f {
	case FormatPLY, FormatPLYBinary, FormatPCD, FormatPCDBinary, FormatLAS:
		return nil
	default:
		return errors.Errorf("unknown point cloud format %q", string(f))
	}
}

// UnmarshalText parses a format name case insensitively.
func (f *Format) UnmarshalText(text []byte) error {
	parsed := Format(strings.ToLower(strings.TrimSpace(string(text))))
	if err := parsed.Validate(); err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Exporter writes point clouds to numbered files named <Prefix><NNN>.<ext> inside Dir. Numbers
// increase monotonically for the lifetime of the Exporter and names already taken on disk are
// skipped, so an export never replaces an earlier file. It is safe for concurrent use.
type Exporter struct {
	Dir    string
	Prefix string
	Format Format

	next atomic.Uint64
}

// NewExporter returns an Exporter writing into dir, which is created if missing.
func NewExporter(dir, prefix string, format Format) (*Exporter, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, NewWriteError(dir, err)
	}
	return &Exporter{Dir: dir, Prefix: prefix, Format: format}, nil
}

// Export writes the valid points of cloud to path in the exporter's format.
func (e *Exporter) Export(cloud PointCloud, path string) error {
	switch e.Format {
	case FormatPLY:
		return WriteToPLYFile(cloud, path, PLYAscii)
	case FormatPLYBinary:
		return WriteToPLYFile(cloud, path, PLYBinary)
	case FormatPCD, FormatPCDBinary:
		pcdType := PCDAscii
		if e.Format == FormatPCDBinary {
			pcdType = PCDBinary
		}
		return writePCDFile(cloud, path, pcdType)
	case FormatLAS:
		return WriteToLASFile(cloud, path)
	default:
		return NewWriteError(path, e.Format.Validate())
	}
}

// maxNameAttempts bounds how many taken names ExportNext skips before giving up.
const maxNameAttempts = 100000

// ExportNext writes cloud to the next free numbered file and returns its path.
func (e *Exporter) ExportNext(cloud PointCloud) (string, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		n := e.next.Inc() - 1
		path := filepath.Join(e.Dir, fmt.Sprintf("%s%03d.%s", e.Prefix, n, e.Format.Extension()))
		//nolint:gosec
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", NewWriteError(path, err)
		}
		// The name is reserved; the writers reopen it by path.
		if err := f.Close(); err != nil {
			return "", NewWriteError(path, err)
		}
		if err := e.Export(cloud, path); err != nil {
			// a failed export leaves no file behind, partial or reserved
			return "", multierr.Combine(err, os.Remove(path))
		}
		return path, nil
	}
	return "", NewWriteError(e.Dir, errors.Errorf("no free file name with prefix %q", e.Prefix))
}

func writePCDFile(cloud PointCloud, fn string, pcdType PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return NewWriteError(fn, err)
	}
	defer func() {
		err = NewWriteError(fn, multierr.Combine(err, f.Close()))
	}()
	return ToPCD(cloud, f, pcdType)
}
