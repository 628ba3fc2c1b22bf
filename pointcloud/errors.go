package pointcloud

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrWrite is matched by every error returned from a failed export.
var ErrWrite = errors.New("point cloud write failed")

// WriteError describes a failed export to Path.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: writing %q: %v", ErrWrite, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrWrite.
func (e *WriteError) Is(target error) bool {
	return target == ErrWrite
}

// NewWriteError wraps err as an export failure for path. A nil err stays nil.
func NewWriteError(path string, err error) error {
	if err == nil {
		return nil
	}
	var existing *WriteError
	if errors.As(err, &existing) {
		return err
	}
	return &WriteError{Path: path, Err: err}
}

// IsWriteError returns whether err came from a failed export.
func IsWriteError(err error) bool {
	return errors.Is(err, ErrWrite)
}
