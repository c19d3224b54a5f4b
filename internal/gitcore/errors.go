package gitcore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRepository is returned when a path is not inside a git repository.
	ErrNotRepository = errors.New("not a git repository")
	// ErrUnknownRevision is returned when a commit cannot be resolved.
	ErrUnknownRevision = errors.New("unknown revision")
)

// VersionControlError reports a failed query against a repository.
// Every Querier failure is returned as a *VersionControlError.
type VersionControlError struct {
	Op   string
	Path string
	Err  error
}

func (e *VersionControlError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *VersionControlError) Unwrap() error {
	return e.Err
}

// AsVersionControlError wraps err unless it already is a *VersionControlError.
func AsVersionControlError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var vcErr *VersionControlError
	if errors.As(err, &vcErr) {
		return err
	}
	return &VersionControlError{Op: op, Path: path, Err: err}
}

// IsVersionControlError reports whether err carries a *VersionControlError.
func IsVersionControlError(err error) bool {
	var vcErr *VersionControlError
	return errors.As(err, &vcErr)
}
