package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnavailable     = errors.New("service unavailable")
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
)
