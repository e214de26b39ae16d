package dberrors

import "errors"

var (
	ErrNotFound          = errors.New("tabletd: not found")
	ErrClosed            = errors.New("tabletd: closed")
	ErrInvalidArgument   = errors.New("tabletd: invalid argument")
	ErrCompactionRunning = errors.New("tabletd: compaction running")
) 