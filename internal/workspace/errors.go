package workspace

import "errors"

var (
	// ErrNoSelection means the selection source had no valid span to
	// annotate in the active document.
	ErrNoSelection = errors.New("no text selected")

	// ErrUnknownAnnotation means the target id is not in the cache.
	ErrUnknownAnnotation = errors.New("annotation not found in project")

	// ErrPendingAnnotation means the target is still a placeholder awaiting
	// confirmation and cannot be updated yet.
	ErrPendingAnnotation = errors.New("annotation is still awaiting confirmation")

	ErrUnknownCode = errors.New("code not found in project")
	ErrPendingCode = errors.New("code is still awaiting confirmation")

	// ErrDuplicateColor enforces color uniqueness across the vocabulary.
	ErrDuplicateColor = errors.New("another code already uses this color")

	ErrDuplicateName = errors.New("another code already uses this name")

	// ErrEmptySplit means a split was requested without any segments to
	// carve out.
	ErrEmptySplit = errors.New("split requires at least one segment")
)
