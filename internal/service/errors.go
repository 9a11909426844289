package service

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrNotOwner means the resource exists but belongs to another user.
	ErrNotOwner = errors.New("resource does not belong to user")

	ErrDuplicateColor = errors.New("color already used by another code")
	ErrDuplicateName  = errors.New("name already used by another code")
)
