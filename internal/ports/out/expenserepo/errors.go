package expenserepo

import "errors"

var (
	ErrNotFound      = errors.New("expense not found")
	ErrAlreadyExists = errors.New("expense already exists")
	// ErrUnknownMember indicates the owning member does not exist.
	ErrUnknownMember = errors.New("expense owner does not exist")
)
