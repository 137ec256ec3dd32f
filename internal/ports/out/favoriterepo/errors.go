package favoriterepo

import "errors"

var (
	ErrNotFound      = errors.New("favorite route not found")
	ErrAlreadyExists = errors.New("favorite route already exists")
	ErrUnknownMember = errors.New("favorite route owner does not exist")
)
