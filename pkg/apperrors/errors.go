package apperrors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrNoSchema         = errors.New("no trained schema for connection")
	ErrEmptyQuestion    = errors.New("question is empty")
	ErrInjectionBlocked = errors.New("input rejected by injection screening")
)
