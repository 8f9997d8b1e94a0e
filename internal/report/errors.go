package report

import "errors"

var (
	// ErrUnknownLayout is returned when a layout name is not registered.
	ErrUnknownLayout = errors.New("unknown layout")
	// ErrUnknownSection is returned when a section id is not in the layout.
	ErrUnknownSection = errors.New("unknown section")
	// ErrInvalidLayout is returned for layouts that fail validation.
	ErrInvalidLayout = errors.New("invalid layout")
)
