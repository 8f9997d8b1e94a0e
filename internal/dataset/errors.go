package dataset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingColumns is matched by MissingColumnsError.
	ErrMissingColumns = errors.New("required columns missing")
	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	// ErrEmptyInput is returned when the source has no header row.
	ErrEmptyInput = errors.New("dataset has no header row")
	// ErrInvalidSource is returned by ParseSource for malformed URIs.
	ErrInvalidSource = errors.New("invalid dataset source")
	// ErrMalformed wraps decoder failures: bad compression, csv or workbook.
	ErrMalformed = errors.New("malformed dataset")
	// ErrTooLarge is returned when a source exceeds LoadOptions.MaxBytes.
	ErrTooLarge = errors.New("dataset exceeds size limit")
)

// MissingColumnsError lists required columns absent from the header.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("required columns missing: %s", strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

// ErrNotLoaded is returned when no dataset has been loaded yet.
var ErrNotLoaded = errors.New("dataset not loaded")
