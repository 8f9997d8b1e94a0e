package services

import (
	"errors"

	"fundscope/internal/dataset"
	"fundscope/internal/report"
)

// Dashboard service errors
var (
	// ErrDatasetNotLoaded is returned until the first successful load.
	ErrDatasetNotLoaded = dataset.ErrNotLoaded

	ErrUnknownLayout  = report.ErrUnknownLayout
	ErrUnknownSection = report.ErrUnknownSection

	// ErrInvalidExport is returned for unsupported format and section
	// combinations.
	ErrInvalidExport = errors.New("invalid export")
)
