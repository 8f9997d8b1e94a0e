package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fundscope/internal/dataset"
	apierrors "fundscope/internal/errors"
)

// exportExtensions maps an export format to the file extensions it may be
// written under.
var exportExtensions = map[string][]string{
	"csv":  {".csv"},
	"json": {".json"},
	"xlsx": {".xlsx"},
}

// FileValidator checks local dataset inputs and export outputs before any
// work is done on them.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return apierrors.NewValidationError(fmt.Sprintf("file %s does not exist", path), nil).
			WithContext("file", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apierrors.NewValidationError(fmt.Sprintf("failed to stat file %s", path), err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return apierrors.NewValidationError(fmt.Sprintf("%s is a directory, not a file", path), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apierrors.NewValidationError(fmt.Sprintf("file %s is not readable", path), err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateDatasetFile checks that path is a readable dataset in a format
// the loader understands.
func (v *FileValidator) ValidateDatasetFile(path string) error {
	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("Refusing temporary Excel lock file",
			slog.String("file", path))
		return apierrors.NewValidationError(fmt.Sprintf("file %s is a temporary Excel file", path), nil)
	}

	format, err := dataset.DetectFormat(path)
	if err != nil {
		v.logger.Error("Unsupported dataset file",
			slog.String("file", path),
			slog.String("extension", filepath.Ext(path)))
		return apierrors.NewValidationError("unsupported dataset file", err).
			WithContext("file", path)
	}

	if err := v.ValidateFile(path); err != nil {
		return err
	}

	v.logger.Debug("Dataset file validated",
		slog.String("file", path),
		slog.String("format", string(format)))
	return nil
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apierrors.NewValidationError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}

	// Verify it's writable by creating a test file
	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apierrors.NewValidationError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	file.Close()
	os.Remove(testFile)

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

// ValidateExportPath checks that an export in format can be written to
// path: the extension matches and the directory is writable.
func (v *FileValidator) ValidateExportPath(path, format string) error {
	allowed, ok := exportExtensions[format]
	if !ok {
		return apierrors.NewValidationError(fmt.Sprintf("unsupported export format %q", format), nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	match := false
	for _, a := range allowed {
		if ext == a {
			match = true
			break
		}
	}
	if !match {
		v.logger.Error("Export file extension does not match format",
			slog.String("file", path),
			slog.String("format", format),
			slog.String("extension", ext))
		return apierrors.NewValidationError(
			fmt.Sprintf("file %s does not match export format %s (want %s)", path, format, strings.Join(allowed, ", ")), nil)
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return apierrors.NewValidationError(fmt.Sprintf("%s is a directory, not a file", path), nil)
	}

	return v.ValidateOutputDirectory(filepath.Dir(path))
}
