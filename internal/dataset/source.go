package dataset

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Source yields the raw bytes of a dataset.
type Source interface {
	// Open returns a reader over the raw (possibly compressed) file.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name is the object or file name; its extension selects the decoder.
	Name() string
	// URI identifies the source in logs and responses.
	URI() string
}

// FileSource reads a dataset from the local filesystem.
type FileSource struct {
	Path string
}

// Open opens the file.
func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", s.Path, err)
	}
	return f, nil
}

func (s FileSource) Name() string { return filepath.Base(s.Path) }

func (s FileSource) URI() string { return s.Path }

// SourceFactory builds an S3 source for a bucket and key.
type SourceFactory func(ctx context.Context, bucket, key string) (Source, error)

// ParseSource turns a URI into a Source. "s3://bucket/key" goes through
// newS3; anything else, including "file://" URIs, is a local path.
func ParseSource(ctx context.Context, uri string, newS3 SourceFactory) (Source, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("%w: empty uri", ErrInvalidSource)
	}

	if !strings.Contains(uri, "://") {
		return FileSource{Path: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	switch u.Scheme {
	case "file":
		return FileSource{Path: filepath.FromSlash(u.Host + u.Path)}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("%w: s3 uri needs bucket and key: %s", ErrInvalidSource, uri)
		}
		if newS3 == nil {
			return nil, fmt.Errorf("%w: s3 is not configured", ErrInvalidSource)
		}
		return newS3(ctx, u.Host, key)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSource, u.Scheme)
	}
}
