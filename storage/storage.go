// Package storage keeps run artifacts (reports and screenshots) on the
// local filesystem or in S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrFileNotFound is returned when a requested artifact does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidPath is returned when a path is invalid or contains path traversal.
	ErrInvalidPath = errors.New("invalid path")
)

// Object describes one stored artifact.
type Object struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Store holds artifacts addressed by relative slash separated paths.
type Store interface {
	// Put writes the reader's content to path, replacing what was there.
	Put(ctx context.Context, path string, r io.Reader) error

	// Open returns the artifact at path, or ErrFileNotFound.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	Exists(ctx context.Context, path string) (bool, error)

	// Locate returns where the artifact can be read from: an absolute
	// filesystem path for local storage, a presigned URL for S3.
	Locate(ctx context.Context, path string) (string, error)

	// List returns the artifacts whose paths start with prefix, newest first.
	List(ctx context.Context, prefix string) ([]Object, error)
}

// Options configure New.
type Options struct {
	BaseDir       string
	Bucket        string
	Region        string
	PresignExpiry time.Duration
}

// New creates a Store of the given kind ("local" or "s3").
func New(kind string, opts Options) (Store, error) {
	switch strings.ToLower(kind) {
	case "", "local":
		if opts.BaseDir == "" {
			return nil, fmt.Errorf("base directory is required for local storage")
		}
		return NewLocalStore(opts.BaseDir)

	case "s3":
		if opts.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for S3 storage")
		}
		if opts.Region == "" {
			return nil, fmt.Errorf("region is required for S3 storage")
		}

		s3Store, err := NewS3Store(opts.Bucket, opts.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		if opts.PresignExpiry > 0 {
			s3Store.presignExpiration = opts.PresignExpiry
		}
		return s3Store, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", kind)
	}
}

// Publish copies the local files into dst, keyed by their path relative to
// root. Every file is attempted; failures are combined.
func Publish(ctx context.Context, dst Store, root string, files ...string) error {
	var result *multierror.Error
	for _, file := range files {
		rel, err := filepath.Rel(root, file)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", file, err))
			continue
		}
		if err := publishOne(ctx, dst, filepath.ToSlash(rel), file); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", file, err))
		}
	}
	return result.ErrorOrNil()
}

func publishOne(ctx context.Context, dst Store, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()
	return dst.Put(ctx, key, f)
}

func sortNewestFirst(objects []Object) {
	sort.Slice(objects, func(i, j int) bool {
		if !objects[i].ModTime.Equal(objects[j].ModTime) {
			return objects[i].ModTime.After(objects[j].ModTime)
		}
		return objects[i].Path > objects[j].Path
	})
}

// cleanKey validates a relative artifact path and returns its slash form.
func cleanKey(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: path cannot be empty", ErrInvalidPath)
	}

	cleanPath := filepath.Clean(path)
	if len(cleanPath) > 0 && cleanPath[0] == '.' {
		return "", fmt.Errorf("%w: path traversal detected", ErrInvalidPath)
	}
	if filepath.IsAbs(cleanPath) || strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("%w: absolute paths not allowed", ErrInvalidPath)
	}

	return filepath.ToSlash(cleanPath), nil
}
