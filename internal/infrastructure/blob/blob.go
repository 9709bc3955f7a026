// Package blob reads and writes workbook files on the local filesystem or in an
// S3-compatible bucket. Paths of the form s3://bucket/key select the bucket.
package blob

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"sheetbridge/internal/core/apperror"
)

// Driver identifies a concrete store.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// Store is the minimal object surface the backends need.
type Store interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, r io.Reader) error
	// List returns the full keys of the objects directly inside dir.
	List(ctx context.Context, dir string) ([]string, error)
	Driver() Driver
}

// Location is a parsed path.
type Location struct {
	Driver Driver
	Bucket string
	Key    string
}

// Parse splits path into a driver, bucket and key. Paths without the s3:// scheme are
// filesystem paths and keep their text as the key.
func Parse(path string) (Location, error) {
	rest, ok := strings.CutPrefix(path, "s3://")
	if !ok {
		return Location{Driver: DriverFilesystem, Key: path}, nil
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, apperror.NewInvalidConfiguration("s3 path needs a bucket").WithDetail("path", path)
	}
	return Location{Driver: DriverS3, Bucket: bucket, Key: key}, nil
}

// Resolver hands out stores for paths and caches one S3 store per bucket.
type Resolver struct {
	s3cfg   S3Config
	newS3   func(ctx context.Context, cfg S3Config) (*S3Store, error)
	mu      sync.Mutex
	buckets map[string]*S3Store
}

// NewResolver returns a resolver that builds S3 stores from cfg when an s3:// path is seen.
func NewResolver(cfg S3Config) *Resolver {
	return &Resolver{s3cfg: cfg, newS3: NewS3, buckets: make(map[string]*S3Store)}
}

// WithS3Store pins the store used for its bucket.
func (r *Resolver) WithS3Store(s *S3Store) *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buckets[s.bucket] = s
	return r
}

// Resolve returns the store for path and the key inside it.
func (r *Resolver) Resolve(ctx context.Context, path string) (Store, string, error) {
	loc, err := Parse(path)
	if err != nil {
		return nil, "", err
	}
	if loc.Driver == DriverFilesystem {
		return FSStore{}, loc.Key, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.buckets[loc.Bucket]; ok {
		return s, loc.Key, nil
	}
	cfg := r.s3cfg
	cfg.Bucket = loc.Bucket
	s, err := r.newS3(ctx, cfg)
	if err != nil {
		return nil, "", apperror.NewBackend("s3", err)
	}
	r.buckets[loc.Bucket] = s
	return s, loc.Key, nil
}

// Open resolves path and opens it for reading.
func (r *Resolver) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	s, key, err := r.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, key)
}

// Write resolves path and stores the content of rd there.
func (r *Resolver) Write(ctx context.Context, path string, rd io.Reader) error {
	s, key, err := r.Resolve(ctx, path)
	if err != nil {
		return err
	}
	return s.Put(ctx, key, rd)
}

// Join appends name to dir. s3:// locations are joined with "/", filesystem paths with
// the OS separator.
func Join(dir, name string) string {
	if strings.HasPrefix(dir, "s3://") {
		return strings.TrimSuffix(dir, "/") + "/" + name
	}
	return filepath.Join(dir, name)
}

// Stem returns the last element of key without ext.
func Stem(key, ext string) string {
	return strings.TrimSuffix(path.Base(filepath.ToSlash(key)), ext)
}
