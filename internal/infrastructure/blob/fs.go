package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"sheetbridge/internal/core/apperror"
)

// FSStore keeps blobs as plain files. Keys are filesystem paths.
type FSStore struct{}

// Driver implements Store.
func (FSStore) Driver() Driver { return DriverFilesystem }

// Get opens the file at key.
func (FSStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.NewNotFound("file", key)
		}
		return nil, apperror.NewBackend(string(DriverFilesystem), err)
	}
	return f, nil
}

// Put writes r to key through a temp file and a rename, creating parent directories.
func (FSStore) Put(_ context.Context, key string, r io.Reader) error {
	dir := filepath.Dir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperror.NewBackend(string(DriverFilesystem), err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(key)+".*")
	if err != nil {
		return apperror.NewBackend(string(DriverFilesystem), err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return apperror.NewBackend(string(DriverFilesystem), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return apperror.NewBackend(string(DriverFilesystem), err)
	}
	if err := os.Rename(tmp.Name(), key); err != nil {
		os.Remove(tmp.Name())
		return apperror.NewBackend(string(DriverFilesystem), err)
	}
	return nil
}

// List returns the files directly inside dir, sorted.
func (FSStore) List(_ context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.NewNotFound("directory", dir)
		}
		return nil, apperror.NewBackend(string(DriverFilesystem), err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
