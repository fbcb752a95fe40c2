package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/spf13/afero"
)

// LocalStore writes objects below root on an afero filesystem.
type LocalStore struct {
	fs        afero.Fs
	root      string
	publicURL string
}

func NewLocalStore(fs afero.Fs, root, publicURL string) *LocalStore {
	return &LocalStore{fs: fs, root: root, publicURL: publicURL}
}

func (s *LocalStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	full := path.Join(s.root, key)
	if err := s.fs.MkdirAll(path.Dir(full), 0o755); err != nil {
		return err
	}
	return afero.WriteReader(s.fs, full, r)
}

// Delete is a no-op for keys that do not exist.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := s.fs.Remove(path.Join(s.root, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStore) URL(key string) string {
	return joinURL(s.publicURL, key)
}

// FileServer serves the stored objects read-only, keyed the same way URL
// addresses them. Directories answer 404 rather than a listing.
func (s *LocalStore) FileServer() http.Handler {
	files := afero.NewHttpFs(afero.NewReadOnlyFs(afero.NewBasePathFs(s.fs, s.root))).Dir("/")
	return http.FileServer(filesOnly{files})
}

type filesOnly struct {
	http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}
