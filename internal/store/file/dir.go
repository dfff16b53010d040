package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/skhoolar/skhoolar/internal/store"
)

// dir is a private directory holding one file per entry.
type dir struct {
	path string
	ext  string
}

func openDir(path, ext string) (*dir, error) {
	if path == "" {
		return nil, store.Unavailable("open directory", fmt.Errorf("directory not set"))
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, store.Unavailable("create directory", err)
	}
	return &dir{path: path, ext: ext}, nil
}

func (d *dir) file(name string) (string, error) {
	if err := store.ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(d.path, name+d.ext), nil
}

// writeTemp writes data to a new temp file in the directory and syncs it.
func (d *dir) writeTemp(data []byte) (string, error) {
	f, err := os.CreateTemp(d.path, ".tmp-*")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}
