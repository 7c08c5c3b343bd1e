package history

import (
	"os"
	"path/filepath"
)

type fileSystem interface {
	readFile(name string) ([]byte, error)
	writeFile(name string, data []byte) error
}

type osFileSystem struct{}

func (osFileSystem) readFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// writeFile replaces name through a temporary sibling so a crash mid-write
// leaves the previous document in place.
func (osFileSystem) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), filepath.Base(name)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, name)
}
