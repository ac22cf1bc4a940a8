package ioutils

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
)

// AtomicWriteFile atomically writes data to a file specified by filename.
// Readers see either the old contents or the new ones, never a partial
// write.
func AtomicWriteFile(filename string, data []byte, perm os.FileMode) (err error) {
	f, err := os.CreateTemp(filepath.Dir(filename), ".tmp-"+filepath.Base(filename))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if err := os.Chmod(f.Name(), perm); err != nil {
		return err
	}

	n, err := f.Write(data)
	if err == nil && n < len(data) {
		return io.ErrShortWrite
	}
	if err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), filename)
}

// WriteJSONFile encodes v as indented JSON and writes it with
// AtomicWriteFile.
func WriteJSONFile(filename string, v interface{}, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return AtomicWriteFile(filename, append(data, '\n'), perm)
}
