package store

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"stockpub/internal/domain"
)

// WriteFileAtomic replaces path with data. The bytes go to a temporary file
// in the same directory which is synced and then renamed over path; the
// directory is synced after the rename.
func WriteFileAtomic(path string, data []byte) error {
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func writeAtomic(path string, fill func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.IOError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &domain.IOError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := fill(bw); err != nil {
		return &domain.IOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := bw.Flush(); err != nil {
		return &domain.IOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Chmod(0o644); err != nil {
		return &domain.IOError{Op: "chmod", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &domain.IOError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.IOError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &domain.IOError{Op: "rename", Path: path, Err: err}
	}
	committed = true

	// The rename is only durable once the directory entry is on disk.
	if err := syncDir(dir); err != nil {
		return &domain.IOError{Op: "sync", Path: dir, Err: err}
	}
	return nil
}

// syncDir flushes a directory's entries. Tests replace it.
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}
