package ioutils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// lockFileName is created inside locked output directories.
const lockFileName = ".actibook.lock"

// maxDuplicateSuffix bounds the " (n)" suffixes tried for an existing name.
const maxDuplicateSuffix = 999

// FileSink saves delivered archives into a directory.
//
// Like a browser download, an existing file is never overwritten: the
// archive is saved as "name (1).zip", "name (2).zip" and so on.
// Files are written to a temporary name first and renamed into place,
// so a partially written archive is never visible under its final name.
type FileSink struct {
	dir string
}

// NewFileSink creates a FileSink that writes into dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Deliver writes data under fileName and returns the final path.
func (s *FileSink) Deliver(ctx context.Context, fileName string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fileName == "" || fileName != filepath.Base(fileName) {
		return "", fmt.Errorf("invalid archive file name %q", fileName)
	}

	if err := EnsureDir(s.dir); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return "", err
	}

	dest, err := s.reservePath(fileName)
	if err != nil {
		return "", err
	}
	// dest is an empty file owned by this call; the rename replaces it.
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("move archive into place: %w", err)
	}

	return dest, nil
}

// reservePath creates an empty file under the first free name for fileName
// and returns its path. Creation is exclusive, so concurrent writers in
// this or another process never receive the same name.
func (s *FileSink) reservePath(fileName string) (string, error) {
	ext := filepath.Ext(fileName)
	stem := strings.TrimSuffix(fileName, ext)

	candidate := filepath.Join(s.dir, fileName)
	for n := 1; n <= maxDuplicateSuffix; n++ {
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			f.Close()
			return candidate, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("reserve %s: %w", candidate, err)
		}
		candidate = filepath.Join(s.dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
	}
	return "", fmt.Errorf("no free file name for %q in %s", fileName, s.dir)
}

// DirLock is an advisory lock on an output directory shared between
// processes. It keeps two downloader instances from writing into the same
// directory at the same time.
type DirLock struct {
	dir  string
	lock *flock.Flock
}

// NewDirLock creates a lock for dir. The lock file is created on TryLock.
func NewDirLock(dir string) *DirLock {
	return &DirLock{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockFileName)),
	}
}

// TryLock acquires the lock without blocking.
// It returns false when another process holds it.
func (l *DirLock) TryLock() (bool, error) {
	if err := EnsureDir(l.dir); err != nil {
		return false, fmt.Errorf("create output directory: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return ok, nil
}

// Unlock releases the lock.
func (l *DirLock) Unlock() error {
	return l.lock.Unlock()
}

// Path returns the lock file path.
func (l *DirLock) Path() string {
	return l.lock.Path()
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
