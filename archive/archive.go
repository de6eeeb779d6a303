// Package archive gives the format parsers one read-only view over zip
// archives, directories and plain files.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrCorruptArchive is returned when a file that should be a zip cannot be read as one.
var ErrCorruptArchive = errors.New("corrupt archive")

var zipMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// archiveExts always open as zip, whatever their first bytes say.
var archiveExts = map[string]bool{
	".zip":     true,
	".jar":     true,
	".litemod": true,
	".mrpack":  true,
}

// FileSystem is a read-only view of an archive or directory. Names are slash
// separated and relative to the root; "" and "." both mean the root.
type FileSystem interface {
	// ReadFile returns the content of a file entry. Absent entries yield an
	// error matching fs.ErrNotExist.
	ReadFile(name string) ([]byte, error)
	Exists(name string) bool
	IsDirectory(name string) bool
	// ListFiles returns the base names of the direct children of dir, sorted.
	ListFiles(dir string) ([]string, error)
	Close() error
}

// Open picks the view for p: directories become directory views, zip files
// (by extension or magic) become zip views, anything else a plain file view
// with no entries.
func Open(p string) (FileSystem, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return &dirFS{root: p}, nil
	}

	ext := strings.ToLower(filepath.Ext(p))
	if archiveExts[ext] || hasZipMagic(p) {
		zfs, err := openZip(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				return nil, err
			}
			return nil, fmt.Errorf("%s: %w: %v", filepath.Base(p), ErrCorruptArchive, err)
		}
		return zfs, nil
	}

	return plainFS{}, nil
}

func hasZipMagic(p string) bool {
	f, err := os.Open(p)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, zipMagic)
}

// Clean normalizes an entry name to the form used by every view.
func Clean(name string) string {
	name = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(name, "\\", "/")), "/")
	if name == "." {
		return ""
	}
	return name
}

func notExist(name string) error {
	return &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// plainFS is the view of a file that is not an archive: it has no entries.
type plainFS struct{}

func (plainFS) ReadFile(name string) ([]byte, error) { return nil, notExist(name) }
func (plainFS) Exists(string) bool                   { return false }
func (plainFS) IsDirectory(string) bool              { return false }
func (plainFS) ListFiles(string) ([]string, error)   { return nil, nil }
func (plainFS) Close() error                         { return nil }
