package archive

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/klauspost/compress/zip"
)

// MaxEntrySize caps how much of a single entry ReadFile will inflate.
const MaxEntrySize = 64 << 20

type zipFS struct {
	rc      *zip.ReadCloser
	files   map[string]*zip.File
	dirs    map[string]bool
	entries map[string][]string
}

func openZip(p string) (*zipFS, error) {
	rc, err := zip.OpenReader(p)
	if err != nil {
		return nil, err
	}
	z := &zipFS{
		rc:      rc,
		files:   make(map[string]*zip.File, len(rc.File)),
		dirs:    map[string]bool{"": true},
		entries: make(map[string][]string),
	}
	for _, f := range rc.File {
		name := Clean(f.Name)
		if name == "" {
			continue
		}
		if strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir() {
			z.addDir(name)
			continue
		}
		if _, dup := z.files[name]; dup {
			continue
		}
		z.files[name] = f
		z.addChild(parentOf(name), baseOf(name))
		z.addDir(parentOf(name))
	}
	for dir := range z.entries {
		slices.Sort(z.entries[dir])
	}
	return z, nil
}

// addDir registers dir and every ancestor, since zips often omit directory entries.
func (z *zipFS) addDir(dir string) {
	for dir != "" && !z.dirs[dir] {
		z.dirs[dir] = true
		parent := parentOf(dir)
		z.addChild(parent, baseOf(dir))
		dir = parent
	}
}

func (z *zipFS) addChild(dir, name string) {
	if !slices.Contains(z.entries[dir], name) {
		z.entries[dir] = append(z.entries[dir], name)
	}
}

func (z *zipFS) ReadFile(name string) ([]byte, error) {
	f, ok := z.files[Clean(name)]
	if !ok {
		return nil, notExist(name)
	}
	if f.UncompressedSize64 > MaxEntrySize {
		return nil, fmt.Errorf("%s: entry of %d bytes exceeds limit: %w", name, f.UncompressedSize64, ErrCorruptArchive)
	}
	r, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, ErrCorruptArchive, err)
	}
	defer r.Close()
	data, err := io.ReadAll(io.LimitReader(r, MaxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, ErrCorruptArchive, err)
	}
	if len(data) > MaxEntrySize {
		return nil, fmt.Errorf("%s: entry exceeds limit: %w", name, ErrCorruptArchive)
	}
	return data, nil
}

func (z *zipFS) Exists(name string) bool {
	name = Clean(name)
	_, ok := z.files[name]
	return ok || z.dirs[name]
}

func (z *zipFS) IsDirectory(name string) bool {
	return z.dirs[Clean(name)]
}

func (z *zipFS) ListFiles(dir string) ([]string, error) {
	dir = Clean(dir)
	if !z.dirs[dir] {
		return nil, notExist(dir)
	}
	return slices.Clone(z.entries[dir]), nil
}

func (z *zipFS) Close() error {
	return z.rc.Close()
}

func parentOf(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return ""
}

func baseOf(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
