package archive

import (
	"os"
	"path/filepath"
	"slices"
)

type dirFS struct {
	root string
}

func (d *dirFS) abs(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(Clean(name)))
}

func (d *dirFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(d.abs(name))
}

func (d *dirFS) Exists(name string) bool {
	_, err := os.Stat(d.abs(name))
	return err == nil
}

func (d *dirFS) IsDirectory(name string) bool {
	info, err := os.Stat(d.abs(name))
	return err == nil && info.IsDir()
}

func (d *dirFS) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(d.abs(dir))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

func (d *dirFS) Close() error { return nil }
