// Package parser holds the format recognizers for Minecraft resources.
//
// Every format is a Parser descriptor. The resolver tries descriptors in
// registry order; ErrFormatMismatch means "not this format, try the next one",
// any other error means the format was recognized but its data is broken.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"mc-resource-manager/archive"
	"mc-resource-manager/resource"
)

var (
	// ErrFormatMismatch reports that a file is not in the parser's format.
	ErrFormatMismatch = errors.New("format mismatch")
	// ErrMalformed reports a file that carries the format's marker but whose metadata is invalid.
	ErrMalformed = errors.New("malformed metadata")
)

// DirectoryExt is the extension used to look up parsers for directories.
const DirectoryExt = "/"

// Parser describes one resource format.
type Parser struct {
	Type   resource.Type
	Domain resource.Domain
	// Exts are the lowercase extensions (with dot) this format is tried for first.
	Exts []string
	// Fallback extensions are tried after every primary candidate failed.
	Fallback []string

	// ParseMetadata reads and validates the format's metadata. It never writes.
	ParseMetadata func(fsys archive.FileSystem) (any, error)
	// ParseIcon returns nil, nil when there is no icon.
	ParseIcon func(fsys archive.FileSystem, metadata any) ([]byte, error)
	// SuggestedName derives a display name from metadata alone.
	SuggestedName func(metadata any) string
	// URIs derives canonical identifiers from metadata alone.
	URIs func(metadata any) []string
}

// format is the typed form of a Parser; define erases it.
type format[T any] struct {
	typ      resource.Type
	domain   resource.Domain
	exts     []string
	fallback []string
	parse    func(fsys archive.FileSystem) (T, error)
	icon     func(fsys archive.FileSystem, meta T) ([]byte, error)
	name     func(meta T) string
	uris     func(meta T) []string
}

func define[T any](f format[T]) Parser {
	p := Parser{
		Type:     f.typ,
		Domain:   f.domain,
		Exts:     f.exts,
		Fallback: f.fallback,
		ParseMetadata: func(fsys archive.FileSystem) (any, error) {
			return f.parse(fsys)
		},
		ParseIcon: func(archive.FileSystem, any) ([]byte, error) { return nil, nil },
		SuggestedName: func(any) string { return "" },
		URIs: func(any) []string { return nil },
	}
	if f.icon != nil {
		p.ParseIcon = func(fsys archive.FileSystem, meta any) ([]byte, error) {
			m, ok := meta.(T)
			if !ok {
				return nil, nil
			}
			return f.icon(fsys, m)
		}
	}
	if f.name != nil {
		p.SuggestedName = func(meta any) string {
			m, ok := meta.(T)
			if !ok {
				return ""
			}
			return f.name(m)
		}
	}
	if f.uris != nil {
		p.URIs = func(meta any) []string {
			m, ok := meta.(T)
			if !ok {
				return nil
			}
			return f.uris(m)
		}
	}
	return p
}

// Registry is an ordered list of parsers.
type Registry struct {
	parsers []Parser
}

func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: slices.Clone(parsers)}
}

// Default returns the registry with every built-in format, most specific first.
func Default() *Registry {
	return NewRegistry(
		Forge(),
		Fabric(),
		Quilt(),
		Liteloader(),
		McbbsModpack(),
		ModrinthModpack(),
		CurseforgeModpack(),
		ResourcePack(),
		ShaderPack(),
		Save(),
	)
}

// All returns every registered parser in order.
func (r *Registry) All() []Parser {
	return slices.Clone(r.parsers)
}

// Candidates returns the parsers to try for a file extension: primary matches
// in order, then fallback matches. When nothing claims the extension every
// parser is returned.
func (r *Registry) Candidates(ext string) []Parser {
	ext = strings.ToLower(ext)
	var primary, fallback []Parser
	for _, p := range r.parsers {
		switch {
		case slices.Contains(p.Exts, ext):
			primary = append(primary, p)
		case slices.Contains(p.Fallback, ext):
			fallback = append(fallback, p)
		}
	}
	out := append(primary, fallback...)
	if len(out) == 0 {
		return r.All()
	}
	return out
}

// readJSON decodes a JSON entry. A missing entry is a format mismatch.
func readJSON(fsys archive.FileSystem, name string, v any) error {
	data, err := readEntry(fsys, name)
	if err != nil {
		return err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w: %v", name, ErrMalformed, err)
	}
	return nil
}

// readEntry reads an entry, translating absence into ErrFormatMismatch.
func readEntry(fsys archive.FileSystem, name string) ([]byte, error) {
	data, err := fsys.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrFormatMismatch)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// readOptional reads an entry that may be absent, as icons are.
func readOptional(fsys archive.FileSystem, name string) ([]byte, error) {
	if name == "" {
		return nil, nil
	}
	data, err := fsys.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func malformed(name, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", name, ErrMalformed, fmt.Sprintf(format, args...))
}

// joinName joins the non-empty parts with "-".
func joinName(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "-")
}
