package parser

import (
	"bytes"
	"encoding/json"

	"mc-resource-manager/archive"
	"mc-resource-manager/resource"
)

// LiteloaderMetadata is the content of litemod.json.
type LiteloaderMetadata struct {
	Name        string          `json:"name"`
	Version     string          `json:"version,omitempty"`
	McVersion   string          `json:"mcversion,omitempty"`
	Revision    json.RawMessage `json:"revision,omitempty"`
	Author      string          `json:"author,omitempty"`
	Description string          `json:"description,omitempty"`
}

// RevisionString returns the revision whether it was written as a number or a string.
func (m *LiteloaderMetadata) RevisionString() string {
	raw := bytes.TrimSpace(m.Revision)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Liteloader recognizes LiteLoader mods.
func Liteloader() Parser {
	return define(format[*LiteloaderMetadata]{
		typ:    resource.TypeLiteloader,
		domain: resource.DomainMods,
		exts:   []string{".litemod", ".jar"},
		parse: func(fsys archive.FileSystem) (*LiteloaderMetadata, error) {
			var meta LiteloaderMetadata
			if err := readJSON(fsys, "litemod.json", &meta); err != nil {
				return nil, err
			}
			if meta.Name == "" {
				return nil, malformed("litemod.json", "missing name")
			}
			return &meta, nil
		},
		name: func(meta *LiteloaderMetadata) string {
			return joinName(meta.Name, meta.McVersion, meta.Version, meta.RevisionString())
		},
		uris: func(meta *LiteloaderMetadata) []string {
			return []string{resource.JoinURI("liteloader", meta.Name, meta.Version)}
		},
	})
}
