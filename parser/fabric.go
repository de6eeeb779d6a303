package parser

import (
	"encoding/json"
	"sort"
	"strconv"

	"mc-resource-manager/archive"
	"mc-resource-manager/resource"
)

// FabricMetadata is the content of fabric.mod.json.
type FabricMetadata struct {
	SchemaVersion int                        `json:"schemaVersion"`
	ID            string                     `json:"id"`
	Version       string                     `json:"version"`
	Name          string                     `json:"name,omitempty"`
	Description   string                     `json:"description,omitempty"`
	Icon          json.RawMessage            `json:"icon,omitempty"`
	Authors       json.RawMessage            `json:"authors,omitempty"`
	Environment   string                     `json:"environment,omitempty"`
	Depends       map[string]json.RawMessage `json:"depends,omitempty"`
}

// QuiltMetadata is the content of quilt.mod.json.
type QuiltMetadata struct {
	SchemaVersion int         `json:"schema_version"`
	Loader        QuiltLoader `json:"quilt_loader"`
}

type QuiltLoader struct {
	Group    string `json:"group,omitempty"`
	ID       string `json:"id"`
	Version  string `json:"version"`
	Metadata struct {
		Name        string          `json:"name,omitempty"`
		Description string          `json:"description,omitempty"`
		Icon        json.RawMessage `json:"icon,omitempty"`
	} `json:"metadata"`
}

// Fabric recognizes Fabric mod jars.
func Fabric() Parser {
	return define(format[*FabricMetadata]{
		typ:    resource.TypeFabric,
		domain: resource.DomainMods,
		exts:   []string{".jar"},
		parse: func(fsys archive.FileSystem) (*FabricMetadata, error) {
			var meta FabricMetadata
			if err := readJSON(fsys, "fabric.mod.json", &meta); err != nil {
				return nil, err
			}
			if meta.ID == "" {
				return nil, malformed("fabric.mod.json", "missing id")
			}
			return &meta, nil
		},
		icon: func(fsys archive.FileSystem, meta *FabricMetadata) ([]byte, error) {
			return readOptional(fsys, iconPath(meta.Icon))
		},
		name: func(meta *FabricMetadata) string {
			name := meta.Name
			if name == "" {
				name = meta.ID
			}
			version := meta.Version
			if version == "" {
				version = "0.0.0"
			}
			return joinName(name, version)
		},
		uris: func(meta *FabricMetadata) []string {
			return []string{resource.JoinURI("fabric", meta.ID, meta.Version)}
		},
	})
}

// Quilt recognizes Quilt mod jars.
func Quilt() Parser {
	return define(format[*QuiltMetadata]{
		typ:    resource.TypeQuilt,
		domain: resource.DomainMods,
		exts:   []string{".jar"},
		parse: func(fsys archive.FileSystem) (*QuiltMetadata, error) {
			var meta QuiltMetadata
			if err := readJSON(fsys, "quilt.mod.json", &meta); err != nil {
				return nil, err
			}
			if meta.Loader.ID == "" {
				return nil, malformed("quilt.mod.json", "missing quilt_loader.id")
			}
			return &meta, nil
		},
		icon: func(fsys archive.FileSystem, meta *QuiltMetadata) ([]byte, error) {
			return readOptional(fsys, iconPath(meta.Loader.Metadata.Icon))
		},
		name: func(meta *QuiltMetadata) string {
			name := meta.Loader.Metadata.Name
			if name == "" {
				name = meta.Loader.ID
			}
			return joinName(name, meta.Loader.Version)
		},
		uris: func(meta *QuiltMetadata) []string {
			return []string{resource.JoinURI("quilt", meta.Loader.ID, meta.Loader.Version)}
		},
	})
}

// iconPath resolves an icon field that is either a path or a map of size to
// path; the largest size wins.
func iconPath(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var sized map[string]string
	if err := json.Unmarshal(raw, &sized); err != nil || len(sized) == 0 {
		return ""
	}
	keys := make([]string, 0, len(sized))
	for k := range sized {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		if a != b {
			return a > b
		}
		return keys[i] < keys[j]
	})
	return sized[keys[0]]
}
