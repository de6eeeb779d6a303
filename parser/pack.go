package parser

import (
	"encoding/json"
	"strings"

	"mc-resource-manager/archive"
	"mc-resource-manager/resource"
)

// PackMetadata is the "pack" object of pack.mcmeta.
type PackMetadata struct {
	PackFormat  int             `json:"pack_format"`
	Description json.RawMessage `json:"description,omitempty"`
}

// DescriptionText flattens a description that may be a plain string or a text component.
func (m *PackMetadata) DescriptionText() string {
	return componentText(m.Description)
}

func componentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		var b strings.Builder
		for _, part := range list {
			b.WriteString(componentText(part))
		}
		return b.String()
	}
	var comp struct {
		Text  string            `json:"text"`
		Extra []json.RawMessage `json:"extra"`
	}
	if json.Unmarshal(raw, &comp) == nil {
		var b strings.Builder
		b.WriteString(comp.Text)
		for _, part := range comp.Extra {
			b.WriteString(componentText(part))
		}
		return b.String()
	}
	return ""
}

// ShaderPackMetadata describes a shader pack's layout.
type ShaderPackMetadata struct {
	HasProperties bool     `json:"hasProperties"`
	Dimensions    []string `json:"dimensions,omitempty"`
}

var shaderDimensions = []string{"world0", "world-1", "world1"}

// ResourcePack recognizes resource packs, zipped or as directories.
func ResourcePack() Parser {
	return define(format[*PackMetadata]{
		typ:    resource.TypeResourcePack,
		domain: resource.DomainResourcePacks,
		exts:   []string{".zip", DirectoryExt},
		parse: func(fsys archive.FileSystem) (*PackMetadata, error) {
			var doc struct {
				Pack *PackMetadata `json:"pack"`
			}
			if err := readJSON(fsys, "pack.mcmeta", &doc); err != nil {
				return nil, err
			}
			if doc.Pack == nil {
				return nil, malformed("pack.mcmeta", "missing pack object")
			}
			return doc.Pack, nil
		},
		icon: func(fsys archive.FileSystem, _ *PackMetadata) ([]byte, error) {
			return readOptional(fsys, "pack.png")
		},
	})
}

// ShaderPack recognizes OptiFine/Iris shader packs.
func ShaderPack() Parser {
	return define(format[*ShaderPackMetadata]{
		typ:    resource.TypeShaderPack,
		domain: resource.DomainShaderPacks,
		exts:   []string{".zip", DirectoryExt},
		parse: func(fsys archive.FileSystem) (*ShaderPackMetadata, error) {
			if !fsys.IsDirectory("shaders") {
				return nil, ErrFormatMismatch
			}
			meta := &ShaderPackMetadata{
				HasProperties: fsys.Exists("shaders/shaders.properties"),
			}
			for _, dim := range shaderDimensions {
				if fsys.IsDirectory("shaders/" + dim) {
					meta.Dimensions = append(meta.Dimensions, dim)
				}
			}
			return meta, nil
		},
	})
}
