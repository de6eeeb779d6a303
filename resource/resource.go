package resource

import (
	"encoding/json"
	"slices"
	"time"
)

// Domain is the storage partition a resource belongs to.
type Domain string

const (
	DomainMods          Domain = "mods"
	DomainResourcePacks Domain = "resourcepacks"
	DomainModpacks      Domain = "modpacks"
	DomainSaves         Domain = "saves"
	DomainShaderPacks   Domain = "shaderpacks"
)

// Domains lists every domain in display order.
var Domains = []Domain{DomainMods, DomainResourcePacks, DomainModpacks, DomainSaves, DomainShaderPacks}

// Valid reports whether d is one of the known domains.
func (d Domain) Valid() bool {
	return slices.Contains(Domains, d)
}

// Type tags the format that produced a resource's metadata.
type Type string

const (
	TypeForge             Type = "forge"
	TypeFabric            Type = "fabric"
	TypeQuilt             Type = "quilt"
	TypeLiteloader        Type = "liteloader"
	TypeResourcePack      Type = "resourcepack"
	TypeShaderPack        Type = "shaderpack"
	TypeSave              Type = "save"
	TypeCurseforgeModpack Type = "curseforge-modpack"
	TypeModrinthModpack   Type = "modrinth-modpack"
	TypeMcbbsModpack      Type = "mcbbs-modpack"
)

// Resource is a normalized, identity-bearing record for an imported file.
type Resource struct {
	Hash     string          `json:"hash"`
	Path     string          `json:"path"`
	Name     string          `json:"name"`
	Domain   Domain          `json:"domain"`
	Type     Type            `json:"type"`
	Ext      string          `json:"ext"`
	Size     int64           `json:"size"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Icons    [][]byte        `json:"icons,omitempty"`
	Source   Source          `json:"source"`
	URIs     []string        `json:"uris,omitempty"`
	Enabled  bool            `json:"enabled"`
}

// Clone returns a deep copy so callers can hand records across goroutines.
func (r Resource) Clone() Resource {
	out := r
	out.Metadata = slices.Clone(r.Metadata)
	out.URIs = slices.Clone(r.URIs)
	if r.Icons != nil {
		out.Icons = make([][]byte, len(r.Icons))
		for i, icon := range r.Icons {
			out.Icons[i] = slices.Clone(icon)
		}
	}
	out.Source = r.Source.Clone()
	return out
}

// CurseforgeSource identifies a CurseForge project file.
type CurseforgeSource struct {
	ProjectID int `json:"projectId"`
	FileID    int `json:"fileId"`
}

// ModrinthSource identifies a Modrinth project version.
type ModrinthSource struct {
	ProjectID string `json:"projectId"`
	VersionID string `json:"versionId"`
}

// GitSource identifies a release artifact on a git host.
type GitSource struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Artifact string `json:"artifact,omitempty"`
}

// Source is the provenance of a resource. Origins are only ever added, never replaced.
type Source struct {
	Curseforge *CurseforgeSource `json:"curseforge,omitempty"`
	Modrinth   *ModrinthSource   `json:"modrinth,omitempty"`
	Github     *GitSource        `json:"github,omitempty"`
	ImportedAt time.Time         `json:"importedAt"`
	Custom     map[string]string `json:"custom,omitempty"`
}

func (s Source) Clone() Source {
	out := Source{ImportedAt: s.ImportedAt}
	if s.Curseforge != nil {
		cf := *s.Curseforge
		out.Curseforge = &cf
	}
	if s.Modrinth != nil {
		mr := *s.Modrinth
		out.Modrinth = &mr
	}
	if s.Github != nil {
		gh := *s.Github
		out.Github = &gh
	}
	if s.Custom != nil {
		out.Custom = make(map[string]string, len(s.Custom))
		for k, v := range s.Custom {
			out.Custom[k] = v
		}
	}
	return out
}

// Merge folds newer into s. Origins already known are kept, unknown ones are
// filled in, the earliest import date wins and custom keys are unioned with
// existing values taking precedence.
func (s Source) Merge(newer Source) Source {
	out := s.Clone()
	newer = newer.Clone()
	if out.Curseforge == nil {
		out.Curseforge = newer.Curseforge
	}
	if out.Modrinth == nil {
		out.Modrinth = newer.Modrinth
	}
	if out.Github == nil {
		out.Github = newer.Github
	}
	if out.ImportedAt.IsZero() || (!newer.ImportedAt.IsZero() && newer.ImportedAt.Before(out.ImportedAt)) {
		out.ImportedAt = newer.ImportedAt
	}
	for k, v := range newer.Custom {
		if out.Custom == nil {
			out.Custom = make(map[string]string)
		}
		if _, ok := out.Custom[k]; !ok {
			out.Custom[k] = v
		}
	}
	return out
}

// URIs derived from provenance, used for cross-referencing marketplace entities.
func (s Source) URIs() []string {
	var uris []string
	if s.Curseforge != nil {
		uris = append(uris, CurseforgeURI(s.Curseforge.ProjectID, s.Curseforge.FileID))
	}
	if s.Modrinth != nil {
		uris = append(uris, ModrinthURI(s.Modrinth.ProjectID, s.Modrinth.VersionID))
	}
	if s.Github != nil {
		uris = append(uris, GithubURI(*s.Github))
	}
	return uris
}

// MergeURIs returns the union of a and b, keeping a's order and appending new entries of b.
func MergeURIs(a, b []string) []string {
	out := slices.Clone(a)
	for _, u := range b {
		if u != "" && !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	return out
}
