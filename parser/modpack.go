package parser

import (
	"bytes"
	"encoding/json"

	"mc-resource-manager/archive"
	"mc-resource-manager/resource"
)

// ModpackAddon is a runtime component of an MCBBS modpack, e.g. {"id":"game","version":"1.20.1"}.
type ModpackAddon struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// McbbsManifest is the content of mcbbs.packmeta.
type McbbsManifest struct {
	ManifestType    string         `json:"manifestType"`
	ManifestVersion int            `json:"manifestVersion"`
	Name            string         `json:"name"`
	Version         string         `json:"version"`
	Author          string         `json:"author,omitempty"`
	Description     string         `json:"description,omitempty"`
	URL             string         `json:"url,omitempty"`
	FileAPI         string         `json:"fileApi,omitempty"`
	Addons          []ModpackAddon `json:"addons"`
	Files           []struct {
		Type      string `json:"type"`
		Path      string `json:"path,omitempty"`
		Hash      string `json:"hash,omitempty"`
		ProjectID int    `json:"projectID,omitempty"`
		FileID    int    `json:"fileID,omitempty"`
		Force     bool   `json:"force,omitempty"`
	} `json:"files,omitempty"`
}

// ModrinthManifest is the content of modrinth.index.json.
type ModrinthManifest struct {
	FormatVersion int    `json:"formatVersion"`
	Game          string `json:"game"`
	VersionID     string `json:"versionId"`
	Name          string `json:"name"`
	Summary       string `json:"summary,omitempty"`
	Files         []struct {
		Path      string            `json:"path"`
		Hashes    map[string]string `json:"hashes"`
		Env       map[string]string `json:"env,omitempty"`
		Downloads []string          `json:"downloads"`
		FileSize  int64             `json:"fileSize,omitempty"`
	} `json:"files"`
	Dependencies map[string]string `json:"dependencies"`
}

// CurseforgeManifest is the content of a CurseForge modpack's manifest.json.
type CurseforgeManifest struct {
	ManifestType    string `json:"manifestType"`
	ManifestVersion int    `json:"manifestVersion"`
	Name            string `json:"name"`
	Version         string `json:"version"`
	Author          string `json:"author,omitempty"`
	Minecraft       struct {
		Version    string `json:"version"`
		ModLoaders []struct {
			ID      string `json:"id"`
			Primary bool   `json:"primary"`
		} `json:"modLoaders"`
	} `json:"minecraft"`
	Files []struct {
		ProjectID int  `json:"projectID"`
		FileID    int  `json:"fileID"`
		Required  bool `json:"required"`
	} `json:"files"`
	Overrides string `json:"overrides,omitempty"`
}

const minecraftModpack = "minecraftModpack"

// McbbsModpack recognizes MCBBS modpacks.
func McbbsModpack() Parser {
	return define(format[*McbbsManifest]{
		typ:    resource.TypeMcbbsModpack,
		domain: resource.DomainModpacks,
		exts:   []string{".zip"},
		parse: func(fsys archive.FileSystem) (*McbbsManifest, error) {
			var m McbbsManifest
			if err := readJSON(fsys, "mcbbs.packmeta", &m); err != nil {
				return nil, err
			}
			if m.Name == "" {
				return nil, malformed("mcbbs.packmeta", "missing name")
			}
			return &m, nil
		},
		name: func(m *McbbsManifest) string { return joinName(m.Name, m.Version) },
		uris: func(m *McbbsManifest) []string {
			return []string{resource.JoinURI("mcbbs", "modpack", m.Name, m.Version)}
		},
	})
}

// ModrinthModpack recognizes .mrpack modpacks.
func ModrinthModpack() Parser {
	return define(format[*ModrinthManifest]{
		typ:    resource.TypeModrinthModpack,
		domain: resource.DomainModpacks,
		exts:   []string{".mrpack", ".zip"},
		parse: func(fsys archive.FileSystem) (*ModrinthManifest, error) {
			var m ModrinthManifest
			if err := readJSON(fsys, "modrinth.index.json", &m); err != nil {
				return nil, err
			}
			if m.Game != "minecraft" {
				return nil, malformed("modrinth.index.json", "game %q is not minecraft", m.Game)
			}
			if m.Name == "" {
				return nil, malformed("modrinth.index.json", "missing name")
			}
			return &m, nil
		},
		name: func(m *ModrinthManifest) string { return joinName(m.Name, m.VersionID) },
		uris: func(m *ModrinthManifest) []string {
			return []string{resource.JoinURI("modrinth", "modpack", m.Name, m.VersionID)}
		},
	})
}

// CurseforgeModpack recognizes CurseForge modpack zips.
func CurseforgeModpack() Parser {
	return define(format[*CurseforgeManifest]{
		typ:    resource.TypeCurseforgeModpack,
		domain: resource.DomainModpacks,
		exts:   []string{".zip"},
		parse: func(fsys archive.FileSystem) (*CurseforgeManifest, error) {
			data, err := readEntry(fsys, "manifest.json")
			if err != nil {
				return nil, err
			}
			// manifest.json is a common file name; only the manifest type marks the format.
			var m CurseforgeManifest
			if err := json.Unmarshal(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), &m); err != nil || m.ManifestType != minecraftModpack {
				return nil, ErrFormatMismatch
			}
			if m.Name == "" {
				return nil, malformed("manifest.json", "missing name")
			}
			return &m, nil
		},
		name: func(m *CurseforgeManifest) string { return joinName(m.Name, m.Version) },
		uris: func(m *CurseforgeManifest) []string {
			return []string{resource.JoinURI("curseforge", "modpack", m.Name, m.Version)}
		},
	})
}
