package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/BurntSushi/toml"

	"mc-resource-manager/archive"
	"mc-resource-manager/resource"
)

// ForgeMetadata is read from META-INF/mods.toml, or from mcmod.info for legacy mods.
type ForgeMetadata struct {
	ModLoader     string     `json:"modLoader,omitempty"`
	LoaderVersion string     `json:"loaderVersion,omitempty"`
	License       string     `json:"license,omitempty"`
	Legacy        bool       `json:"legacy,omitempty"`
	Mods          []ForgeMod `json:"mods"`
}

type ForgeMod struct {
	ModID       string `json:"modid"`
	Name        string `json:"name,omitempty"`
	Version     string `json:"version,omitempty"`
	McVersion   string `json:"mcversion,omitempty"`
	Description string `json:"description,omitempty"`
	Authors     string `json:"authors,omitempty"`
	LogoFile    string `json:"logoFile,omitempty"`
}

type modsToml struct {
	ModLoader     string `toml:"modLoader"`
	LoaderVersion string `toml:"loaderVersion"`
	License       string `toml:"license"`
	Mods          []struct {
		ModID       string `toml:"modId"`
		Version     string `toml:"version"`
		DisplayName string `toml:"displayName"`
		Description string `toml:"description"`
		Authors     string `toml:"authors"`
		LogoFile    string `toml:"logoFile"`
	} `toml:"mods"`
}

type mcmodInfo struct {
	ModID       string   `json:"modid"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	McVersion   string   `json:"mcversion"`
	Description string   `json:"description"`
	AuthorList  []string `json:"authorList"`
	Authors     []string `json:"authors"`
	LogoFile    string   `json:"logoFile"`
}

var modsTomlNames = []string{"META-INF/mods.toml", "META-INF/neoforge.mods.toml"}

// Forge recognizes Forge (and NeoForge) mod jars.
func Forge() Parser {
	return define(format[*ForgeMetadata]{
		typ:      resource.TypeForge,
		domain:   resource.DomainMods,
		exts:     []string{".jar"},
		fallback: []string{".zip"},
		parse:    parseForge,
		icon: func(fsys archive.FileSystem, meta *ForgeMetadata) ([]byte, error) {
			for _, m := range meta.Mods {
				if m.LogoFile != "" {
					return readOptional(fsys, m.LogoFile)
				}
			}
			return nil, nil
		},
		name: func(meta *ForgeMetadata) string {
			if len(meta.Mods) == 0 {
				return ""
			}
			m := meta.Mods[0]
			name := m.Name
			if name == "" {
				name = m.ModID
			}
			return joinName(name, m.McVersion, m.Version)
		},
		uris: func(meta *ForgeMetadata) []string {
			uris := make([]string, 0, len(meta.Mods))
			for _, m := range meta.Mods {
				uris = append(uris, resource.JoinURI("forge", m.ModID, m.Version))
			}
			return uris
		},
	})
}

func parseForge(fsys archive.FileSystem) (*ForgeMetadata, error) {
	for _, name := range modsTomlNames {
		data, err := readEntry(fsys, name)
		if errors.Is(err, ErrFormatMismatch) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return parseModsToml(fsys, name, data)
	}

	data, err := readEntry(fsys, "mcmod.info")
	if err != nil {
		return nil, err
	}
	return parseMcmodInfo(data)
}

func parseModsToml(fsys archive.FileSystem, name string, data []byte) (*ForgeMetadata, error) {
	var doc modsToml
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, malformed(name, "%v", err)
	}
	if len(doc.Mods) == 0 {
		return nil, malformed(name, "no [[mods]] entries")
	}

	meta := &ForgeMetadata{
		ModLoader:     doc.ModLoader,
		LoaderVersion: doc.LoaderVersion,
		License:       doc.License,
	}
	var jarVersion string
	for _, m := range doc.Mods {
		if m.ModID == "" {
			return nil, malformed(name, "mod entry without modId")
		}
		version := m.Version
		if strings.Contains(version, "${file.jarVersion}") {
			if jarVersion == "" {
				jarVersion = manifestVersion(fsys)
			}
			version = strings.ReplaceAll(version, "${file.jarVersion}", jarVersion)
		}
		meta.Mods = append(meta.Mods, ForgeMod{
			ModID:       m.ModID,
			Name:        m.DisplayName,
			Version:     version,
			Description: strings.TrimSpace(m.Description),
			Authors:     m.Authors,
			LogoFile:    m.LogoFile,
		})
	}
	return meta, nil
}

// manifestVersion reads Implementation-Version from the jar manifest.
func manifestVersion(fsys archive.FileSystem) string {
	data, err := fsys.ReadFile("META-INF/MANIFEST.MF")
	if err != nil {
		return ""
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if ok && strings.TrimSpace(key) == "Implementation-Version" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func parseMcmodInfo(data []byte) (*ForgeMetadata, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))

	var infos []mcmodInfo
	switch {
	case bytes.HasPrefix(data, []byte("[")):
		if err := json.Unmarshal(data, &infos); err != nil {
			return nil, malformed("mcmod.info", "%v", err)
		}
	case bytes.HasPrefix(data, []byte("{")):
		var list struct {
			ModList []mcmodInfo `json:"modList"`
		}
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, malformed("mcmod.info", "%v", err)
		}
		infos = list.ModList
	default:
		return nil, malformed("mcmod.info", "not a JSON document")
	}

	meta := &ForgeMetadata{Legacy: true}
	for _, info := range infos {
		if info.ModID == "" {
			continue
		}
		authors := info.AuthorList
		if len(authors) == 0 {
			authors = info.Authors
		}
		meta.Mods = append(meta.Mods, ForgeMod{
			ModID:       info.ModID,
			Name:        info.Name,
			Version:     info.Version,
			McVersion:   info.McVersion,
			Description: info.Description,
			Authors:     strings.Join(authors, ", "),
			LogoFile:    info.LogoFile,
		})
	}
	if len(meta.Mods) == 0 {
		return nil, malformed("mcmod.info", "no mod with a modid")
	}
	return meta, nil
}
