package parser

import (
	"bytes"
	"io"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"

	"mc-resource-manager/archive"
	"mc-resource-manager/resource"
)

// SaveMetadata is read from a world's level.dat.
type SaveMetadata struct {
	// Root is the folder holding level.dat inside the archive, "" for the top level.
	Root        string `json:"root"`
	LevelName   string `json:"levelName"`
	LastPlayed  int64  `json:"lastPlayed,omitempty"`
	GameType    int32  `json:"gameType"`
	DataVersion int32  `json:"dataVersion,omitempty"`
	VersionName string `json:"versionName,omitempty"`
}

type levelDat struct {
	Data struct {
		LevelName   string `nbt:"LevelName"`
		LastPlayed  int64  `nbt:"LastPlayed"`
		GameType    int32  `nbt:"GameType"`
		DataVersion int32  `nbt:"DataVersion"`
		Version     struct {
			Name string `nbt:"Name"`
		} `nbt:"Version"`
	} `nbt:"Data"`
}

// Save recognizes zipped or unpacked worlds.
func Save() Parser {
	return define(format[*SaveMetadata]{
		typ:    resource.TypeSave,
		domain: resource.DomainSaves,
		exts:   []string{".zip", DirectoryExt},
		parse:  parseSave,
		icon: func(fsys archive.FileSystem, meta *SaveMetadata) ([]byte, error) {
			return readOptional(fsys, joinEntry(meta.Root, "icon.png"))
		},
		name: func(meta *SaveMetadata) string {
			return meta.LevelName
		},
	})
}

func parseSave(fsys archive.FileSystem) (*SaveMetadata, error) {
	root, ok := findLevelRoot(fsys)
	if !ok {
		return nil, ErrFormatMismatch
	}
	name := joinEntry(root, "level.dat")
	data, err := readEntry(fsys, name)
	if err != nil {
		return nil, err
	}

	var r io.Reader = bytes.NewReader(data)
	if bytes.HasPrefix(data, []byte{0x1f, 0x8b}) {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, malformed(name, "%v", err)
		}
		defer gz.Close()
		r = gz
	}

	var level levelDat
	if _, err := nbt.NewDecoder(r).Decode(&level); err != nil {
		return nil, malformed(name, "%v", err)
	}

	return &SaveMetadata{
		Root:        root,
		LevelName:   level.Data.LevelName,
		LastPlayed:  level.Data.LastPlayed,
		GameType:    level.Data.GameType,
		DataVersion: level.Data.DataVersion,
		VersionName: level.Data.Version.Name,
	}, nil
}

// findLevelRoot looks for level.dat at the top level, then one folder down.
func findLevelRoot(fsys archive.FileSystem) (string, bool) {
	if fsys.Exists("level.dat") && !fsys.IsDirectory("level.dat") {
		return "", true
	}
	children, err := fsys.ListFiles("")
	if err != nil {
		return "", false
	}
	for _, child := range children {
		if fsys.IsDirectory(child) && fsys.Exists(joinEntry(child, "level.dat")) {
			return child, true
		}
	}
	return "", false
}

func joinEntry(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
