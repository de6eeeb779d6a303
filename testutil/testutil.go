// Package testutil builds Minecraft resource fixtures for tests.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// CreateTestFile writes content to dir/name and returns the path.
func CreateTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// ZipBytes builds a zip archive in memory. Entries are written in name order so
// equal inputs produce equal bytes.
func ZipBytes(t testing.TB, files map[string][]byte) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		require.NoError(t, err)
		_, err = w.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// WriteZip writes a zip archive with the given entries to dir/name.
func WriteZip(t testing.TB, dir, name string, files map[string][]byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, ZipBytes(t, files), 0644))
	return path
}

const ForgeModsToml = `modLoader="javafml"
loaderVersion="[47,)"
license="MIT"

[[mods]]
modId="examplemod"
version="1.0.0"
displayName="Example Mod"
logoFile="logo.png"
authors="Someone"
description="An example"

[[dependencies.examplemod]]
modId="minecraft"
mandatory=true
versionRange="[1.20.1,1.21)"
ordering="NONE"
side="BOTH"
`

// ForgeMod returns the entries of a minimal Forge mod jar.
func ForgeMod() map[string][]byte {
	return map[string][]byte{
		"META-INF/mods.toml":                []byte(ForgeModsToml),
		"logo.png":                          []byte("\x89PNG forge logo"),
		"com/example/examplemod/Main.class": {0xca, 0xfe, 0xba, 0xbe},
	}
}

// FabricMod returns the entries of a minimal Fabric mod jar.
func FabricMod(id, version string) map[string][]byte {
	return map[string][]byte{
		"fabric.mod.json": []byte(`{"schemaVersion":1,"id":"` + id + `","version":"` + version +
			`","name":"Fabric ` + id + `","icon":"assets/` + id + `/icon.png","environment":"*"}`),
		"assets/" + id + "/icon.png": []byte("\x89PNG fabric icon"),
	}
}

// ResourcePack returns the entries of a minimal resource pack.
func ResourcePack(description string) map[string][]byte {
	return map[string][]byte{
		"pack.mcmeta": []byte(`{"pack":{"pack_format":15,"description":"` + description + `"}}`),
		"pack.png":    []byte("\x89PNG pack icon"),
		"assets/minecraft/textures/block/stone.png": []byte("stone"),
	}
}

// LevelDat encodes a gzip compressed level.dat with the given level name.
func LevelDat(t testing.TB, levelName string) []byte {
	t.Helper()
	type version struct {
		Name string `nbt:"Name"`
		Id   int32  `nbt:"Id"`
	}
	type data struct {
		LevelName   string  `nbt:"LevelName"`
		LastPlayed  int64   `nbt:"LastPlayed"`
		GameType    int32   `nbt:"GameType"`
		DataVersion int32   `nbt:"DataVersion"`
		Version     version `nbt:"Version"`
	}
	raw, err := nbt.Marshal(struct {
		Data data `nbt:"Data"`
	}{Data: data{
		LevelName:   levelName,
		LastPlayed:  1700000000000,
		GameType:    1,
		DataVersion: 3465,
		Version:     version{Name: "1.20.1", Id: 3465},
	}})
	require.NoError(t, err)

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err = gw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}
