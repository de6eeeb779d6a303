package resource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentify(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "test.txt")
	content := []byte("hello world")

	if err := os.WriteFile(filePath, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	// echo -n "hello world" | sha1sum
	expected := "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"

	id, err := Identify(context.Background(), filePath)
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if id.Hash != expected {
		t.Errorf("Identify() = %s, want %s", id.Hash, expected)
	}
	if id.Size != int64(len(content)) {
		t.Errorf("Identify() size = %d, want %d", id.Size, len(content))
	}
}

func TestIdentifyFileNotFound(t *testing.T) {
	_, err := Identify(context.Background(), "non-existent-file")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestIdentifyIgnoresNameAndLocation(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jar")
	b := filepath.Join(dir, "nested", "renamed.zip")
	require.NoError(t, os.WriteFile(a, []byte("same bytes"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(b), 0o755))
	require.NoError(t, os.WriteFile(b, []byte("same bytes"), 0o600))

	idA, err := Identify(context.Background(), a)
	require.NoError(t, err)
	idB, err := Identify(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, idA, idB)
	assert.Equal(t, HashBytes([]byte("same bytes")), idA.Hash)
}

func TestIdentifyCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Identify(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdentifyDirectory(t *testing.T) {
	build := func(root string) {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "region"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "level.dat"), []byte("level"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(root, "region", "r.0.0.mca"), []byte("chunks"), 0o644))
	}
	a := filepath.Join(t.TempDir(), "World A")
	b := filepath.Join(t.TempDir(), "World B")
	build(a)
	build(b)

	idA, err := Identify(context.Background(), a)
	require.NoError(t, err)
	idB, err := Identify(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, idA.Hash, idB.Hash)
	assert.Equal(t, int64(len("level")+len("chunks")), idA.Size)

	require.NoError(t, os.WriteFile(filepath.Join(b, "level.dat"), []byte("LEVEL"), 0o644))
	idB, err = Identify(context.Background(), b)
	require.NoError(t, err)
	assert.NotEqual(t, idA.Hash, idB.Hash)
}

func TestSourceMerge(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	existing := Source{
		Curseforge: &CurseforgeSource{ProjectID: 1, FileID: 2},
		ImportedAt: late,
		Custom:     map[string]string{"note": "old"},
	}
	newer := Source{
		Curseforge: &CurseforgeSource{ProjectID: 9, FileID: 9},
		Modrinth:   &ModrinthSource{ProjectID: "AANobbMI", VersionID: "v1"},
		ImportedAt: early,
		Custom:     map[string]string{"note": "new", "tag": "x"},
	}

	merged := existing.Merge(newer)
	assert.Equal(t, &CurseforgeSource{ProjectID: 1, FileID: 2}, merged.Curseforge)
	assert.Equal(t, &ModrinthSource{ProjectID: "AANobbMI", VersionID: "v1"}, merged.Modrinth)
	assert.Equal(t, early, merged.ImportedAt)
	assert.Equal(t, map[string]string{"note": "old", "tag": "x"}, merged.Custom)

	// the receiver is left untouched
	assert.Nil(t, existing.Modrinth)
	assert.Len(t, existing.Custom, 1)

	assert.Equal(t, []string{"curseforge:1:2", "modrinth:AANobbMI:v1"}, merged.URIs())
}

func TestMergeURIs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, MergeURIs([]string{"a", "b"}, []string{"b", "", "c"}))
	assert.Nil(t, MergeURIs(nil, nil))
}

func TestJoinURI(t *testing.T) {
	assert.Equal(t, "forge:jei:1.0", JoinURI("forge", "jei", "1.0"))
	assert.Equal(t, "fabric:sodium", JoinURI("fabric", "sodium", ""))
	assert.Equal(t, "curseforge:modpack:a_b:1", JoinURI("curseforge", "modpack", "a:b", "1"))
}
