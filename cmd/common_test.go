package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mc-resource-manager/config"
	"mc-resource-manager/importer"
	"mc-resource-manager/resource"
	"mc-resource-manager/testutil"
)

func newTestApp(t *testing.T, progress importer.Progress) *app {
	t.Helper()
	mcDir := t.TempDir()
	for _, sub := range config.ResourceDirs {
		require.NoError(t, os.MkdirAll(filepath.Join(mcDir, sub), 0755))
	}
	cfg := config.Config{
		MinecraftDir:      mcDir,
		DatabasePath:      filepath.Join(t.TempDir(), "resources.db"),
		ImportConcurrency: 2,
		ResolveTimeout:    10 * time.Second,
		CacheSize:         16,
		CacheTTL:          time.Minute,
	}
	a, err := newApp(context.Background(), cfg, progress)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNewAppLoadsExistingCatalog(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()
	mod := testutil.WriteZip(t, filepath.Join(a.cfg.MinecraftDir, "mods"), "forge-mod-1.0.jar", testutil.ForgeMod())

	_, err := a.importer.ImportFiles(ctx, []string{mod})
	require.NoError(t, err)
	a.Close()

	reopened, err := newApp(ctx, a.cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 1, reopened.importer.Projection().Len())
	assert.Nil(t, reopened.modrinth)
}

func TestResourceDirs(t *testing.T) {
	a := &app{cfg: config.Config{MinecraftDir: "/games/mc"}}
	assert.Equal(t, []string{
		filepath.Join("/games/mc", "mods"),
		filepath.Join("/games/mc", "resourcepacks"),
		filepath.Join("/games/mc", "shaderpacks"),
		filepath.Join("/games/mc", "saves"),
	}, a.resourceDirs())
}

func TestListAndShowResources(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()
	mods := filepath.Join(a.cfg.MinecraftDir, "mods")
	packs := filepath.Join(a.cfg.MinecraftDir, "resourcepacks")
	res, err := a.importer.ImportFiles(ctx, []string{
		testutil.WriteZip(t, mods, "fabric-a.jar", testutil.FabricMod("alpha", "1.0.0")),
		testutil.WriteZip(t, packs, "pack.zip", testutil.ResourcePack("Pack A")),
	})
	require.NoError(t, err)
	require.Len(t, res.Imported, 2)

	var out bytes.Buffer
	require.NoError(t, listResources(ctx, a, &out, listQuery{Domain: resource.DomainMods}, false))
	assert.Contains(t, out.String(), "Fabric alpha")
	assert.NotContains(t, out.String(), "pack.zip")

	out.Reset()
	require.NoError(t, listResources(ctx, a, &out, listQuery{}, true))
	assert.Contains(t, out.String(), `"domain": "resourcepacks"`)
	assert.NotContains(t, out.String(), `"icons"`)

	out.Reset()
	hash := res.Imported[0].Hash
	require.NoError(t, showResource(ctx, a, &out, hash))
	assert.Contains(t, out.String(), hash)
	assert.Contains(t, out.String(), "fabric-a.jar")

	err = showResource(ctx, a, &out, strings.Repeat("0", 40))
	assert.ErrorContains(t, err, "no resource with hash")
}

func TestListByURIAndSearch(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()
	mods := filepath.Join(a.cfg.MinecraftDir, "mods")
	_, err := a.importer.ImportFiles(ctx, []string{
		testutil.WriteZip(t, mods, "fabric-a.jar", testutil.FabricMod("alpha", "1.0.0")),
		testutil.WriteZip(t, mods, "fabric-b.jar", testutil.FabricMod("beta", "1.0.0")),
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, listResources(ctx, a, &out, listQuery{URI: "fabric:alpha"}, false))
	assert.Contains(t, out.String(), "Fabric alpha")
	assert.NotContains(t, out.String(), "Fabric beta")

	out.Reset()
	require.NoError(t, listResources(ctx, a, &out, listQuery{Domain: resource.DomainResourcePacks, URI: "fabric:"}, false))
	assert.Equal(t, "No resources cataloged.\n", out.String())

	out.Reset()
	require.NoError(t, listResources(ctx, a, &out, listQuery{Search: "BETA"}, false))
	assert.Contains(t, out.String(), "Fabric beta")
	assert.NotContains(t, out.String(), "Fabric alpha")
}

func TestShowResourceByPath(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()
	mod := testutil.WriteZip(t, filepath.Join(a.cfg.MinecraftDir, "mods"), "fabric-a.jar", testutil.FabricMod("alpha", "1.0.0"))
	_, err := a.importer.ImportFiles(ctx, []string{mod})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, showResource(ctx, a, &out, mod))
	assert.Contains(t, out.String(), "fabric-a.jar")

	other := testutil.WriteZip(t, filepath.Join(a.cfg.MinecraftDir, "mods"), "fabric-z.jar", testutil.FabricMod("zeta", "1.0.0"))
	err = showResource(ctx, a, &out, other)
	assert.ErrorContains(t, err, "no resource cataloged at")
}

func TestListEmptyCatalog(t *testing.T) {
	a := newTestApp(t, nil)
	var out bytes.Buffer
	require.NoError(t, listResources(context.Background(), a, &out, listQuery{}, false))
	assert.Equal(t, "No resources cataloged.\n", out.String())
}

func TestParseSource(t *testing.T) {
	src, err := parseSource("AANobbMI:abc123", "238222:4567", "CaffeineMC/sodium:sodium.jar")
	require.NoError(t, err)
	assert.Equal(t, &resource.ModrinthSource{ProjectID: "AANobbMI", VersionID: "abc123"}, src.Modrinth)
	assert.Equal(t, &resource.CurseforgeSource{ProjectID: 238222, FileID: 4567}, src.Curseforge)
	assert.Equal(t, &resource.GitSource{Owner: "CaffeineMC", Repo: "sodium", Artifact: "sodium.jar"}, src.Github)

	tests := []struct {
		name       string
		mr, cf, gh string
	}{
		{"nothing", "", "", ""},
		{"modrinth without version", "AANobbMI", "", ""},
		{"curseforge not numeric", "", "abc:def", ""},
		{"github without repo", "", "", "CaffeineMC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSource(tt.mr, tt.cf, tt.gh)
			assert.Error(t, err)
		})
	}
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "0123456789ab", shortHash("0123456789abcdef"))
	assert.Equal(t, "abc", shortHash("abc"))
}
