package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mc-resource-manager/db"
	"mc-resource-manager/projection"
	"mc-resource-manager/resolver"
	"mc-resource-manager/resource"
	"mc-resource-manager/store"
	"mc-resource-manager/testutil"
)

type fixture struct {
	dir      string
	database *gorm.DB
	store    *store.Store
	reg      *prometheus.Registry
	im       *Importer
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	database, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "resources.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(database) })
	return newFixtureWithDB(t, database, opts)
}

func newFixtureWithDB(t *testing.T, database *gorm.DB, opts Options) *fixture {
	t.Helper()
	f := &fixture{dir: t.TempDir(), database: database, store: store.New(database, nil), reg: prometheus.NewRegistry()}
	if opts.Resolver == nil {
		opts.Resolver = resolver.New(resolver.Options{})
	}
	opts.Store = f.store
	opts.Registerer = f.reg
	f.im = New(opts)
	return f
}

// exampleFiles writes the three files of the reference scenario.
func (f *fixture) exampleFiles(t *testing.T) []string {
	return []string{
		testutil.WriteZip(t, f.dir, "forge-mod-1.0.jar", testutil.ForgeMod()),
		testutil.WriteZip(t, f.dir, "resourcepack-a.zip", testutil.ResourcePack("Pack A")),
		testutil.CreateTestFile(t, f.dir, "not-a-minecraft-file.txt", "just some notes"),
	}
}

func domains(rs []resource.Resource) []resource.Domain {
	out := make([]resource.Domain, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Domain)
	}
	return out
}

func TestImportExample(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	paths := f.exampleFiles(t)

	res, err := f.im.ImportFiles(ctx, paths)
	require.NoError(t, err)
	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, []resource.Domain{resource.DomainMods, resource.DomainResourcePacks}, domains(res.Imported))
	assert.Empty(t, res.Updated)
	assert.Equal(t, []string{paths[2]}, res.Unrecognized)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 2, f.im.Projection().Len())

	again, err := f.im.ImportFiles(ctx, paths)
	require.NoError(t, err)
	assert.NotEqual(t, res.BatchID, again.BatchID)
	assert.Empty(t, again.Imported)
	assert.Equal(t, []resource.Domain{resource.DomainMods, resource.DomainResourcePacks}, domains(again.Updated))
	assert.Equal(t, []string{paths[2]}, again.Unrecognized)
	assert.Empty(t, again.Failed)

	all, err := f.im.ListResources(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 2, f.im.Projection().Len())

	assert.Equal(t, 2.0, promtest.ToFloat64(f.im.metrics.files.WithLabelValues("imported")))
	assert.Equal(t, 2.0, promtest.ToFloat64(f.im.metrics.files.WithLabelValues("updated")))
	assert.Equal(t, 2.0, promtest.ToFloat64(f.im.metrics.files.WithLabelValues("unrecognized")))
	assert.Equal(t, 2.0, promtest.ToFloat64(f.im.metrics.batches.WithLabelValues("committed")))
}

func TestImportMovedFileUpdatesPath(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	old := testutil.WriteZip(t, f.dir, "a.jar", testutil.ForgeMod())

	first, err := f.im.ImportFiles(ctx, []string{old})
	require.NoError(t, err)
	require.Len(t, first.Imported, 1)
	hash := first.Imported[0].Hash

	moved := filepath.Join(f.dir, "moved.jar")
	require.NoError(t, os.Rename(old, moved))
	second, err := f.im.ImportFiles(ctx, []string{moved})
	require.NoError(t, err)
	require.Len(t, second.Updated, 1)

	got, err := f.im.GetResource(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, moved, got.Path)

	snap := f.im.Projection().Snapshot(resource.DomainMods)
	require.Len(t, snap, 1)
	assert.Equal(t, moved, snap[0].Path)
}

func TestImportRewrittenFileReplacesOldRecord(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	path := testutil.WriteZip(t, f.dir, "mod.jar", testutil.FabricMod("a", "1.0.0"))

	first, err := f.im.ImportFiles(ctx, []string{path})
	require.NoError(t, err)
	require.Len(t, first.Imported, 1)
	oldHash := first.Imported[0].Hash

	var batches []projection.Batch
	require.NoError(t, f.im.OnProjectionUpdate(func(b projection.Batch) { batches = append(batches, b) }))

	testutil.WriteZip(t, f.dir, "mod.jar", testutil.FabricMod("a", "2.0.0"))
	second, err := f.im.ImportFiles(ctx, []string{path})
	require.NoError(t, err)
	require.Len(t, second.Imported, 1)
	newHash := second.Imported[0].Hash
	require.NotEqual(t, oldHash, newHash)
	require.Len(t, second.Replaced, 1)
	assert.Equal(t, oldHash, second.Replaced[0].Hash)

	stored, err := f.im.ListResources(ctx, "")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, newHash, stored[0].Hash)
	_, err = f.im.GetResource(ctx, oldHash)
	assert.ErrorIs(t, err, store.ErrNotFound)

	snap := f.im.Projection().Snapshot("")
	require.Len(t, snap, len(stored))
	assert.Equal(t, newHash, snap[0].Hash)

	require.Len(t, batches, 1)
	require.Len(t, batches[0].Ops, 2)
	assert.Equal(t, projection.OpRemove, batches[0].Ops[0].Kind)
	assert.Equal(t, oldHash, batches[0].Ops[0].Hash)
	assert.Equal(t, projection.OpUpsert, batches[0].Ops[1].Kind)

	fresh := New(Options{Resolver: resolver.New(resolver.Options{}), Store: f.store})
	require.NoError(t, fresh.Load(ctx))
	assert.Equal(t, 1, fresh.Projection().Len())
}

func TestQueryOperations(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	alpha := testutil.WriteZip(t, f.dir, "alpha.jar", testutil.FabricMod("alpha", "1.0.0"))
	beta := testutil.WriteZip(t, f.dir, "beta.jar", testutil.FabricMod("beta", "2.0.0"))
	pack := testutil.WriteZip(t, f.dir, "pack.zip", testutil.ResourcePack("Alpha textures"))
	_, err := f.im.ImportFiles(ctx, []string{alpha, beta, pack})
	require.NoError(t, err)

	byURI, err := f.im.FindByURI(ctx, "fabric:alpha")
	require.NoError(t, err)
	require.Len(t, byURI, 1)
	assert.Equal(t, alpha, byURI[0].Path)

	byURI, err = f.im.FindByURI(ctx, "fabric:")
	require.NoError(t, err)
	assert.Len(t, byURI, 2)

	found, err := f.im.SearchResources(ctx, resource.DomainMods, "BETA")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, beta, found[0].Path)

	found, err = f.im.SearchResources(ctx, resource.DomainResourcePacks, "alpha")
	require.NoError(t, err)
	assert.Empty(t, found)

	rel, err := filepath.Rel(mustGetwd(t), beta)
	require.NoError(t, err)
	byPath, err := f.im.FindByPath(ctx, rel)
	require.NoError(t, err)
	require.Len(t, byPath, 1)
	assert.Equal(t, beta, byPath[0].Path)
}

func mustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	return wd
}

func TestImportDedupInBatch(t *testing.T) {
	f := newFixture(t, Options{})
	a := testutil.WriteZip(t, f.dir, "a.jar", testutil.ForgeMod())
	b := testutil.WriteZip(t, f.dir, "copy-of-a.jar", testutil.ForgeMod())

	res, err := f.im.ImportFiles(context.Background(), []string{a, a, b})
	require.NoError(t, err)
	require.Len(t, res.Imported, 1)
	assert.Equal(t, filepath.Clean(a), res.Imported[0].Path)
	assert.Empty(t, res.Updated)
	require.Len(t, res.Duplicates, 2)
	assert.Equal(t, Duplicate{Path: a, Hash: res.Imported[0].Hash, Of: a}, res.Duplicates[0])
	assert.Equal(t, Duplicate{Path: b, Hash: res.Imported[0].Hash, Of: a}, res.Duplicates[1])
	assert.Equal(t, 1, f.im.Projection().Len())
}

func TestImportFirstOccurrenceWinsRegardlessOfCompletionOrder(t *testing.T) {
	f := newFixture(t, Options{Concurrency: 8})
	var paths []string
	for _, name := range []string{"first.jar", "second.jar", "third.jar", "fourth.jar"} {
		paths = append(paths, testutil.WriteZip(t, f.dir, name, testutil.ForgeMod()))
	}

	res, err := f.im.ImportFiles(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, res.Imported, 1)
	assert.Equal(t, paths[0], res.Imported[0].Path)
	assert.Len(t, res.Duplicates, 3)
}

type resolverFunc func(ctx context.Context, path string) resolver.Result

func (f resolverFunc) Resolve(ctx context.Context, path string) resolver.Result { return f(ctx, path) }

func TestImportPartialFailure(t *testing.T) {
	base := resolver.New(resolver.Options{})
	var victim string
	deleting := resolverFunc(func(ctx context.Context, path string) resolver.Result {
		if path == victim {
			os.Remove(path)
		}
		return base.Resolve(ctx, path)
	})

	f := newFixture(t, Options{Resolver: deleting})
	paths := f.exampleFiles(t)
	victim = testutil.WriteZip(t, f.dir, "fabric.jar", testutil.FabricMod("sodium", "0.5.3"))
	paths = append(paths, victim)

	res, err := f.im.ImportFiles(context.Background(), paths)
	require.NoError(t, err)
	assert.Len(t, res.Imported, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, victim, res.Failed[0].Path)
	assert.ErrorIs(t, res.Failed[0].Err, resolver.ErrIO)
	assert.Equal(t, []string{paths[2]}, res.Unrecognized)
}

func TestImportStoreFailureProjectsNothing(t *testing.T) {
	database, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "resources.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(database) })

	var creates atomic.Int32
	require.NoError(t, database.Callback().Create().Before("gorm:create").Register("test:fail_second_resource", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*db.Resource); ok && creates.Add(1) == 2 {
			tx.AddError(errors.New("disk full"))
		}
	}))

	f := newFixtureWithDB(t, database, Options{})
	notified := false
	require.NoError(t, f.im.OnProjectionUpdate(func(projection.Batch) { notified = true }))

	res, err := f.im.ImportFiles(context.Background(), f.exampleFiles(t))
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStore)

	assert.False(t, notified)
	assert.Zero(t, f.im.Projection().Len())
	all, err := f.store.All(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, 1.0, promtest.ToFloat64(f.im.metrics.batches.WithLabelValues("failed")))
}

func TestImportCancelled(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.im.ImportFiles(ctx, f.exampleFiles(t))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.im.Projection().Len())

	all, err := f.store.All(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestConcurrentBatchesOnOverlappingHashes(t *testing.T) {
	f := newFixture(t, Options{})
	var paths []string
	for i := range 4 {
		paths = append(paths, testutil.WriteZip(t, filepath.Join(f.dir, string(rune('a'+i))), "mod.jar", testutil.ForgeMod()))
	}

	var wg sync.WaitGroup
	for _, p := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.im.ImportFiles(context.Background(), []string{p})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := f.store.All(context.Background(), resource.DomainMods)
	require.NoError(t, err)
	require.Len(t, all, 1)
	snap := f.im.Projection().Snapshot(resource.DomainMods)
	require.Len(t, snap, 1)
	assert.Equal(t, all[0].Path, snap[0].Path)
}

type recordingProgress struct {
	mu        sync.Mutex
	total     int
	resolved  map[resolver.Outcome]int
	committed int
}

func (p *recordingProgress) Start(_ string, total int) { p.total = total }

func (p *recordingProgress) Resolved(_ string, o resolver.Outcome, _ error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolved[o]++
}

func (p *recordingProgress) Committed(*Result) { p.committed++ }

func TestImportReportsProgress(t *testing.T) {
	prog := &recordingProgress{resolved: map[resolver.Outcome]int{}}
	f := newFixture(t, Options{Progress: prog})

	_, err := f.im.ImportFiles(context.Background(), f.exampleFiles(t))
	require.NoError(t, err)
	assert.Equal(t, 3, prog.total)
	assert.Equal(t, map[resolver.Outcome]int{resolver.Recognized: 2, resolver.Unrecognized: 1}, prog.resolved)
	assert.Equal(t, 1, prog.committed)
}

func TestResourceOperations(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	paths := f.exampleFiles(t)
	res, err := f.im.ImportFiles(ctx, paths)
	require.NoError(t, err)
	modHash := res.Imported[0].Hash
	packHash := res.Imported[1].Hash

	var batches []projection.Batch
	require.NoError(t, f.im.OnProjectionUpdate(func(b projection.Batch) { batches = append(batches, b) }))

	require.NoError(t, f.im.SetEnabled(ctx, modHash, false))
	got, ok := f.im.Projection().Get(modHash)
	require.True(t, ok)
	assert.False(t, got.Enabled)
	stored, err := f.im.GetResource(ctx, modHash)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)

	require.NoError(t, f.im.AddSource(ctx, modHash, resource.Source{Curseforge: &resource.CurseforgeSource{ProjectID: 7, FileID: 8}}))
	got, _ = f.im.Projection().Get(modHash)
	require.NotNil(t, got.Source.Curseforge)
	assert.Contains(t, got.URIs, "curseforge:7:8")

	require.NoError(t, f.im.RemoveResource(ctx, modHash))
	_, ok = f.im.Projection().Get(modHash)
	assert.False(t, ok)
	_, err = f.im.GetResource(ctx, modHash)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, f.im.RemoveResource(ctx, modHash))

	require.NoError(t, f.im.RemovePath(ctx, paths[1]))
	_, ok = f.im.Projection().Get(packHash)
	assert.False(t, ok)
	assert.Zero(t, f.im.Projection().Len())

	assert.Len(t, batches, 4)
	assert.ErrorIs(t, f.im.SetEnabled(ctx, "missing", true), store.ErrNotFound)
}

func TestLoadSeedsProjection(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, err := f.im.ImportFiles(ctx, f.exampleFiles(t))
	require.NoError(t, err)

	fresh := New(Options{Resolver: resolver.New(resolver.Options{}), Store: f.store})
	require.NoError(t, fresh.Load(ctx))
	assert.Equal(t, 2, fresh.Projection().Len())
	assert.Len(t, fresh.Projection().Snapshot(resource.DomainResourcePacks), 1)
}
