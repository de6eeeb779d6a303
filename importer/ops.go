package importer

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"mc-resource-manager/projection"
	"mc-resource-manager/resource"
)

// Load seeds the projection with every stored resource.
func (im *Importer) Load(ctx context.Context) error {
	all, err := im.store.All(ctx, "")
	if err != nil {
		return err
	}
	ops := make([]projection.Op, 0, len(all))
	for _, r := range all {
		ops = append(ops, projection.Upsert(r))
	}
	im.projection.Apply(projection.Batch{ID: "load", Ops: ops})
	return nil
}

// GetResource returns a stored resource; store.ErrNotFound if there is none.
func (im *Importer) GetResource(ctx context.Context, hash string) (resource.Resource, error) {
	return im.store.Get(ctx, hash)
}

// ListResources lists the stored resources of domain, or all of them for "".
func (im *Importer) ListResources(ctx context.Context, domain resource.Domain) ([]resource.Resource, error) {
	return im.store.All(ctx, domain)
}

// FindByURI lists the stored resources carrying a uri that starts with prefix,
// e.g. "modrinth:AANobbMI" for every version of one Modrinth project.
func (im *Importer) FindByURI(ctx context.Context, prefix string) ([]resource.Resource, error) {
	return im.store.FindByURI(ctx, prefix)
}

// SearchResources lists the stored resources of domain whose name contains keyword.
func (im *Importer) SearchResources(ctx context.Context, domain resource.Domain, keyword string) ([]resource.Resource, error) {
	return im.store.Search(ctx, domain, keyword)
}

// FindByPath lists the stored resources last seen at path.
func (im *Importer) FindByPath(ctx context.Context, path string) ([]resource.Resource, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return im.store.FindByPath(ctx, path)
}

// RemoveResource removes every record with hash from the store, then from the
// projection. The files on disk are not touched.
func (im *Importer) RemoveResource(ctx context.Context, hash string) error {
	im.commitMu.Lock()
	defer im.commitMu.Unlock()

	removed, err := im.store.Remove(ctx, hash)
	if err != nil {
		return err
	}
	if len(removed) > 0 {
		im.projection.Apply(projection.Batch{ID: "remove:" + hash, Ops: []projection.Op{projection.RemoveHash(hash)}})
		im.log.Infow("Removed resource", zap.String("hash", hash), zap.Int("records", len(removed)))
	}
	return nil
}

// RemovePath forgets the records stored at path, as when the file was deleted.
func (im *Importer) RemovePath(ctx context.Context, path string) error {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	im.commitMu.Lock()
	defer im.commitMu.Unlock()

	removed, err := im.store.RemovePath(ctx, path)
	if err != nil {
		return err
	}
	if len(removed) > 0 {
		im.projection.Apply(projection.Batch{ID: "remove:" + path, Ops: []projection.Op{projection.RemovePath(path)}})
		im.log.Infow("Removed resource of deleted file", zap.String("path", path))
	}
	return nil
}

// SetEnabled toggles a resource and patches the projection.
func (im *Importer) SetEnabled(ctx context.Context, hash string, enabled bool) error {
	im.commitMu.Lock()
	defer im.commitMu.Unlock()

	if _, err := im.store.SetEnabled(ctx, hash, enabled); err != nil {
		return err
	}
	im.projection.Apply(projection.Batch{ID: "enable:" + hash, Ops: []projection.Op{
		projection.PatchFields(hash, projection.Patch{Enabled: &enabled}),
	}})
	return nil
}

// AddSource merges provenance into a resource and patches the projection.
func (im *Importer) AddSource(ctx context.Context, hash string, src resource.Source) error {
	im.commitMu.Lock()
	defer im.commitMu.Unlock()

	updated, err := im.store.AddSource(ctx, hash, src)
	if err != nil {
		return err
	}
	merged := updated[0]
	im.projection.Apply(projection.Batch{ID: "source:" + hash, Ops: []projection.Op{
		projection.PatchFields(hash, projection.Patch{Source: &merged.Source, URIs: merged.URIs}),
	}})
	return nil
}

// OnProjectionUpdate registers fn to receive every batch applied to the projection.
func (im *Importer) OnProjectionUpdate(fn func(projection.Batch)) error {
	return im.projection.Subscribe(fn)
}
