package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"mc-resource-manager/db"
	"mc-resource-manager/resource"
)

// Get returns a record with the given hash. When the same bytes are stored
// in several domains the oldest record wins.
func (s *Store) Get(ctx context.Context, hash string) (resource.Resource, error) {
	return s.first(ctx, s.db.WithContext(ctx).Where("hash = ?", hash))
}

func (s *Store) first(ctx context.Context, query *gorm.DB) (resource.Resource, error) {
	var rows []db.Resource
	if err := query.Order("id").Limit(1).Find(&rows).Error; err != nil {
		return resource.Resource{}, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if len(rows) == 0 {
		return resource.Resource{}, ErrNotFound
	}
	out, err := hydrate(s.db.WithContext(ctx), rows)
	if err != nil {
		return resource.Resource{}, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return out[0], nil
}

// All lists the records of a domain, or of every domain when domain is empty.
func (s *Store) All(ctx context.Context, domain resource.Domain) ([]resource.Resource, error) {
	query := s.db.WithContext(ctx)
	if domain != "" {
		query = query.Where("domain = ?", string(domain))
	}
	return s.find(ctx, query)
}

// FindByURI lists the records carrying a uri that starts with prefix, so
// "modrinth:AANobbMI" finds every stored version of that project.
func (s *Store) FindByURI(ctx context.Context, prefix string) ([]resource.Resource, error) {
	sub := s.db.Model(&db.ResourceURI{}).Select("resource_id").
		Where(`uri LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	return s.find(ctx, s.db.WithContext(ctx).Where("id IN (?)", sub))
}

// Search lists the records whose name contains keyword, ignoring ASCII case,
// within domain or every domain when domain is empty.
func (s *Store) Search(ctx context.Context, domain resource.Domain, keyword string) ([]resource.Resource, error) {
	query := s.db.WithContext(ctx).Where(`name LIKE ? ESCAPE '\'`, "%"+escapeLike(keyword)+"%")
	if domain != "" {
		query = query.Where("domain = ?", string(domain))
	}
	return s.find(ctx, query)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// FindByPath lists the records whose last known location is path.
func (s *Store) FindByPath(ctx context.Context, path string) ([]resource.Resource, error) {
	return s.find(ctx, s.db.WithContext(ctx).Where("path = ?", path))
}

func (s *Store) find(ctx context.Context, query *gorm.DB) ([]resource.Resource, error) {
	var rows []db.Resource
	if err := query.Order("domain, name, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	out, err := hydrate(s.db.WithContext(ctx), rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return out, nil
}

// Remove deletes every record with hash and returns what was removed.
// Removing an unknown hash is not an error.
func (s *Store) Remove(ctx context.Context, hash string) ([]resource.Resource, error) {
	removed, err := s.removeWhere(ctx, []string{hash}, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("hash = ?", hash)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: remove %s: %w", ErrStore, hash, err)
	}
	return removed, nil
}

// RemovePath deletes the records whose last known location is path, as when
// the file behind them was deleted.
func (s *Store) RemovePath(ctx context.Context, path string) ([]resource.Resource, error) {
	var hashes []string
	if err := s.db.WithContext(ctx).Model(&db.Resource{}).Where("path = ?", path).Distinct().Pluck("hash", &hashes).Error; err != nil {
		return nil, fmt.Errorf("%w: remove %s: %w", ErrStore, path, err)
	}
	if len(hashes) == 0 {
		return nil, nil
	}
	removed, err := s.removeWhere(ctx, hashes, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("path = ? AND hash IN ?", path, hashes)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: remove %s: %w", ErrStore, path, err)
	}
	return removed, nil
}

func (s *Store) removeWhere(ctx context.Context, hashes []string, scope func(*gorm.DB) *gorm.DB) ([]resource.Resource, error) {
	unlock := s.locks.Lock(hashes...)
	defer unlock()

	var removed []resource.Resource
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []db.Resource
		if err := scope(tx).Order("id").Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		var err error
		removed, err = deleteRows(tx, rows)
		return err
	})
	return removed, err
}

// deleteRows deletes rows with their icons and uris and returns them as resources.
func deleteRows(tx *gorm.DB, rows []db.Resource) ([]resource.Resource, error) {
	deleted, err := hydrate(tx, rows)
	if err != nil {
		return nil, err
	}
	ids := rowIDs(rows)
	if err := tx.Where("resource_id IN ?", ids).Delete(&db.ResourceIcon{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("resource_id IN ?", ids).Delete(&db.ResourceURI{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Delete(&db.Resource{}, ids).Error; err != nil {
		return nil, err
	}
	return deleted, nil
}

// SetEnabled sets the enabled flag of every record with hash.
func (s *Store) SetEnabled(ctx context.Context, hash string, enabled bool) ([]resource.Resource, error) {
	return s.update(ctx, hash, func(r *resource.Resource) { r.Enabled = enabled })
}

// AddSource merges provenance into every record with hash.
func (s *Store) AddSource(ctx context.Context, hash string, src resource.Source) ([]resource.Resource, error) {
	return s.update(ctx, hash, func(r *resource.Resource) {
		r.Source = r.Source.Merge(src)
		r.URIs = resource.MergeURIs(r.URIs, r.Source.URIs())
	})
}

func (s *Store) update(ctx context.Context, hash string, mutate func(*resource.Resource)) ([]resource.Resource, error) {
	unlock := s.locks.Lock(hash)
	defer unlock()

	var updated []resource.Resource
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []db.Resource
		if err := tx.Where("hash = ?", hash).Order("id").Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return ErrNotFound
		}
		current, err := hydrate(tx, rows)
		if err != nil {
			return err
		}
		for i, r := range current {
			before := r.URIs
			mutate(&r)
			source, err := json.Marshal(r.Source)
			if err != nil {
				return err
			}
			if err := tx.Model(&rows[i]).Updates(map[string]any{"enabled": r.Enabled, "source": source}).Error; err != nil {
				return err
			}
			if err := addURIs(tx, rows[i].ID, before, r.URIs); err != nil {
				return err
			}
			updated = append(updated, r)
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: update %s: %w", ErrStore, hash, err)
	}
	return updated, nil
}

func hydrateOne(tx *gorm.DB, row db.Resource) (resource.Resource, error) {
	out, err := hydrate(tx, []db.Resource{row})
	if err != nil {
		return resource.Resource{}, err
	}
	return out[0], nil
}

// hydrate loads icons and uris for rows and converts them to resources.
func hydrate(tx *gorm.DB, rows []db.Resource) ([]resource.Resource, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids := rowIDs(rows)

	var icons []db.ResourceIcon
	if err := tx.Where("resource_id IN ?", ids).Order("resource_id, ordinal").Find(&icons).Error; err != nil {
		return nil, err
	}
	var uris []db.ResourceURI
	if err := tx.Where("resource_id IN ?", ids).Order("id").Find(&uris).Error; err != nil {
		return nil, err
	}
	iconsByID := make(map[uint][][]byte)
	for _, icon := range icons {
		iconsByID[icon.ResourceID] = append(iconsByID[icon.ResourceID], icon.Data)
	}
	urisByID := make(map[uint][]string)
	for _, uri := range uris {
		urisByID[uri.ResourceID] = append(urisByID[uri.ResourceID], uri.URI)
	}

	out := make([]resource.Resource, 0, len(rows))
	for _, row := range rows {
		r := resource.Resource{
			Hash:     row.Hash,
			Path:     row.Path,
			Name:     row.Name,
			Domain:   resource.Domain(row.Domain),
			Type:     resource.Type(row.Type),
			Ext:      row.Ext,
			Size:     row.Size,
			Metadata: row.Metadata,
			Icons:    iconsByID[row.ID],
			URIs:     urisByID[row.ID],
			Enabled:  row.Enabled,
		}
		if len(row.Source) > 0 {
			if err := json.Unmarshal(row.Source, &r.Source); err != nil {
				return nil, fmt.Errorf("decode source of %s: %w", row.Hash, err)
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func rowIDs(rows []db.Resource) []uint {
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}
