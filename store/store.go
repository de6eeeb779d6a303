// Package store is the authoritative persistence of resources.
//
// Records are keyed by (domain, hash). Writes to the same hash are serialized
// in-process by a keyed mutex and each batch commits in one transaction, so a
// batch is either fully persisted or not at all.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"mc-resource-manager/db"
	"mc-resource-manager/resource"
)

var (
	// ErrStore wraps every persistence failure.
	ErrStore = errors.New("store failure")
	// ErrNotFound is returned when no record has the requested hash.
	ErrNotFound = errors.New("resource not found")
)

// Outcome describes what an upsert did.
type Outcome struct {
	// Resource is the record as persisted, after merging.
	Resource resource.Resource
	// Created is false when an existing record was merged.
	Created bool
	// PreviousPath is the path the record had before the upsert.
	PreviousPath string
	// Replaced are the records that were stored at the same path with other
	// content. They were deleted, since the file no longer holds that content.
	Replaced []resource.Resource
}

type Store struct {
	db    *gorm.DB
	locks *keyedMutex
	log   *zap.SugaredLogger
}

func New(database *gorm.DB, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{db: database, locks: newKeyedMutex(), log: log}
}

// Upsert inserts r or merges it into the record with the same domain and hash.
func (s *Store) Upsert(ctx context.Context, r resource.Resource) (Outcome, error) {
	outcomes, err := s.CommitBatch(ctx, []resource.Resource{r})
	if err != nil {
		return Outcome{}, err
	}
	return outcomes[0], nil
}

// CommitBatch upserts every resource in one transaction. Outcomes are in input
// order. On error nothing of the batch is persisted.
func (s *Store) CommitBatch(ctx context.Context, rs []resource.Resource) ([]Outcome, error) {
	if len(rs) == 0 {
		return nil, nil
	}
	hashes := make([]string, 0, len(rs))
	for _, r := range rs {
		if r.Hash == "" || !r.Domain.Valid() {
			return nil, fmt.Errorf("%w: invalid resource %q (domain %q)", ErrStore, r.Path, r.Domain)
		}
		hashes = append(hashes, r.Hash)
	}

	unlock := s.locks.Lock(hashes...)
	defer unlock()

	var outcomes []Outcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		outcomes = make([]Outcome, 0, len(rs))
		for _, r := range rs {
			out, err := upsert(tx, r)
			if err != nil {
				return fmt.Errorf("%s: %w", r.Path, err)
			}
			outcomes = append(outcomes, out)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: commit %d resources: %w", ErrStore, len(rs), err)
	}

	s.log.Debugw("Committed batch", zap.Int("resources", len(outcomes)))
	return outcomes, nil
}

func upsert(tx *gorm.DB, r resource.Resource) (Outcome, error) {
	replaced, err := dropReplaced(tx, r)
	if err != nil {
		return Outcome{}, err
	}

	var row db.Resource
	err = tx.Where("domain = ? AND hash = ?", string(r.Domain), r.Hash).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row, err = toRow(r)
		if err != nil {
			return Outcome{}, err
		}
		if err := tx.Create(&row).Error; err != nil {
			return Outcome{}, err
		}
		if err := replaceIcons(tx, row.ID, r.Icons); err != nil {
			return Outcome{}, err
		}
		if err := addURIs(tx, row.ID, nil, r.URIs); err != nil {
			return Outcome{}, err
		}
		return Outcome{Resource: r.Clone(), Created: true, Replaced: replaced}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	existing, err := hydrateOne(tx, row)
	if err != nil {
		return Outcome{}, err
	}
	merged := Merge(existing, r)

	updated, err := toRow(merged)
	if err != nil {
		return Outcome{}, err
	}
	updated.ID = row.ID
	updated.CreatedAt = row.CreatedAt
	if err := tx.Save(&updated).Error; err != nil {
		return Outcome{}, err
	}
	if len(r.Icons) > 0 {
		if err := replaceIcons(tx, row.ID, r.Icons); err != nil {
			return Outcome{}, err
		}
	}
	if err := addURIs(tx, row.ID, existing.URIs, r.URIs); err != nil {
		return Outcome{}, err
	}
	return Outcome{Resource: merged, PreviousPath: existing.Path, Replaced: replaced}, nil
}

// dropReplaced deletes the records stored at r's path under another identity.
func dropReplaced(tx *gorm.DB, r resource.Resource) ([]resource.Resource, error) {
	var rows []db.Resource
	err := tx.Where("path = ? AND NOT (domain = ? AND hash = ?)", r.Path, string(r.Domain), r.Hash).
		Order("id").Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return deleteRows(tx, rows)
}

// Merge folds a re-imported resource into the stored one. The path always
// moves to the latest location; metadata, name and icons are refreshed only
// when the new parse produced them; provenance and uris are unioned and the
// enabled flag is kept.
func Merge(existing, incoming resource.Resource) resource.Resource {
	out := existing.Clone()
	in := incoming.Clone()

	out.Path = in.Path
	if in.Ext != "" {
		out.Ext = in.Ext
	}
	if in.Size > 0 {
		out.Size = in.Size
	}
	if len(in.Metadata) > 0 && string(in.Metadata) != "null" {
		out.Metadata = in.Metadata
		out.Type = in.Type
		if in.Name != "" {
			out.Name = in.Name
		}
	}
	if len(in.Icons) > 0 {
		out.Icons = in.Icons
	}
	out.Source = out.Source.Merge(in.Source)
	out.URIs = resource.MergeURIs(out.URIs, in.URIs)
	return out
}

func toRow(r resource.Resource) (db.Resource, error) {
	source, err := json.Marshal(r.Source)
	if err != nil {
		return db.Resource{}, fmt.Errorf("encode source: %w", err)
	}
	return db.Resource{
		Domain:   string(r.Domain),
		Hash:     r.Hash,
		Path:     r.Path,
		Name:     r.Name,
		Type:     string(r.Type),
		Ext:      r.Ext,
		Size:     r.Size,
		Metadata: r.Metadata,
		Source:   source,
		Enabled:  r.Enabled,
	}, nil
}

func replaceIcons(tx *gorm.DB, id uint, icons [][]byte) error {
	if err := tx.Where("resource_id = ?", id).Delete(&db.ResourceIcon{}).Error; err != nil {
		return err
	}
	if len(icons) == 0 {
		return nil
	}
	rows := make([]db.ResourceIcon, 0, len(icons))
	for i, icon := range icons {
		rows = append(rows, db.ResourceIcon{ResourceID: id, Ordinal: i, Data: icon})
	}
	return tx.Create(&rows).Error
}

// addURIs stores the uris of incoming that are not already in existing.
func addURIs(tx *gorm.DB, id uint, existing, incoming []string) error {
	added := resource.MergeURIs(existing, incoming)[len(existing):]
	if len(added) == 0 {
		return nil
	}
	rows := make([]db.ResourceURI, 0, len(added))
	for _, uri := range added {
		rows = append(rows, db.ResourceURI{ResourceID: id, URI: uri})
	}
	return tx.Create(&rows).Error
}
