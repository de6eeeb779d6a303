package db

import (
	"time"
)

// Resource is one stored resource. (domain, hash) is unique; metadata and
// source are JSON documents.
type Resource struct {
	ID        uint   `gorm:"primaryKey"`
	Domain    string `gorm:"not null;uniqueIndex:idx_resources_domain_hash"`
	Hash      string `gorm:"not null;uniqueIndex:idx_resources_domain_hash;index"`
	Path      string `gorm:"index"` // Last known location on disk
	Name      string
	Type      string
	Ext       string
	Size      int64
	Metadata  []byte
	Source    []byte
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResourceIcon holds an icon blob of a resource, in extraction order.
type ResourceIcon struct {
	ID         uint `gorm:"primaryKey"`
	ResourceID uint `gorm:"not null;index"`
	Ordinal    int
	Data       []byte
}

// ResourceURI is one canonical identifier of a resource.
type ResourceURI struct {
	ID         uint   `gorm:"primaryKey"`
	ResourceID uint   `gorm:"not null;index"`
	URI        string `gorm:"not null;index"`
}

func (ResourceURI) TableName() string { return "resource_uris" }

// Models lists every migrated model.
var Models = []any{&Resource{}, &ResourceIcon{}, &ResourceURI{}}
