package modrinth

import (
	"context"
	"errors"
	"time"

	"mc-resource-manager/cache"
	"mc-resource-manager/resource"
)

// Provenance looks up where a file came from by its SHA-1 hash. Answers,
// including "unknown", are cached.
type Provenance struct {
	client *Client
	cache  *cache.TTL[string, *resource.Source]
}

func NewProvenance(client *Client, size int, ttl time.Duration) *Provenance {
	return &Provenance{client: client, cache: cache.New[string, *resource.Source](size, ttl)}
}

// Lookup returns the Modrinth origin of hash, or nil when Modrinth does not know it.
func (p *Provenance) Lookup(ctx context.Context, hash string) (*resource.Source, error) {
	if src, ok := p.cache.Get(hash); ok {
		return cloneSource(src), nil
	}

	version, err := p.client.GetVersionByHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		p.cache.Add(hash, nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	src := &resource.Source{Modrinth: &resource.ModrinthSource{ProjectID: version.ProjectID, VersionID: version.ID}}
	p.cache.Add(hash, src)
	return cloneSource(src), nil
}

func cloneSource(src *resource.Source) *resource.Source {
	if src == nil {
		return nil
	}
	out := src.Clone()
	return &out
}
