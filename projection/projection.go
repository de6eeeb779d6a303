// Package projection keeps the in-memory, observable mirror of the store.
//
// The projection is only ever changed through Apply with a whole batch of
// operations; subscribers are notified once per batch after it is applied.
package projection

import (
	"slices"
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"mc-resource-manager/resource"
)

const updateTopic = "projection:update"

// OpKind is the kind of a projection operation.
type OpKind int

const (
	OpUpsert OpKind = iota
	OpRemove
	OpPatch
)

func (k OpKind) String() string {
	switch k {
	case OpUpsert:
		return "upsert"
	case OpRemove:
		return "remove"
	case OpPatch:
		return "patch"
	}
	return "unknown"
}

// Patch lists the fields a patch operation overwrites; nil fields are left alone.
type Patch struct {
	Enabled *bool
	Source  *resource.Source
	URIs    []string
}

type Op struct {
	Kind     OpKind
	Resource resource.Resource // OpUpsert
	Domain   resource.Domain   // OpRemove of one (domain, hash) record
	Hash     string            // OpRemove without Path, OpPatch
	Path     string            // OpRemove
	Patch    Patch             // OpPatch
}

func Upsert(r resource.Resource) Op { return Op{Kind: OpUpsert, Resource: r.Clone()} }

func RemoveHash(hash string) Op { return Op{Kind: OpRemove, Hash: hash} }

// RemoveIdentity removes the entry of hash in domain only.
func RemoveIdentity(domain resource.Domain, hash string) Op {
	return Op{Kind: OpRemove, Domain: domain, Hash: hash}
}

func RemovePath(path string) Op { return Op{Kind: OpRemove, Path: path} }

func PatchFields(hash string, p Patch) Op { return Op{Kind: OpPatch, Hash: hash, Patch: p} }

// Batch is the unit of change observers receive.
type Batch struct {
	ID  string
	Ops []Op
}

type Projection struct {
	// writeMu serializes Apply so batches are applied and published in order.
	writeMu sync.Mutex
	mu      sync.RWMutex
	entries []resource.Resource
	bus     evbus.Bus
}

func New() *Projection {
	return &Projection{bus: evbus.New()}
}

// Subscribe registers fn to be called synchronously after every applied batch.
// fn may read the projection but must not call Apply.
func (p *Projection) Subscribe(fn func(Batch)) error {
	return p.bus.Subscribe(updateTopic, fn)
}

// Apply applies the operations of b in order and then notifies subscribers.
func (p *Projection) Apply(b Batch) {
	if len(b.Ops) == 0 {
		return
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	for _, op := range b.Ops {
		switch op.Kind {
		case OpUpsert:
			p.upsert(op.Resource.Clone())
		case OpRemove:
			p.remove(op)
		case OpPatch:
			p.patch(op.Hash, op.Patch)
		}
	}
	p.mu.Unlock()

	p.bus.Publish(updateTopic, b)
}

// upsert replaces the entry at the same path, or else the entry with the same
// domain and hash, or appends. Other entries with the same domain and hash are
// dropped so each is listed once.
func (p *Projection) upsert(r resource.Resource) {
	idx := -1
	if r.Path != "" {
		idx = slices.IndexFunc(p.entries, func(e resource.Resource) bool { return e.Path == r.Path })
	}
	if idx < 0 {
		idx = slices.IndexFunc(p.entries, func(e resource.Resource) bool { return sameIdentity(e, r) })
	}
	if idx < 0 {
		p.entries = append(p.entries, r)
		return
	}
	p.entries[idx] = r
	p.entries = slices.DeleteFunc(p.entries, func(e resource.Resource) bool {
		return sameIdentity(e, r) && e.Path != r.Path
	})
}

func (p *Projection) remove(op Op) {
	if op.Path != "" {
		p.entries = slices.DeleteFunc(p.entries, func(e resource.Resource) bool { return e.Path == op.Path })
		return
	}
	if op.Domain != "" {
		p.entries = slices.DeleteFunc(p.entries, func(e resource.Resource) bool {
			return e.Domain == op.Domain && e.Hash == op.Hash
		})
		return
	}
	p.entries = slices.DeleteFunc(p.entries, func(e resource.Resource) bool { return e.Hash == op.Hash })
}

func (p *Projection) patch(hash string, patch Patch) {
	for i := range p.entries {
		e := &p.entries[i]
		if e.Hash != hash {
			continue
		}
		if patch.Enabled != nil {
			e.Enabled = *patch.Enabled
		}
		if patch.Source != nil {
			e.Source = patch.Source.Clone()
		}
		if patch.URIs != nil {
			e.URIs = slices.Clone(patch.URIs)
		}
	}
}

func sameIdentity(a, b resource.Resource) bool {
	return a.Domain == b.Domain && a.Hash == b.Hash
}

// Snapshot returns copies of the entries of domain, or of all entries when
// domain is empty, in insertion order.
func (p *Projection) Snapshot(domain resource.Domain) []resource.Resource {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]resource.Resource, 0, len(p.entries))
	for _, e := range p.entries {
		if domain == "" || e.Domain == domain {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Get returns a copy of the first entry with hash.
func (p *Projection) Get(hash string) (resource.Resource, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.entries {
		if e.Hash == hash {
			return e.Clone(), true
		}
	}
	return resource.Resource{}, false
}

func (p *Projection) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
