// Package resolver turns one path into zero or one resource.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mc-resource-manager/archive"
	"mc-resource-manager/cache"
	"mc-resource-manager/parser"
	"mc-resource-manager/resource"
)

var (
	// ErrIO marks files that could not be read.
	ErrIO = errors.New("i/o failure")
	// ErrParser marks files whose format was recognized but whose data is corrupt.
	ErrParser = errors.New("parser error")
	// ErrTimeout marks files that did not resolve within the time budget.
	ErrTimeout = errors.New("resolve timed out")
)

// Outcome classifies a resolved path.
type Outcome int

const (
	Recognized Outcome = iota
	Unrecognized
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Recognized:
		return "recognized"
	case Unrecognized:
		return "unrecognized"
	case Failed:
		return "failed"
	default:
		return "outcome(" + strconv.Itoa(int(o)) + ")"
	}
}

// Result is the outcome of resolving a single path. Resource is set only
// for Recognized, Err only for Failed.
type Result struct {
	Path     string
	Outcome  Outcome
	Resource *resource.Resource
	Err      error
}

// SourceLookup finds the provenance of a file by content hash. It returns
// nil, nil when the hash is unknown.
type SourceLookup interface {
	Lookup(ctx context.Context, hash string) (*resource.Source, error)
}

// IdentityCache remembers hashes of unchanged files between resolves.
type IdentityCache = cache.TTL[string, resource.Identity]

type Options struct {
	Registry *parser.Registry
	// Timeout bounds a single Resolve call; zero disables it.
	Timeout time.Duration
	Cache   *IdentityCache
	Lookup  SourceLookup
	Logger  *zap.SugaredLogger
	Now     func() time.Time
}

type Resolver struct {
	registry *parser.Registry
	timeout  time.Duration
	cache    *IdentityCache
	lookup   SourceLookup
	log      *zap.SugaredLogger
	now      func() time.Time
}

func New(opts Options) *Resolver {
	r := &Resolver{
		registry: opts.Registry,
		timeout:  opts.Timeout,
		cache:    opts.Cache,
		lookup:   opts.Lookup,
		log:      opts.Logger,
		now:      opts.Now,
	}
	if r.registry == nil {
		r.registry = parser.Default()
	}
	if r.log == nil {
		r.log = zap.NewNop().Sugar()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Resolve identifies and parses the file or directory at path. It never
// returns an error of its own; every failure is reported in the Result.
func (r *Resolver) Resolve(ctx context.Context, path string) Result {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if r.timeout <= 0 {
		return r.resolve(ctx, path)
	}

	tctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() { done <- r.resolve(tctx, path) }()

	select {
	case res := <-done:
		return res
	case <-tctx.Done():
		if ctx.Err() != nil {
			return failed(path, fmt.Errorf("%s: %w", path, ctx.Err()))
		}
		return failed(path, fmt.Errorf("%s: %w after %s", path, ErrTimeout, r.timeout))
	}
}

func (r *Resolver) resolve(ctx context.Context, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return failed(path, fmt.Errorf("%w: %v", ErrIO, err))
	}
	ext := strings.ToLower(filepath.Ext(path))
	if info.IsDir() {
		ext = parser.DirectoryExt
	}

	var (
		id       resource.Identity
		found    *match
		rejected error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		id, err = r.identify(gctx, path, info)
		return err
	})
	g.Go(func() error {
		var err error
		found, rejected, err = r.parse(gctx, path, ext)
		return err
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return failed(path, fmt.Errorf("%s: %w", path, ctx.Err()))
		}
		return failed(path, err)
	}

	switch {
	case found != nil:
	case rejected != nil:
		return failed(path, rejected)
	default:
		return Result{Path: path, Outcome: Unrecognized}
	}

	res, err := r.assemble(ctx, path, ext, info, id, found)
	if err != nil {
		return failed(path, err)
	}
	return Result{Path: path, Outcome: Recognized, Resource: res}
}

func (r *Resolver) identify(ctx context.Context, path string, info fs.FileInfo) (resource.Identity, error) {
	key := ""
	if !info.IsDir() {
		key = path + "|" + strconv.FormatInt(info.Size(), 10) + "|" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
		if id, ok := r.cache.Get(key); ok {
			return id, nil
		}
	}
	id, err := resource.Identify(ctx, path)
	if err != nil {
		return resource.Identity{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if key != "" {
		r.cache.Add(key, id)
	}
	return id, nil
}

type match struct {
	parser   parser.Parser
	metadata any
	icon     []byte
}

// parse tries the candidate parsers in order. The first success wins even
// after an earlier candidate reported broken data; that earlier error is only
// returned, as rejected, when nothing matched. err ends the whole resolve.
func (r *Resolver) parse(ctx context.Context, path, ext string) (m *match, rejected error, err error) {
	fsys, err := archive.Open(path)
	if err != nil {
		if errors.Is(err, archive.ErrCorruptArchive) {
			return nil, nil, fmt.Errorf("%w: %v", ErrParser, err)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer fsys.Close()

	var firstErr error
	for _, p := range r.registry.Candidates(ext) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		meta, err := p.ParseMetadata(fsys)
		if errors.Is(err, parser.ErrFormatMismatch) {
			continue
		}
		if err != nil {
			r.log.Debugw("Parser rejected file", zap.String("path", path), zap.String("type", string(p.Type)), zap.Error(err))
			if firstErr == nil {
				firstErr = classify(p.Type, err)
			}
			continue
		}

		icon, err := p.ParseIcon(fsys, meta)
		if err != nil {
			if errors.Is(err, archive.ErrCorruptArchive) {
				return nil, nil, classify(p.Type, err)
			}
			r.log.Warnw("Failed to read icon", zap.String("path", path), zap.String("type", string(p.Type)), zap.Error(err))
			icon = nil
		}
		return &match{parser: p, metadata: meta, icon: icon}, nil, nil
	}
	return nil, firstErr, nil
}

func classify(typ resource.Type, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s: %v", ErrIO, typ, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrParser, typ, err)
}

func (r *Resolver) assemble(ctx context.Context, path, ext string, info fs.FileInfo, id resource.Identity, m *match) (*resource.Resource, error) {
	p := m.parser
	raw, err := json.Marshal(m.metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: encode metadata: %v", ErrParser, p.Type, err)
	}

	name := p.SuggestedName(m.metadata)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if ext == parser.DirectoryExt {
		ext = ""
	}

	res := &resource.Resource{
		Hash:     id.Hash,
		Path:     path,
		Name:     name,
		Domain:   p.Domain,
		Type:     p.Type,
		Ext:      ext,
		Size:     id.Size,
		Metadata: raw,
		URIs:     p.URIs(m.metadata),
		Enabled:  true,
		Source:   resource.Source{ImportedAt: r.now().UTC()},
	}
	if m.icon != nil {
		res.Icons = [][]byte{m.icon}
	}

	if r.lookup != nil && !info.IsDir() {
		src, err := r.lookup.Lookup(ctx, id.Hash)
		switch {
		case err != nil:
			r.log.Debugw("Provenance lookup failed", zap.String("path", path), zap.String("hash", id.Hash), zap.Error(err))
		case src != nil:
			res.Source = res.Source.Merge(*src)
			res.URIs = resource.MergeURIs(res.URIs, res.Source.URIs())
		}
	}
	return res, nil
}

func failed(path string, err error) Result {
	return Result{Path: path, Outcome: Failed, Err: err}
}
