package share

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/linguadesk/internal/cache"
	"github.com/geocoder89/linguadesk/internal/domain/document"
	"github.com/geocoder89/linguadesk/internal/observability"
	"golang.org/x/sync/singleflight"
)

const (
	keyPrefix     = "share:"
	lookupTimeout = 5 * time.Second
)

type DocumentLookup interface {
	GetBySharedToken(ctx context.Context, token string) (document.Document, error)
}

// Resolver serves the public projection of shared documents, reading
// through a cache. Concurrent misses for one token share a single store read.
type Resolver struct {
	docs  DocumentLookup
	cache cache.Store
	ttl   time.Duration
	prom  *observability.Prom
	log   *slog.Logger
	group singleflight.Group

	// gen is bumped by Invalidate. A fill that started under an older gen
	// must not write its view back.
	mu  sync.Mutex
	gen uint64
}

func NewResolver(docs DocumentLookup, store cache.Store, ttl time.Duration, prom *observability.Prom, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}

	return &Resolver{
		docs:  docs,
		cache: store,
		ttl:   ttl,
		prom:  prom,
		log:   log,
	}
}

func (r *Resolver) Resolve(ctx context.Context, token string) (document.View, error) {
	if token == "" {
		return document.View{}, document.ErrNotFound
	}

	if v, ok := r.fromCache(ctx, token); ok {
		return v, nil
	}

	res, err, _ := r.group.Do(token, func() (any, error) {
		// Waiters share this read, so it must outlive the caller that started it.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		gen := r.generation()

		d, err := r.docs.GetBySharedToken(lctx, token)
		if err != nil {
			return document.View{}, err
		}

		view := d.View()
		r.store(lctx, token, view, gen)

		return view, nil
	})

	if err != nil {
		return document.View{}, err
	}

	return res.(document.View), nil
}

// Invalidate drops the cached view for token. Cache failures are logged,
// never returned: the entry expires on its own.
func (r *Resolver) Invalidate(ctx context.Context, token string) {
	if r == nil || r.cache == nil || token == "" {
		return
	}

	r.mu.Lock()
	r.gen++
	r.mu.Unlock()

	r.group.Forget(token)

	if err := r.cache.Delete(ctx, keyPrefix+token); err != nil {
		r.log.WarnContext(ctx, "share cache invalidate failed", "err", err)
	}
}

func (r *Resolver) fromCache(ctx context.Context, token string) (document.View, bool) {
	if r.cache == nil {
		return document.View{}, false
	}

	raw, err := r.cache.Get(ctx, keyPrefix+token)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			r.prom.ObserveCache("miss")
		} else {
			r.prom.ObserveCache("error")
			r.log.WarnContext(ctx, "share cache read failed", "err", err)
		}
		return document.View{}, false
	}

	var v document.View
	if err := json.Unmarshal(raw, &v); err != nil {
		r.prom.ObserveCache("error")
		return document.View{}, false
	}

	r.prom.ObserveCache("hit")
	return v, true
}

func (r *Resolver) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.gen
}

// store writes v unless an invalidation happened after the read began. The
// write holds mu so an Invalidate cannot slip between the check and the Set.
func (r *Resolver) store(ctx context.Context, token string, v document.View, gen uint64) {
	if r.cache == nil {
		return
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gen != gen {
		return
	}

	if err := r.cache.Set(ctx, keyPrefix+token, raw, r.ttl); err != nil {
		r.log.WarnContext(ctx, "share cache write failed", "err", err)
	}
}
