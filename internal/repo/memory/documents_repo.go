package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/linguadesk/internal/domain/document"
	"github.com/geocoder89/linguadesk/internal/ids"
)

// DocumentsRepo keeps documents in process. Every operation runs under one
// mutex, so a Replace is a single atomic read-modify-write and concurrent
// replaces resolve last-write-wins in lock order.
type DocumentsRepo struct {
	mu      sync.RWMutex
	items   map[string]document.Document
	byToken map[string]string // sharedToken -> document id
	now     func() time.Time
}

func NewDocumentsRepo() *DocumentsRepo {
	return &DocumentsRepo{
		items:   make(map[string]document.Document),
		byToken: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *DocumentsRepo) ListByOwner(_ context.Context, ownerID string) ([]document.Document, error) {
	r.mu.RLock()
	out := make([]document.Document, 0)
	for _, d := range r.items {
		if d.OwnerID == ownerID {
			out = append(out, d.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

func (r *DocumentsRepo) Create(_ context.Context, ownerID, title string) (document.Document, error) {
	d := document.New(ownerID, title, r.now())

	r.mu.Lock()
	r.items[d.ID] = d
	r.mu.Unlock()

	return d.Clone(), nil
}

func (r *DocumentsRepo) GetOwned(_ context.Context, id, requesterID string) (document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.items[id]
	if !ok || d.OwnerID != requesterID {
		return document.Document{}, document.ErrNotFound
	}

	return d.Clone(), nil
}

func (r *DocumentsRepo) Replace(_ context.Context, id, requesterID string, patch document.Patch) (document.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[id]
	if !ok || stored.OwnerID != requesterID {
		return document.Document{}, document.ErrNotFound
	}

	d := stored.Clone()
	if err := d.Apply(patch, ids.NewShareToken, r.now()); err != nil {
		return document.Document{}, err
	}

	r.items[id] = d
	if d.IsShared() {
		r.byToken[*d.SharedToken] = id
	}

	return d.Clone(), nil
}

func (r *DocumentsRepo) Delete(_ context.Context, id, requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.items[id]
	if !ok || d.OwnerID != requesterID {
		return document.ErrNotFound
	}

	delete(r.items, id)
	if d.IsShared() {
		delete(r.byToken, *d.SharedToken)
	}

	return nil
}

func (r *DocumentsRepo) GetBySharedToken(_ context.Context, token string) (document.Document, error) {
	if token == "" {
		return document.Document{}, document.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byToken[token]
	if !ok {
		return document.Document{}, document.ErrNotFound
	}

	d, ok := r.items[id]
	if !ok {
		return document.Document{}, document.ErrNotFound
	}

	return d.Clone(), nil
}

// SharedTokenFor returns nil for unknown documents: meeting sessions may
// point at documents that no longer exist.
func (r *DocumentsRepo) SharedTokenFor(_ context.Context, docID string) (*string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.items[docID]
	if !ok || !d.IsShared() {
		return nil, nil
	}

	token := *d.SharedToken
	return &token, nil
}
