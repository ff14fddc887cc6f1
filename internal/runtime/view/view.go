// Package view keeps the latest known state of every service seen on the bus.
//
// Writers are serialized; readers never wait on them. The ordered listing is an
// immutable slice swapped atomically on every write, so a reader always sees
// either the listing before an upsert or the one after it, never a half
// applied change.
package view

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	errspkg "github.com/drblury/servicemirror/internal/runtime/errors"
	"github.com/drblury/servicemirror/internal/runtime/model"
)

// ErrIdentityRequired is returned for records without a usable identity.
var ErrIdentityRequired = errspkg.ErrIdentityRequired

// Option configures a View.
type Option func(*View)

// WithSizeObserver registers fn to be called with the new size after every
// write. It runs while the write lock is held and must not call back into the
// view.
func WithSizeObserver(fn func(size int)) Option {
	return func(v *View) {
		v.observe = fn
	}
}

// View is the materialized view of services keyed by identity.
type View struct {
	mu      sync.Mutex
	byID    *cache.Cache
	listing atomic.Pointer[[]model.ServiceRecord]
	observe func(int)
}

// New creates an empty view.
func New(opts ...Option) *View {
	v := &View{
		byID: cache.New(cache.NoExpiration, 0),
	}
	v.listing.Store(&[]model.ServiceRecord{})
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Upsert stores record under its identity, replacing any previous version
// wholesale, and moves it to the end of the listing. It reports whether the
// identity was new.
func (v *View) Upsert(record model.ServiceRecord) (bool, error) {
	id, ok := record.Identity()
	if !ok {
		return false, ErrIdentityRequired
	}
	stored := record.Stripped()
	key := id.String()

	v.mu.Lock()
	defer v.mu.Unlock()

	_, existed := v.byID.Get(key)
	v.byID.Set(key, stored, cache.NoExpiration)

	current := *v.listing.Load()
	next := make([]model.ServiceRecord, 0, len(current)+1)
	for _, r := range current {
		if rid, _ := r.Identity(); rid != id {
			next = append(next, r)
		}
	}
	next = append(next, stored)
	v.listing.Store(&next)

	v.notify(len(next))
	return !existed, nil
}

// Get returns a copy of the record stored under id.
func (v *View) Get(id uuid.UUID) (model.ServiceRecord, bool) {
	item, ok := v.byID.Get(id.String())
	if !ok {
		return model.ServiceRecord{}, false
	}
	return item.(model.ServiceRecord).Clone(), true
}

// Exists reports whether id is known.
func (v *View) Exists(id uuid.UUID) bool {
	_, ok := v.byID.Get(id.String())
	return ok
}

// Count returns the number of distinct identities.
func (v *View) Count() int {
	return v.byID.ItemCount()
}

// List returns a copy of the listing in insertion order, each identity once.
func (v *View) List() []model.ServiceRecord {
	current := *v.listing.Load()
	out := make([]model.ServiceRecord, len(current))
	for i, r := range current {
		out[i] = r.Clone()
	}
	return out
}

// Clear drops every record.
func (v *View) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.byID.Flush()
	v.listing.Store(&[]model.ServiceRecord{})
	v.notify(0)
}

func (v *View) notify(size int) {
	if v.observe != nil {
		v.observe(size)
	}
}
