package editor

import (
	"context"
	"slices"
	"sync"

	"github.com/zeptools/invoicer/storage"
)

// Key is the storage key of session id within app.
func Key(app, id string) string {
	return app + "_invoice:" + id
}

// Registry opens sessions lazily by id and keeps them for reuse.
type Registry struct {
	App     string
	Store   storage.Store
	Options Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(app string, store storage.Store, opts Options) *Registry {
	return &Registry{
		App:      app,
		Store:    store,
		Options:  opts,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id, opening it from the store on first use.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	if r.sessions == nil {
		r.sessions = make(map[string]*Session)
	}
	s, err := Open(ctx, r.Store, Key(r.App, id), r.Options)
	if err != nil {
		return nil, err
	}
	r.sessions[id] = s
	return s, nil
}

// Lookup returns an already open session without touching the store.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// IDs of open sessions, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	slices.Sort(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close drops session id from memory. Its persisted invoice stays in the store.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}
