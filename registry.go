package ap2

import (
	"net/http"
	"sort"
	"sync"
)

// StoreInfo describes one merchant backend known to an aggregator.
type StoreInfo struct {
	StoreID string `json:"store_id"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

// Registry is an in-memory directory of merchant backends, for aggregator
// deployments that front several stores.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]StoreInfo
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]StoreInfo)}
}

// Register adds or replaces a store entry.
func (r *Registry) Register(info StoreInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[info.StoreID] = info
}

// Lookup returns the store with the given id.
func (r *Registry) Lookup(storeID string) (StoreInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.stores[storeID]
	return info, ok
}

// List returns all stores ordered by id.
func (r *Registry) List() []StoreInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StoreInfo, 0, len(r.stores))
	for _, info := range r.stores {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoreID < out[j].StoreID })
	return out
}

// Handler serves the store directory at GET /stores.
func (r *Registry) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stores", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, r.List())
	})
	return mux
}
