package store

import (
	"fmt"
	"sync"
)

// Factory constructs a Client for one pod's store_url. Supplied by the
// binary's wiring code so this package stays backend-agnostic.
type Factory func(storeURL string) (Client, error)

// Registry lazily creates and caches one Client per pod, satisfying the
// store_for(pod_id) contract: clients are pooled and shared across every
// worker goroutine in the process.
type Registry struct {
	storeURLs []string
	factory   Factory

	mu      sync.Mutex
	clients map[int]Client
}

// NewRegistry builds a registry over an ordered list of pod store URLs
// (index == pod_id) and a factory used to lazily construct clients.
func NewRegistry(storeURLs []string, factory Factory) *Registry {
	return &Registry{
		storeURLs: storeURLs,
		factory:   factory,
		clients:   make(map[int]Client),
	}
}

// PodCount returns N, the number of pods configured.
func (r *Registry) PodCount() int { return len(r.storeURLs) }

// For returns the (lazily created, cached) client for podID.
func (r *Registry) For(podID int) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[podID]; ok {
		return client, nil
	}

	if podID < 0 || podID >= len(r.storeURLs) {
		return nil, fmt.Errorf("store: pod id %d out of range [0,%d)", podID, len(r.storeURLs))
	}

	client, err := r.factory(r.storeURLs[podID])
	if err != nil {
		return nil, fmt.Errorf("store: connect pod %d: %w", podID, err)
	}

	r.clients[podID] = client

	return client, nil
}

// CloseAll closes every client created so far.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, client := range r.clients {
		_ = client.Close()
	}

	r.clients = make(map[int]Client)
}
