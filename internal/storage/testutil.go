package storage

import (
	"context"
	"os"
	"sync"
)

// MemoryGateway is an in-memory Gateway for tests
type MemoryGateway struct {
	// BaseURL prefixes returned URLs
	BaseURL string
	// UploadErr and DeleteErr force failures
	UploadErr error
	DeleteErr error

	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

// NewMemoryGateway creates an empty gateway
func NewMemoryGateway(baseURL string) *MemoryGateway {
	return &MemoryGateway{BaseURL: baseURL, objects: make(map[string][]byte)}
}

// Upload implements Gateway
func (g *MemoryGateway) Upload(_ context.Context, localPath, key, _ string) (*UploadResult, error) {
	if g.UploadErr != nil {
		return nil, g.UploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.objects[key] = data
	g.mu.Unlock()
	return &UploadResult{Key: key, URL: g.BaseURL + "/" + key, Size: int64(len(data))}, nil
}

// Delete implements Gateway
func (g *MemoryGateway) Delete(_ context.Context, key string) error {
	if g.DeleteErr != nil {
		return g.DeleteErr
	}
	g.mu.Lock()
	delete(g.objects, key)
	g.deleted = append(g.deleted, key)
	g.mu.Unlock()
	return nil
}

// Configured implements Gateway
func (g *MemoryGateway) Configured() bool { return true }

// Object returns the stored bytes for key
func (g *MemoryGateway) Object(key string) ([]byte, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.objects[key]
	return data, ok
}

// Keys returns every stored key
func (g *MemoryGateway) Keys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	keys := make([]string, 0, len(g.objects))
	for k := range g.objects {
		keys = append(keys, k)
	}
	return keys
}

// Deleted returns keys passed to Delete
func (g *MemoryGateway) Deleted() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.deleted...)
}
