package storage

import (
	"context"
	"sync"

	"github.com/divs-identity/divs-agent/interfaces"
)

// MemoryPinner is an in-process content-addressed store for tests and
// single-process development setups.
type MemoryPinner struct {
	mu      sync.RWMutex
	objects map[interfaces.ContentID][]byte
	names   map[interfaces.ContentID]string
}

func NewMemoryPinner() *MemoryPinner {
	return &MemoryPinner{
		objects: make(map[interfaces.ContentID][]byte),
		names:   make(map[interfaces.ContentID]string),
	}
}

func (p *MemoryPinner) Pin(ctx context.Context, payload []byte, name string) (interfaces.ContentID, error) {
	id, err := interfaces.ComputeContentID(payload)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[id] = append([]byte(nil), payload...)
	p.names[id] = name
	return id, nil
}

func (p *MemoryPinner) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	data, ok := p.objects[id]
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}
	return append([]byte(nil), data...), nil
}

// PinName returns the name a CID was pinned under.
func (p *MemoryPinner) PinName(id interfaces.ContentID) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.names[id]
}

// Len returns the number of stored objects.
func (p *MemoryPinner) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.objects)
}

func (p *MemoryPinner) Available(ctx context.Context) bool { return true }

func (p *MemoryPinner) Name() string { return "memory" }

func (p *MemoryPinner) LocationURI() string { return "memory://" }
