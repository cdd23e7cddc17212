package memory

import (
	"context"
	"sync"

	"github.com/tendant/site-content/pkg/sitecontent"
)

const backendName = "memory"

// Store is an in-memory implementation of the sitecontent.Store interface.
// Documents are kept encoded so that callers never share maps with the store.
type Store struct {
	mu        sync.RWMutex
	documents map[string][]byte
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		documents: make(map[string][]byte),
	}
}

// Load decodes the document stored under key
func (s *Store) Load(ctx context.Context, key string) (sitecontent.Document, error) {
	s.mu.RLock()
	data, exists := s.documents[key]
	s.mu.RUnlock()

	if !exists {
		return nil, sitecontent.NewStoreError(backendName, key, "load", sitecontent.ErrDocumentNotFound)
	}

	doc, err := sitecontent.ParseDocument(data)
	if err != nil {
		return nil, sitecontent.NewStoreError(backendName, key, "load", err)
	}
	return doc, nil
}

// Save encodes doc and replaces whatever was stored under key
func (s *Store) Save(ctx context.Context, key string, doc sitecontent.Document) error {
	data, err := doc.Encode()
	if err != nil {
		return sitecontent.NewStoreError(backendName, key, "save", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents[key] = data
	return nil
}

// Raw returns the persisted bytes for key
func (s *Store) Raw(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.documents[key]
	if !exists {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}
