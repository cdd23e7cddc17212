package sitecontent

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the interface for content store backends.
//
// Load must reflect the most recent successful Save for the key; stores do not
// cache. Save must replace the stored document atomically, so that a failed
// Save leaves the previous document readable.
type Store interface {
	// Load returns the document stored under key
	Load(ctx context.Context, key string) (Document, error)

	// Save replaces the document stored under key
	Save(ctx context.Context, key string, doc Document) error
}

// Invalidator is told which views went stale after a successful save
type Invalidator interface {
	Invalidate(ctx context.Context, event InvalidationEvent) error
}

// InvalidatorFunc adapts a function to the Invalidator interface
type InvalidatorFunc func(ctx context.Context, event InvalidationEvent) error

// Invalidate calls f(ctx, event)
func (f InvalidatorFunc) Invalidate(ctx context.Context, event InvalidationEvent) error {
	return f(ctx, event)
}

// InvalidationEvent names the views derived from a document that must be
// recomputed on next access.
type InvalidationEvent struct {
	ID          uuid.UUID `json:"id"`
	DocumentKey string    `json:"document_key"`
	Views       []string  `json:"views"`
	Sections    []string  `json:"sections"`
	At          time.Time `json:"at"`
}
