package sitecontent

import "context"

// Service is the main interface for reading and updating site content
type Service interface {
	// Get returns the full document stored under key
	Get(ctx context.Context, key string) (Document, error)

	// Update deep-merges patch into the stored document, saves the result,
	// schedules invalidation and returns the merged document
	Update(ctx context.Context, key string, patch Document) (Document, error)

	// GetSection returns one top-level section of the document
	GetSection(ctx context.Context, key, section string) (interface{}, error)

	// PutSection replaces one top-level section without merging
	PutSection(ctx context.Context, key, section string, value interface{}) (Document, error)

	// BatchSections replaces several top-level sections without merging
	BatchSections(ctx context.Context, key string, sections Document) (Document, error)

	// GetPage returns the sections rendered by a page
	GetPage(ctx context.Context, key, page string) (Document, error)

	// Seed saves doc under key only if nothing is stored there yet and
	// reports whether it did
	Seed(ctx context.Context, key string, doc Document) (bool, error)

	// Wait blocks until scheduled invalidations have been delivered
	Wait()
}

// PageCache holds page views between reads. Implementations are also
// Invalidators so that saved updates evict the views they stale.
type PageCache interface {
	Invalidator
	Get(key, page string) (Document, bool)
	// Generation changes whenever views of key are invalidated
	Generation(key string) uint64
	// SetIfCurrent caches view unless key was invalidated after gen was read
	SetIfCurrent(key, page string, view Document, gen uint64) bool
}
