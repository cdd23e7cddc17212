package sitecontent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultInvalidateTimeout = 5 * time.Second

// service implements the Service interface
type service struct {
	store             Store
	invalidators      []Invalidator
	pageCache         PageCache
	hooks             Hooks
	logger            *slog.Logger
	fixedViews        []string
	sectionViews      bool
	invalidateTimeout time.Duration

	wg sync.WaitGroup
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithStore sets the content store
func WithStore(store Store) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithInvalidator adds an invalidator. Invalidators are called in the order
// they were added.
func WithInvalidator(inv Invalidator) Option {
	return func(s *service) {
		if inv != nil {
			s.invalidators = append(s.invalidators, inv)
		}
	}
}

// WithPageCache caches page views in cache and invalidates it on updates
func WithPageCache(cache PageCache) Option {
	return func(s *service) {
		s.pageCache = cache
		if cache != nil {
			s.invalidators = append(s.invalidators, cache)
		}
	}
}

// WithHooks adds lifecycle hooks
func WithHooks(hooks *Hooks) Option {
	return func(s *service) {
		s.hooks.merge(hooks)
	}
}

// WithLogger sets the logger used for non-fatal failures
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFixedViews sets the views invalidated on every update
func WithFixedViews(views ...string) Option {
	return func(s *service) {
		s.fixedViews = views
	}
}

// WithSectionViews controls whether views derived from the touched sections
// are invalidated in addition to the fixed views
func WithSectionViews(enabled bool) Option {
	return func(s *service) {
		s.sectionViews = enabled
	}
}

// WithInvalidateTimeout bounds each invalidation dispatch
func WithInvalidateTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.invalidateTimeout = d
		}
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		logger:            slog.Default(),
		fixedViews:        DefaultViews,
		sectionViews:      true,
		invalidateTimeout: defaultInvalidateTimeout,
	}

	for _, option := range options {
		option(s)
	}

	if s.store == nil {
		return nil, fmt.Errorf("store is required")
	}

	return s, nil
}

func (s *service) Get(ctx context.Context, key string) (Document, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	doc, err := s.store.Load(ctx, key)
	if err != nil {
		s.hooks.executeOnError(ctx, "load", err)
		return nil, err
	}
	return doc, nil
}

func (s *service) Update(ctx context.Context, key string, patch Document) (Document, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if patch == nil {
		return nil, &UpdateError{Key: key, Op: "update", Err: ErrMalformedPayload}
	}

	if err := s.hooks.executeBeforeUpdate(ctx, key, patch); err != nil {
		if !errors.Is(err, ErrUpdateRejected) {
			err = &UpdateError{Key: key, Op: "validate", Err: fmt.Errorf("%w: %v", ErrUpdateRejected, err)}
		}
		s.hooks.executeOnError(ctx, "validate", err)
		return nil, err
	}

	current, err := s.store.Load(ctx, key)
	if err != nil {
		s.hooks.executeOnError(ctx, "load", err)
		return nil, &UpdateError{Key: key, Op: "load", Err: err}
	}

	merged := Merge(current, patch)
	if err := s.save(ctx, key, merged, TouchedSections(patch)); err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *service) GetSection(ctx context.Context, key, section string) (interface{}, error) {
	if section == "" {
		return nil, ErrInvalidKey
	}
	doc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	value, ok := doc[section]
	if !ok {
		return nil, ErrSectionNotFound
	}
	return value, nil
}

func (s *service) PutSection(ctx context.Context, key, section string, value interface{}) (Document, error) {
	if section == "" {
		return nil, ErrInvalidKey
	}
	return s.replaceSections(ctx, key, Document{section: value})
}

func (s *service) BatchSections(ctx context.Context, key string, sections Document) (Document, error) {
	if len(sections) == 0 {
		return nil, &UpdateError{Key: key, Op: "batch", Err: fmt.Errorf("%w: no sections provided", ErrMalformedPayload)}
	}
	for section := range sections {
		if section == "" {
			return nil, ErrInvalidKey
		}
	}
	return s.replaceSections(ctx, key, sections)
}

func (s *service) replaceSections(ctx context.Context, key string, sections Document) (Document, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if err := s.hooks.executeBeforeUpdate(ctx, key, sections); err != nil {
		if !errors.Is(err, ErrUpdateRejected) {
			err = &UpdateError{Key: key, Op: "validate", Err: fmt.Errorf("%w: %v", ErrUpdateRejected, err)}
		}
		s.hooks.executeOnError(ctx, "validate", err)
		return nil, err
	}

	current, err := s.store.Load(ctx, key)
	if err != nil {
		s.hooks.executeOnError(ctx, "load", err)
		return nil, &UpdateError{Key: key, Op: "load", Err: err}
	}

	doc := make(Document, len(current)+len(sections))
	for k, v := range current {
		doc[k] = v
	}
	for k, v := range sections {
		doc[k] = v
	}

	if err := s.save(ctx, key, doc, sections.Sections()); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *service) GetPage(ctx context.Context, key, page string) (Document, error) {
	if _, ok := PageSections[page]; !ok {
		return nil, ErrPageNotFound
	}
	var gen uint64
	if s.pageCache != nil {
		if view, ok := s.pageCache.Get(key, page); ok {
			return view, nil
		}
		// Read before loading so an invalidation racing the load wins
		gen = s.pageCache.Generation(key)
	}

	doc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	view, err := PageView(doc, page)
	if err != nil {
		return nil, err
	}
	if s.pageCache != nil {
		s.pageCache.SetIfCurrent(key, page, view, gen)
	}
	return view, nil
}

func (s *service) Seed(ctx context.Context, key string, doc Document) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	_, err := s.store.Load(ctx, key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrDocumentNotFound) {
		s.hooks.executeOnError(ctx, "seed", err)
		return false, err
	}
	if doc == nil {
		doc = Document{}
	}
	if err := s.save(ctx, key, doc, doc.Sections()); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) Wait() {
	s.wg.Wait()
}

// save persists doc and, once the write succeeded, runs the after-update
// hooks and schedules invalidation.
func (s *service) save(ctx context.Context, key string, doc Document, sections []string) error {
	if err := s.store.Save(ctx, key, doc); err != nil {
		s.hooks.executeOnError(ctx, "save", err)
		return &UpdateError{Key: key, Op: "save", Err: err}
	}

	s.hooks.executeAfterUpdate(ctx, s.logger, key, sections, doc)
	s.dispatchInvalidation(ctx, key, sections)
	return nil
}

// dispatchInvalidation delivers the event in the background. Failures are
// logged and never reach the caller of the write.
func (s *service) dispatchInvalidation(ctx context.Context, key string, sections []string) {
	if len(s.invalidators) == 0 {
		return
	}

	event := InvalidationEvent{
		ID:          uuid.New(),
		DocumentKey: key,
		Views:       s.viewsFor(sections),
		Sections:    sections,
		At:          time.Now().UTC(),
	}

	invalidators := s.invalidators
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.invalidateTimeout)
		defer cancel()

		for _, inv := range invalidators {
			err := inv.Invalidate(dctx, event)
			if err != nil {
				err = fmt.Errorf("%w: %v", ErrInvalidationFailed, err)
				s.logger.Warn("Invalidation failed",
					"event_id", event.ID.String(),
					"document_key", key,
					"views", event.Views,
					"error", err,
				)
			}
			s.hooks.executeAfterInvalidate(dctx, event, err)
		}
	}()
}

func (s *service) viewsFor(sections []string) []string {
	set := make(map[string]struct{}, len(s.fixedViews))
	for _, v := range s.fixedViews {
		set[v] = struct{}{}
	}
	if s.sectionViews {
		for _, v := range ViewsForSections(sections) {
			set[v] = struct{}{}
		}
	}

	views := make([]string, 0, len(set))
	for v := range set {
		views = append(views, v)
	}
	sort.Strings(views)
	return views
}
