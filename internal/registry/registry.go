package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides representation management with caching and thread
// safety. It wraps a Repository and adds an in-memory cache for fast
// lookups during reconciliation cycles.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Representation // Cached representations by ID
	cacheMu sync.RWMutex               // Protects cache
	logger  Logger
}

// NewRegistry creates a new representation registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Representation),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all representations from the repository into the
// cache. This should be called on application startup, before the first
// reconciliation cycle, so rediscovery adopts instead of duplicating.
func (r *Registry) RefreshCache(ctx context.Context) error {
	reps, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading representations: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with deep copies
	r.cache = make(map[string]*Representation, len(reps))
	for i := range reps {
		rep := reps[i]
		r.cache[rep.ID] = rep.DeepCopy()
	}

	r.logger.Info("representation cache refreshed", "count", len(reps))
	return nil
}

// Lookup reports whether a representation already exists for the given
// resource id. This is the adoption check used on rediscovery: any
// existing record under the id wins, even when its domain or platform
// differs from what the caller expected, so discovery never races the
// unique constraint trying to register a duplicate.
func (r *Registry) Lookup(ctx context.Context, domain, platform, id string) (bool, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		r.noteAdoptionMismatch(cached, domain, platform)
		return true, nil
	}

	rep, err := r.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	// Cache for future lookups (store a deep copy)
	r.cacheMu.Lock()
	r.cache[id] = rep.DeepCopy()
	r.cacheMu.Unlock()

	r.noteAdoptionMismatch(rep, domain, platform)
	return true, nil
}

func (r *Registry) noteAdoptionMismatch(rep *Representation, domain, platform string) {
	if rep.Domain != domain || rep.Platform != platform {
		r.logger.Warn("adopting representation registered under a different domain or platform",
			"id", rep.ID,
			"domain", rep.Domain,
			"platform", rep.Platform,
			"expected_domain", domain,
			"expected_platform", platform,
		)
	}
}

// Get retrieves a representation by id.
// Returns ErrNotFound if it does not exist.
// The returned representation is a deep copy; callers can safely modify it.
func (r *Registry) Get(ctx context.Context, id string) (*Representation, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	rep, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = rep.DeepCopy()
	r.cacheMu.Unlock()

	return rep, nil
}

// List retrieves all representations.
// The returned representations are deep copies; callers can safely modify them.
func (r *Registry) List(ctx context.Context) ([]Representation, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		reps := make([]Representation, 0, len(r.cache))
		for _, rep := range r.cache {
			reps = append(reps, *rep.DeepCopy())
		}
		return reps, nil
	}

	return r.repo.List(ctx)
}

// ListByType retrieves all representations of one resource type.
// The returned representations are deep copies; callers can safely modify them.
func (r *Registry) ListByType(ctx context.Context, typeTag string) ([]Representation, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		var reps []Representation
		for _, rep := range r.cache {
			if rep.Type == typeTag {
				reps = append(reps, *rep.DeepCopy())
			}
		}
		return reps, nil
	}

	return r.repo.ListByType(ctx, typeTag)
}

// Register validates and persists a new representation.
func (r *Registry) Register(ctx context.Context, rep *Representation) error {
	if rep.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if rep.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalid)
	}
	if rep.Domain == "" {
		return fmt.Errorf("%w: domain is required", ErrInvalid)
	}
	if rep.Platform == "" {
		rep.Platform = Platform
	}

	if err := r.repo.Create(ctx, rep); err != nil {
		return err
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[rep.ID] = rep.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("representation registered", "id", rep.ID, "type", rep.Type, "name", rep.Name)
	return nil
}

// Deregister removes a representation.
func (r *Registry) Deregister(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("representation deregistered", "id", id)
	return nil
}

// SetState updates the state map of a representation.
// This is optimised for frequent updates from reconciliation cycles.
func (r *Registry) SetState(ctx context.Context, id string, state map[string]any) error {
	if err := r.repo.UpdateState(ctx, id, state); err != nil {
		return err
	}

	// Update cache using deep copy to prevent race conditions
	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.State = deepCopyMap(state)
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("representation state updated", "id", id)
	return nil
}

// Count returns the number of cached representations.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	Total    int
	ByType   map[string]int
	ByDomain map[string]int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		Total:    len(r.cache),
		ByType:   make(map[string]int),
		ByDomain: make(map[string]int),
	}

	for _, rep := range r.cache {
		stats.ByType[rep.Type]++
		stats.ByDomain[rep.Domain]++
	}

	return stats
}
