package schema

import (
	"context"
	"sync"
)

// Service caches one schema snapshot per database and hands out the prompt
// serialization. The snapshot is loaded lazily on first use and can be
// refreshed explicitly when the underlying database changes.
type Service struct {
	dbPath   string
	maxChars int
	opts     LoadOptions

	mu     sync.Mutex
	cached *Schema
}

// NewService creates a Service for the database at dbPath. maxChars bounds
// the prompt serialization; zero means unbounded.
func NewService(dbPath string, maxChars int, opts LoadOptions) *Service {
	return &Service{dbPath: dbPath, maxChars: maxChars, opts: opts}
}

// Schema returns the cached snapshot, loading it on first call.
func (s *Service) Schema(ctx context.Context) (*Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		loaded, err := Load(ctx, s.dbPath, s.opts)
		if err != nil {
			return nil, err
		}
		s.cached = loaded
	}
	return s.cached, nil
}

// Blob returns the prompt serialization of the cached snapshot.
func (s *Service) Blob(ctx context.Context) (string, error) {
	sc, err := s.Schema(ctx)
	if err != nil {
		return "", err
	}
	return SerializeForPrompt(sc, s.maxChars), nil
}

// Version returns the content hash of the cached snapshot.
func (s *Service) Version(ctx context.Context) (string, error) {
	sc, err := s.Schema(ctx)
	if err != nil {
		return "", err
	}
	return sc.Version, nil
}

// Refresh drops the cache and reloads from the database.
func (s *Service) Refresh(ctx context.Context) (*Schema, error) {
	loaded, err := Load(ctx, s.dbPath, s.opts)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cached = loaded
	s.mu.Unlock()
	return loaded, nil
}
