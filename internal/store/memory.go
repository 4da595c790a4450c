package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-data-aggregation/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
// It only serves a single process; collector and API must share it.
type MemoryStore struct {
	mu sync.RWMutex

	// ordered by Timestamp ascending
	series []weather.Measurement
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Upsert inserts m, or replaces the stored measurement with the same identity key.
func (s *MemoryStore) Upsert(_ context.Context, m weather.Measurement) error {
	m.Timestamp = m.Timestamp.UTC()
	key := m.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.searchLocked(m.Timestamp)
	for ; i < len(s.series) && s.series[i].Timestamp.Equal(m.Timestamp); i++ {
		if s.series[i].Key() == key {
			s.series[i] = m
			return nil
		}
	}
	s.series = slices.Insert(s.series, i, m)
	return nil
}

// Latest returns the most recent measurement.
func (s *MemoryStore) Latest(_ context.Context) (weather.Measurement, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.series) == 0 {
		return weather.Measurement{}, false, nil
	}
	return s.series[len(s.series)-1], true, nil
}

// WindowSince returns a copy of all measurements at or after since.
func (s *MemoryStore) WindowSince(_ context.Context, since time.Time) ([]weather.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.searchLocked(since)
	return slices.Clone(s.series[i:]), nil
}

// EnsureIndexes is a no-op; the series is kept sorted on every write.
func (s *MemoryStore) EnsureIndexes(context.Context) error { return nil }

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// searchLocked returns the index of the first measurement with Timestamp >= ts.
func (s *MemoryStore) searchLocked(ts time.Time) int {
	return sort.Search(len(s.series), func(i int) bool {
		return !s.series[i].Timestamp.Before(ts)
	})
}
