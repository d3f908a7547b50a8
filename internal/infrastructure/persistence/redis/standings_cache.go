package redis

import (
	"context"
	"errors"

	"github.com/earth-innovators/merit-engine/internal/application/query"
	"github.com/earth-innovators/merit-engine/internal/domain/ranking"
	"github.com/earth-innovators/merit-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// StandingsCache is a caching StandingsSource. On a miss it delegates to
// the wrapped source and stores the raw metrics; the ranked table is
// recomputed from them on every read so the ranking logic has a single
// home. Eligibility reads through this cache may lag the ledger by up to
// the TTL.
type StandingsCache struct {
	cache *Cache
	inner query.StandingsSource
}

// cachedMetric is the wire form of one school's standings input.
type cachedMetric struct {
	SchoolID string `json:"school_id"`
	Points   int64  `json:"points"`
}

// NewStandingsCache creates a StandingsCache in front of a source.
func NewStandingsCache(cache *Cache, inner query.StandingsSource) *StandingsCache {
	return &StandingsCache{cache: cache, inner: inner}
}

// SchoolStandings implements query.StandingsSource.
func (s *StandingsCache) SchoolStandings(ctx context.Context) (*ranking.Standings, error) {
	var cached []cachedMetric
	err := s.cache.Get(ctx, StandingsKey(), &cached)
	if err == nil && len(cached) > 0 {
		metrics := make([]ranking.SchoolMetric, len(cached))
		for i, m := range cached {
			metrics[i] = ranking.SchoolMetric{
				SchoolID: shared.SchoolID(m.SchoolID),
				Points:   shared.Points(m.Points),
			}
		}
		return ranking.Compute(metrics)
	}
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		// Degrade to the inner source on cache trouble rather than
		// failing the eligibility read.
		return s.inner.SchoolStandings(ctx)
	}

	standings, err := s.inner.SchoolStandings(ctx)
	if err != nil {
		return nil, err
	}

	toCache := make([]cachedMetric, len(standings.Entries))
	for i, e := range standings.Entries {
		toCache[i] = cachedMetric{
			SchoolID: e.SchoolID.String(),
			Points:   e.Points.Int64(),
		}
	}
	// Best effort; a failed cache write only costs the next read a rebuild.
	_ = s.cache.Set(ctx, StandingsKey(), toCache, TTLStandingsCache)

	return standings, nil
}

// Invalidate drops the cached standings. Called after ledger writes that
// should be visible to the next eligibility read immediately.
func (s *StandingsCache) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, StandingsKey())
}
