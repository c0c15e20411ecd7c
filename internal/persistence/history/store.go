package history

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"

	cachekeys "cascade-agent/internal/cache"
	"cascade-agent/internal/model"
	"cascade-agent/pkg/market"
	"cascade-agent/pkg/token"
)

var _ market.HistoryStore = (*Store)(nil)

// Store keeps the price history in Postgres and the newest point of every
// instrument in Redis.
type Store struct {
	model model.PriceHistoryModel
	cache gocache.Cache
	ttl   cachekeys.TTLSet
}

// Config enumerates the store's collaborators. Cache is optional.
type Config struct {
	Model model.PriceHistoryModel
	Cache gocache.Cache
	TTL   cachekeys.TTLSet
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("history: price history model is required")
	}
	return &Store{model: cfg.Model, cache: cfg.Cache, ttl: cfg.TTL}, nil
}

// GetHistory returns up to count points, oldest first.
func (s *Store) GetHistory(ctx context.Context, instrument string, count int) ([]market.HistoricalPoint, error) {
	if count <= 0 {
		return nil, nil
	}
	rows, err := s.model.Recent(ctx, token.Canonical(instrument), count)
	if err != nil {
		return nil, err
	}
	points := make([]market.HistoricalPoint, len(rows))
	for i, row := range rows {
		points[len(rows)-1-i] = market.HistoricalPoint{Timestamp: row.Ts.UTC(), Price: row.Price}
	}
	return points, nil
}

func (s *Store) AppendHistory(ctx context.Context, ts time.Time, instrument string, price, portfolioValue float64) error {
	id := token.Canonical(instrument)
	point := market.HistoricalPoint{Timestamp: ts.UTC(), Price: price}
	if _, err := s.model.Insert(ctx, &model.PriceHistory{
		Instrument:     id,
		Ts:             point.Timestamp,
		Price:          price,
		PortfolioValue: portfolioValue,
	}); err != nil {
		return fmt.Errorf("history: append %s: %w", id, err)
	}
	s.cacheLatest(ctx, id, point)
	return nil
}

// Latest returns the newest known point per instrument, from Redis where
// possible and Postgres otherwise.
func (s *Store) Latest(ctx context.Context, instruments []string) (map[string]market.HistoricalPoint, error) {
	out := make(map[string]market.HistoricalPoint, len(instruments))
	var missing []string
	for _, inst := range instruments {
		id := token.Canonical(inst)
		if s.cache != nil {
			var point market.HistoricalPoint
			if err := s.cache.GetCtx(ctx, cachekeys.PriceLatestKey(id), &point); err == nil {
				out[id] = point
				continue
			}
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}
	rows, err := s.model.LatestFor(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		point := market.HistoricalPoint{Timestamp: row.Ts.UTC(), Price: row.Price}
		out[row.Instrument] = point
		s.cacheLatest(ctx, row.Instrument, point)
	}
	return out, nil
}

// PortfolioSince returns the recorded portfolio values at or after since,
// oldest first.
func (s *Store) PortfolioSince(ctx context.Context, since time.Time) ([]market.HistoricalPoint, error) {
	rows, err := s.model.PortfolioSince(ctx, since)
	if err != nil {
		return nil, err
	}
	points := make([]market.HistoricalPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, market.HistoricalPoint{Timestamp: row.Ts.UTC(), Price: row.PortfolioValue})
	}
	return points, nil
}

func (s *Store) cacheLatest(ctx context.Context, id string, point market.HistoricalPoint) {
	if s.cache == nil {
		return
	}
	ttl := s.ttl.Duration(cachekeys.TTLMedium)
	if ttl <= 0 {
		return
	}
	key := cachekeys.PriceLatestKey(id)
	if err := s.cache.SetWithExpireCtx(ctx, key, point, ttl); err != nil {
		logx.WithContext(ctx).Errorf("history: cache latest key=%s err=%v", key, err)
	}
}
