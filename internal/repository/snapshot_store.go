package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ORBScanner/internal/domain/models"
	domrepo "ORBScanner/internal/domain/repository"
	"ORBScanner/pkg/cache"
)

var (
	keyLatestORB   = cache.Key("scan", "orb", "latest")
	keyLatestLotto = cache.Key("scan", "lotto", "latest")
)

// CacheSnapshotStore keeps the latest scan results in a cache.Service so
// several API replicas can share one scanner through Redis.
type CacheSnapshotStore struct {
	c   cache.Service
	ttl time.Duration
}

var _ domrepo.SnapshotStore = (*CacheSnapshotStore)(nil)

// NewCacheSnapshotStore uses ttl for every write; zero keeps entries until overwritten.
func NewCacheSnapshotStore(c cache.Service, ttl time.Duration) *CacheSnapshotStore {
	return &CacheSnapshotStore{c: c, ttl: ttl}
}

func (s *CacheSnapshotStore) SaveORB(ctx context.Context, r *models.ORBScanResult) error {
	if err := s.c.Set(ctx, keyLatestORB, r, s.ttl); err != nil {
		return fmt.Errorf("save orb snapshot: %w", err)
	}
	return nil
}

func (s *CacheSnapshotStore) LatestORB(ctx context.Context) (*models.ORBScanResult, error) {
	var out models.ORBScanResult
	if err := s.load(ctx, keyLatestORB, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CacheSnapshotStore) SaveIndexLotto(ctx context.Context, r *models.IndexLottoResult) error {
	if err := s.c.Set(ctx, keyLatestLotto, r, s.ttl); err != nil {
		return fmt.Errorf("save index-lotto snapshot: %w", err)
	}
	return nil
}

func (s *CacheSnapshotStore) LatestIndexLotto(ctx context.Context) (*models.IndexLottoResult, error) {
	var out models.IndexLottoResult
	if err := s.load(ctx, keyLatestLotto, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CacheSnapshotStore) load(ctx context.Context, key string, dest interface{}) error {
	err := s.c.Get(ctx, key, dest)
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.ErrSnapshotNotReady
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	return nil
}
