package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicdesk/slot-scheduler/internal/schedule"
)

const cacheKey = "clinic:settings"

var ErrHeightClamp = errors.New("invalid height clamp")

// Service serves the clinic settings with a Redis read-through cache.
// An update invalidates the cache, so refresh semantics are explicit:
// readers see stale settings for at most the cache TTL after an update
// loses a race, and typically see the new value immediately.
type Service struct {
	store  Store
	cache  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewService(store Store, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the current settings, falling back to Defaults when no row
// has ever been saved. Cache failures degrade to a store read.
func (s *Service) Get(ctx context.Context) (ClinicSettings, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var cached ClinicSettings
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
			s.logger.Warn("discarding malformed cached settings")
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("settings cache read failed", zap.Error(err))
		}
	}

	stored, err := s.store.Get(ctx)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return Defaults(), nil
		}
		return ClinicSettings{}, fmt.Errorf("load settings: %w", err)
	}

	s.fillCache(ctx, *stored)
	return *stored, nil
}

// Update validates and persists new settings, then drops the cached copy.
func (s *Service) Update(ctx context.Context, next ClinicSettings) error {
	if _, err := next.Grid(); err != nil {
		return err
	}
	if next.MinHeightPercent < 0 || next.MaxHeightPercent < next.MinHeightPercent {
		return fmt.Errorf("%w: [%v,%v]", ErrHeightClamp, next.MinHeightPercent, next.MaxHeightPercent)
	}

	if err := s.store.Put(ctx, next); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKey).Err(); err != nil {
			s.logger.Warn("settings cache invalidation failed", zap.Error(err))
		}
	}

	return nil
}

// Grid builds the scheduling grid from the current settings.
func (s *Service) Grid(ctx context.Context) (schedule.TimeGrid, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return schedule.TimeGrid{}, err
	}
	return current.Grid()
}

func (s *Service) fillCache(ctx context.Context, v ClinicSettings) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("settings cache write failed", zap.Error(err))
	}
}
