package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/casecamp/casecamp-api/internal/dto"
	"github.com/casecamp/casecamp-api/internal/repository"
)

const leaderboardDefaultLimit = 100

// LeaderboardService serves the leaderboard projections with a short
// read cache. The projections are eventually consistent by design;
// caching only widens a window that already exists.
type LeaderboardService interface {
	Global(ctx context.Context) (dto.GlobalLeaderboardResponse, error)
	Weekly(ctx context.Context, weekID uint) (dto.WeeklyLeaderboardResponse, error)
}

type leaderboardService struct {
	repo     repository.LeaderboardRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewLeaderboardService constructs the leaderboard read service.
func NewLeaderboardService(repo repository.LeaderboardRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) LeaderboardService {
	return &leaderboardService{
		repo:     repo,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "leaderboard_service").Logger(),
		tracer:   otel.Tracer("github.com/casecamp/casecamp-api/internal/service/leaderboard"),
		now:      time.Now,
	}
}

func (s *leaderboardService) Global(ctx context.Context) (dto.GlobalLeaderboardResponse, error) {
	const cacheKey = "leaderboard:global"
	ctx, span := s.tracer.Start(ctx, "leaderboard.global")
	defer span.End()

	if cached, ok := readCached[dto.GlobalLeaderboardResponse](ctx, s.cache, cacheKey, s.logger); ok {
		cached.CacheHit = true
		span.SetAttributes(attribute.Bool("leaderboard.cache_hit", true))
		return cached, nil
	}

	entries, err := s.repo.ListGlobal(ctx, leaderboardDefaultLimit)
	if err != nil {
		span.RecordError(err)
		return dto.GlobalLeaderboardResponse{}, err
	}

	response := dto.GlobalLeaderboardResponse{
		Entries:     dto.NewGlobalLeaderboardEntries(entries),
		GeneratedAt: s.now().UTC(),
	}

	writeCached(ctx, s.cache, cacheKey, response, s.cacheTTL, s.logger)

	return response, nil
}

func (s *leaderboardService) Weekly(ctx context.Context, weekID uint) (dto.WeeklyLeaderboardResponse, error) {
	cacheKey := fmt.Sprintf("leaderboard:weekly:%d", weekID)
	ctx, span := s.tracer.Start(ctx, "leaderboard.weekly")
	span.SetAttributes(attribute.Int64("week.id", int64(weekID)))
	defer span.End()

	if cached, ok := readCached[dto.WeeklyLeaderboardResponse](ctx, s.cache, cacheKey, s.logger); ok {
		cached.CacheHit = true
		span.SetAttributes(attribute.Bool("leaderboard.cache_hit", true))
		return cached, nil
	}

	entries, err := s.repo.ListWeekly(ctx, weekID, leaderboardDefaultLimit)
	if err != nil {
		span.RecordError(err)
		return dto.WeeklyLeaderboardResponse{}, err
	}

	response := dto.WeeklyLeaderboardResponse{
		WeekID:      weekID,
		Entries:     dto.NewWeeklyLeaderboardEntries(entries),
		GeneratedAt: s.now().UTC(),
	}

	writeCached(ctx, s.cache, cacheKey, response, s.cacheTTL, s.logger)

	return response, nil
}

func readCached[T any](ctx context.Context, cache *redis.Client, key string, logger zerolog.Logger) (T, bool) {
	var zero T
	if cache == nil {
		return zero, false
	}

	cached, err := cache.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn().Err(err).Str("key", key).Msg("failed to read cache")
		}
		return zero, false
	}

	var value T
	if err := json.Unmarshal([]byte(cached), &value); err != nil {
		return zero, false
	}

	return value, true
}

func writeCached[T any](ctx context.Context, cache *redis.Client, key string, value T, ttl time.Duration, logger zerolog.Logger) {
	if cache == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}

	if err := cache.Set(ctx, key, payload, ttl).Err(); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("failed to store cache")
	}
}
