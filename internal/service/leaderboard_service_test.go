package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/casecamp/casecamp-api/internal/models"
	"github.com/casecamp/casecamp-api/internal/repository"
)

func setupLeaderboardService(t *testing.T, cache *redis.Client) (*gorm.DB, LeaderboardService) {
	t.Helper()

	dsn := fmt.Sprintf("file:leaderboard_svc_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.GlobalLeaderboardEntry{}, &models.WeeklyLeaderboardEntry{}))

	svc := NewLeaderboardService(repository.NewLeaderboardRepository(db), cache, time.Minute, testLogger())

	return db, svc
}

func TestLeaderboardServiceGlobalOrdersByPoints(t *testing.T) {
	db, svc := setupLeaderboardService(t, nil)

	require.NoError(t, db.Create(&models.GlobalLeaderboardEntry{StudentID: 1, TotalPoints: 40}).Error)
	require.NoError(t, db.Create(&models.GlobalLeaderboardEntry{StudentID: 2, TotalPoints: 65}).Error)
	require.NoError(t, db.Create(&models.GlobalLeaderboardEntry{StudentID: 3, TotalPoints: 20}).Error)

	response, err := svc.Global(context.Background())
	require.NoError(t, err)
	require.False(t, response.CacheHit)
	require.Len(t, response.Entries, 3)
	require.Equal(t, uint(2), response.Entries[0].StudentID)
	require.Equal(t, uint(1), response.Entries[1].StudentID)
	require.Equal(t, uint(3), response.Entries[2].StudentID)
}

func TestLeaderboardServiceGlobalUsesCache(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	cache := redis.NewClient(&redis.Options{Addr: server.Addr()})
	db, svc := setupLeaderboardService(t, cache)

	require.NoError(t, db.Create(&models.GlobalLeaderboardEntry{StudentID: 1, TotalPoints: 40}).Error)

	first, err := svc.Global(context.Background())
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	// The projection moved, but the cached view is served until TTL.
	require.NoError(t, db.Model(&models.GlobalLeaderboardEntry{}).Where("student_id = ?", 1).Update("total_points", 99).Error)

	second, err := svc.Global(context.Background())
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, 40, second.Entries[0].TotalPoints)

	server.FastForward(2 * time.Minute)

	third, err := svc.Global(context.Background())
	require.NoError(t, err)
	require.False(t, third.CacheHit)
	require.Equal(t, 99, third.Entries[0].TotalPoints)
}

func TestLeaderboardServiceWeeklyScopedByWeek(t *testing.T) {
	db, svc := setupLeaderboardService(t, nil)

	require.NoError(t, db.Create(&models.WeeklyLeaderboardEntry{WeekID: 1, StudentID: 1, TotalPoints: 20}).Error)
	require.NoError(t, db.Create(&models.WeeklyLeaderboardEntry{WeekID: 1, StudentID: 2, TotalPoints: 35}).Error)
	require.NoError(t, db.Create(&models.WeeklyLeaderboardEntry{WeekID: 2, StudentID: 1, TotalPoints: 15}).Error)

	response, err := svc.Weekly(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, uint(1), response.WeekID)
	require.Len(t, response.Entries, 2)
	require.Equal(t, uint(2), response.Entries[0].StudentID)

	other, err := svc.Weekly(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, other.Entries, 1)
	require.Equal(t, 15, other.Entries[0].TotalPoints)
}

func TestLeaderboardServiceWeeklyCacheIsPerWeek(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	cache := redis.NewClient(&redis.Options{Addr: server.Addr()})
	db, svc := setupLeaderboardService(t, cache)

	require.NoError(t, db.Create(&models.WeeklyLeaderboardEntry{WeekID: 1, StudentID: 1, TotalPoints: 20}).Error)
	require.NoError(t, db.Create(&models.WeeklyLeaderboardEntry{WeekID: 2, StudentID: 1, TotalPoints: 15}).Error)

	_, err = svc.Weekly(context.Background(), 1)
	require.NoError(t, err)

	fresh, err := svc.Weekly(context.Background(), 2)
	require.NoError(t, err)
	require.False(t, fresh.CacheHit)

	cached, err := svc.Weekly(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
}
