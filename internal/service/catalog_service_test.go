package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/casecamp/casecamp-api/internal/dto"
	"github.com/casecamp/casecamp-api/internal/models"
	"github.com/casecamp/casecamp-api/internal/repository"
)

func setupCatalogService(t *testing.T) (*gorm.DB, CatalogService, *stubPublisher) {
	t.Helper()

	dsn := fmt.Sprintf("file:catalog_svc_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Week{}, &models.Case{}))

	publisher := &stubPublisher{}
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewCatalogService(
		repository.NewWeekRepository(db),
		repository.NewCaseRepository(db, 10),
		publisher,
		validate,
		testLogger(),
	)

	return db, svc, publisher
}

func TestCatalogServiceCreateWeek(t *testing.T) {
	_, svc, _ := setupCatalogService(t)

	start := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
	week, err := svc.CreateWeek(context.Background(), dto.WeekCreateRequest{
		Title:     "Week 1",
		StartDate: start,
		EndDate:   start.Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, "Week 1", week.Title)
	require.False(t, week.IsActive)

	_, err = svc.CreateWeek(context.Background(), dto.WeekCreateRequest{
		Title:     "Backwards",
		StartDate: start,
		EndDate:   start.Add(-time.Hour),
	})
	require.ErrorIs(t, err, ErrWeekDatesInvalid)
}

func TestCatalogServiceActivateWeekPublishesOnce(t *testing.T) {
	_, svc, publisher := setupCatalogService(t)

	start := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
	week, err := svc.CreateWeek(context.Background(), dto.WeekCreateRequest{
		Title:     "Week 1",
		StartDate: start,
		EndDate:   start.Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)

	activated, err := svc.ActivateWeek(context.Background(), week.ID)
	require.NoError(t, err)
	require.True(t, activated.IsActive)
	require.Len(t, publisher.weeks, 1)
	require.False(t, publisher.weeks[0].Before.IsActive)
	require.True(t, publisher.weeks[0].After.IsActive)

	// Activating an active week is a no-op with no second event.
	again, err := svc.ActivateWeek(context.Background(), week.ID)
	require.NoError(t, err)
	require.True(t, again.IsActive)
	require.Len(t, publisher.weeks, 1)

	_, err = svc.ActivateWeek(context.Background(), 999)
	require.ErrorIs(t, err, ErrWeekNotFound)
}

func TestCatalogServiceCreateCase(t *testing.T) {
	_, svc, _ := setupCatalogService(t)

	start := time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)
	week, err := svc.CreateWeek(context.Background(), dto.WeekCreateRequest{
		Title:     "Week 1",
		StartDate: start,
		EndDate:   start.Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)

	created, err := svc.CreateCase(context.Background(), dto.CaseCreateRequest{
		WeekID:     week.ID,
		Title:      "Molar restoration",
		Speciality: "Endodontics",
		Level:      "advanced",
	})
	require.NoError(t, err)
	require.Equal(t, week.ID, created.WeekID)

	_, err = svc.CreateCase(context.Background(), dto.CaseCreateRequest{
		WeekID:     999,
		Title:      "Orphan",
		Speciality: "Endodontics",
	})
	require.ErrorIs(t, err, ErrWeekNotFound)

	cases, err := svc.ListCases(context.Background(), &week.ID)
	require.NoError(t, err)
	require.Len(t, cases, 1)
}
