//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/dealdocs/engine/internal/models"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openPostgresContainer(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("dealdocs"),
		tcpostgres.WithUsername("dealdocs"),
		tcpostgres.WithPassword("dealdocs"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	// second run must be a no-op
	require.NoError(t, Migrate(db))
	return db
}

func TestPostgresDealStatusCheck(t *testing.T) {
	db := openPostgresContainer(t)
	deal := seedDeal(t, db, models.DealStatusDraft)

	err := db.Exec(`UPDATE deals SET status = 'ARCHIVED' WHERE id = ?`, deal.ID).Error
	require.Error(t, err)

	repo := NewDealRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.TransitionStatus(ctx, deal.ID, []string{models.DealStatusDraft}, models.DealStatusDocsGenerating))
	err = repo.TransitionStatus(ctx, deal.ID, []string{models.DealStatusDraft}, models.DealStatusDocsGenerating)
	require.True(t, appErr.IsCode(err, appErr.CodeConflict))
}

func TestPostgresDuplicateAttemptIsAlreadyExists(t *testing.T) {
	db := openPostgresContainer(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	doc := func() *models.DocumentInstance {
		return &models.DocumentInstance{
			DealID:              uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			TemplateID:          uuid.MustParse("22222222-2222-2222-2222-222222222222"),
			GenerationAttemptID: uuid.MustParse("33333333-3333-3333-3333-333333333333"),
			DealershipID:        uuid.New(),
			Status:              models.DocumentStatusDraft,
			S3Key:               "k",
			Name:                "Bill of Sale",
			RequiredSignatures:  models.SignersJSON(nil),
		}
	}
	require.NoError(t, repo.Create(ctx, doc()))
	err := repo.Create(ctx, doc())
	require.True(t, appErr.IsCode(err, appErr.CodeAlreadyExists))
}
