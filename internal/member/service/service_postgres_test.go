package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/metalid/internal/clock"
	"github.com/smallbiznis/metalid/internal/member/domain"
	"github.com/smallbiznis/metalid/internal/member/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestCreateMapsPostgresUniqueViolation(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	dialector := postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO members`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint \"members_pkey\""})

	svc := New(Params{
		DB:    gormDB,
		Log:   zap.NewNop(),
		Clock: clock.SystemClock{},
		Repo:  repository.Provide(),
	})

	_, err = svc.Create(context.Background(), domain.CreateMemberRequest{ID: "000001", Type: domain.TypeProfile})
	assert.ErrorIs(t, err, domain.ErrDuplicateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
