package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/loveshotsmedia/l3arn-updated/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockRepo(t *testing.T) (*AuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewAuditRepository(Wrap(db, zap.NewNop()), zap.NewNop()).(*AuditRepository)
	return repo, mock
}

func TestAuditRepository_Insert(t *testing.T) {
	t.Run("inserts a decision with tenant and metadata", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		log := models.NewAuditLog(models.AuditActionRBACGranted, models.ResourceTypeRoute).
			WithTenant("tenant-a").
			WithUser("u1").
			WithResource("GET /api/v1/audit/logs").
			WithMetadata(map[string]string{"role": "owner"}).
			WithTrace("trace-1", "req-1").
			WithClient("10.0.0.1", "curl/8.0")

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
			WithArgs(log.ID, "tenant-a", "u1", "rbac.granted", "route", "GET /api/v1/audit/logs",
				[]byte(`{"role":"owner"}`), "trace-1", "req-1", "10.0.0.1", "curl/8.0", log.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Insert(context.Background(), log))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("denied request without tenant stores nulls", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		log := models.NewAuditLog(models.AuditActionAuthDenied, models.ResourceTypeRoute).
			WithTrace("trace-2", "req-2")

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
			WithArgs(log.ID, nil, nil, "auth.denied", "route", nil,
				nil, "trace-2", "req-2", "", "", log.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Insert(context.Background(), log))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps driver errors", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
			WillReturnError(sql.ErrConnDone)

		err := repo.Insert(context.Background(), models.NewAuditLog(models.AuditActionRBACDenied, models.ResourceTypeRoute))
		require.Error(t, err)
		assert.True(t, errors.Is(err, sql.ErrConnDone))
		assert.Contains(t, err.Error(), "failed to insert audit log")
	})
}

func TestAuditRepository_ListByTenant(t *testing.T) {
	columns := []string{"id", "tenant_id", "user_id", "action", "resource_type", "resource_id",
		"metadata", "trace_id", "request_id", "ip_address", "user_agent", "created_at"}

	t.Run("returns rows newest first", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		newer := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
		older := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		id1, id2 := uuid.New(), uuid.New()

		rows := sqlmock.NewRows(columns).
			AddRow(id1.String(), "tenant-a", "u1", "rbac.granted", "route", "GET /me", []byte(`{"role":"owner"}`), "t1", "r1", "10.0.0.1", "curl", newer).
			AddRow(id2.String(), "tenant-a", nil, "rbac.denied", "route", nil, nil, "t2", "r2", "", "", older)

		mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs")).
			WithArgs("tenant-a", 50, 0).
			WillReturnRows(rows)

		logs, err := repo.ListByTenant(context.Background(), "tenant-a", 50, 0)
		require.NoError(t, err)
		require.Len(t, logs, 2)

		assert.Equal(t, id1, logs[0].ID)
		assert.Equal(t, models.AuditActionRBACGranted, logs[0].Action)
		require.NotNil(t, logs[0].UserID)
		assert.Equal(t, "u1", *logs[0].UserID)
		assert.JSONEq(t, `{"role":"owner"}`, string(logs[0].Metadata))
		assert.Equal(t, newer, logs[0].CreatedAt)

		assert.Equal(t, id2, logs[1].ID)
		assert.Nil(t, logs[1].UserID)
		assert.Nil(t, logs[1].ResourceID)
		assert.Empty(t, logs[1].Metadata)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty result is an empty slice", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs")).
			WithArgs("tenant-b", 10, 20).
			WillReturnRows(sqlmock.NewRows(columns))

		logs, err := repo.ListByTenant(context.Background(), "tenant-b", 10, 20)
		require.NoError(t, err)
		assert.NotNil(t, logs)
		assert.Empty(t, logs)
	})

	t.Run("query error", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs")).
			WillReturnError(sql.ErrConnDone)

		_, err := repo.ListByTenant(context.Background(), "tenant-a", 10, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query audit logs")
	})
}

func TestDB_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

		require.NoError(t, Wrap(sqlDB, zap.NewNop()).HealthCheck(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping fails", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectPing().WillReturnError(sql.ErrConnDone)

		err = Wrap(sqlDB, zap.NewNop()).HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database health check failed")
	})
}

func TestDB_InitAuditSchema(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Wrap(sqlDB, zap.NewNop()).InitAuditSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
