package postgres

import (
	"context"

	"github.com/loveshotsmedia/l3arn-updated/config"
	"github.com/loveshotsmedia/l3arn-updated/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory owns the audit database pool and the repositories built on it
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory connects to the configured database
func NewRepositoryFactory(cfg config.DatabaseConfig, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{db: db, logger: logger}, nil
}

// InitAuditSchema initializes the audit schema
func (f *RepositoryFactory) InitAuditSchema(ctx context.Context) error {
	return f.db.InitAuditSchema(ctx)
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		AuditLogs: NewAuditRepository(f.db, f.logger),
	}
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
