package storage

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
	"github.com/lcalzada-xor/connd/internal/core/services/persistence"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// BackendName is the name the adapter registers under.
const BackendName = "sqlite"

// SQLiteAdapter stores service records, users and the audit log with GORM
// on SQLite.
type SQLiteAdapter struct {
	db     *gorm.DB
	sealer *Sealer
}

// ServiceModel is the GORM model for service records.
type ServiceModel struct {
	Identifier string `gorm:"primaryKey"`
	Type       string
	Mode       string
	Security   string
	Favorite   bool `gorm:"index"`
	Order      uint `gorm:"column:priority_order"`
	Name       string
	Passphrase string // sealed when a secret key is configured
}

// Option customizes a SQLiteAdapter.
type Option func(*SQLiteAdapter) error

// WithSecretKey seals stored passphrases with a key derived from secret.
func WithSecretKey(secret string) Option {
	return func(a *SQLiteAdapter) error {
		if secret == "" {
			return nil
		}
		sealer, err := NewSealer([]byte(secret))
		if err != nil {
			return err
		}
		a.sealer = sealer
		return nil
	}
}

// NewSQLiteAdapter opens the database at path and migrates the schema.
func NewSQLiteAdapter(path string, opts ...Option) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, fmt.Errorf("tracing plugin: %w", err)
	}

	return newAdapter(db, opts...)
}

func newAdapter(db *gorm.DB, opts ...Option) (*SQLiteAdapter, error) {
	if err := db.AutoMigrate(&ServiceModel{}, &domain.User{}, &domain.AuditLog{}); err != nil {
		return nil, err
	}

	db.Exec("CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp)")
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(username)")

	a := &SQLiteAdapter{db: db}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *SQLiteAdapter) Name() string  { return BackendName }
func (a *SQLiteAdapter) Priority() int { return persistence.PriorityDefault }

// LoadService fills rec from its stored row.
func (a *SQLiteAdapter) LoadService(ctx context.Context, rec *domain.ServiceRecord) error {
	var model ServiceModel
	if err := a.db.WithContext(ctx).First(&model, "identifier = ?", rec.Identifier).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		return err
	}

	loaded, err := a.toRecord(model)
	if err != nil {
		return err
	}
	*rec = loaded
	return nil
}

// SaveService upserts rec.
func (a *SQLiteAdapter) SaveService(ctx context.Context, rec domain.ServiceRecord) error {
	model, err := a.toModel(rec)
	if err != nil {
		return err
	}
	return a.db.WithContext(ctx).Save(&model).Error
}

// ListServices returns every stored record ordered by identifier.
func (a *SQLiteAdapter) ListServices(ctx context.Context) ([]domain.ServiceRecord, error) {
	var models []ServiceModel
	if err := a.db.WithContext(ctx).Order("identifier").Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]domain.ServiceRecord, 0, len(models))
	for _, m := range models {
		rec, err := a.toRecord(m)
		if err != nil {
			log.Printf("[STORAGE] skipping %s: %v", m.Identifier, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close releases the underlying connection pool.
func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ ports.StorageBackend = (*SQLiteAdapter)(nil)
