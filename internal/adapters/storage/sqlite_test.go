package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupInMemoryDB creates a new SQLiteAdapter used for testing
func setupInMemoryDB(t *testing.T, opts ...Option) *SQLiteAdapter {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	adapter, err := newAdapter(db, opts...)
	require.NoError(t, err)
	return adapter
}

func sampleRecord() domain.ServiceRecord {
	return domain.ServiceRecord{
		Identifier: "wifi_00:11:22:33:44:55_home_managed_psk",
		Type:       domain.ServiceTypeWiFi,
		Mode:       domain.ModeManaged,
		Security:   domain.SecurityWPA2,
		Favorite:   true,
		Order:      3,
		Name:       "home",
		Passphrase: "hunter22",
	}
}

func TestSaveAndLoadService(t *testing.T) {
	adapter := setupInMemoryDB(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, adapter.SaveService(ctx, rec))

	loaded := domain.ServiceRecord{Identifier: rec.Identifier}
	require.NoError(t, adapter.LoadService(ctx, &loaded))
	assert.Equal(t, rec, loaded)
}

func TestSaveService_Update(t *testing.T) {
	adapter := setupInMemoryDB(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, adapter.SaveService(ctx, rec))

	rec.Favorite = false
	rec.Name = "renamed"
	require.NoError(t, adapter.SaveService(ctx, rec))

	loaded := domain.ServiceRecord{Identifier: rec.Identifier}
	require.NoError(t, adapter.LoadService(ctx, &loaded))
	assert.False(t, loaded.Favorite)
	assert.Equal(t, "renamed", loaded.Name)

	all, err := adapter.ListServices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLoadService_NotFound(t *testing.T) {
	adapter := setupInMemoryDB(t)

	rec := domain.ServiceRecord{Identifier: "wifi_missing"}
	err := adapter.LoadService(context.Background(), &rec)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBackendIdentity(t *testing.T) {
	adapter := setupInMemoryDB(t)
	assert.Equal(t, "sqlite", adapter.Name())
	assert.Equal(t, 0, adapter.Priority())
}

func TestSealedPassphrase(t *testing.T) {
	adapter := setupInMemoryDB(t, WithSecretKey("correct horse battery staple"))
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, adapter.SaveService(ctx, rec))

	var raw ServiceModel
	require.NoError(t, adapter.db.First(&raw, "identifier = ?", rec.Identifier).Error)
	assert.True(t, IsSealed(raw.Passphrase))
	assert.NotContains(t, raw.Passphrase, "hunter22")

	loaded := domain.ServiceRecord{Identifier: rec.Identifier}
	require.NoError(t, adapter.LoadService(ctx, &loaded))
	assert.Equal(t, "hunter22", loaded.Passphrase)

	// Without the key the sealed value cannot be read back.
	plain := &SQLiteAdapter{db: adapter.db}
	err := plain.LoadService(ctx, &loaded)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestSealer(t *testing.T) {
	s, err := NewSealer([]byte("k1"))
	require.NoError(t, err)

	a, err := s.Seal("secret")
	require.NoError(t, err)
	b, err := s.Seal("secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "nonces differ")

	opened, err := s.Open(a)
	require.NoError(t, err)
	assert.Equal(t, "secret", opened)

	other, err := NewSealer([]byte("k2"))
	require.NoError(t, err)
	_, err = other.Open(a)
	assert.Error(t, err)

	_, err = s.Open("plain")
	assert.ErrorIs(t, err, ErrMalformedSeal)

	_, err = NewSealer(nil)
	assert.Error(t, err)
}

func TestUserRepository(t *testing.T) {
	adapter := setupInMemoryDB(t)
	ctx := context.Background()

	user := domain.User{ID: "u-1", Username: "admin", PasswordHash: "hash", Role: domain.RoleAdmin, CreatedAt: time.Now().UTC()}
	require.NoError(t, adapter.Save(ctx, user))

	byName, err := adapter.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "u-1", byName.ID)
	assert.Equal(t, "hash", byName.PasswordHash)

	byID, err := adapter.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, byID.Role)

	_, err = adapter.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	users, err := adapter.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestAuditRepository(t *testing.T) {
	adapter := setupInMemoryDB(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, action := range []domain.AuditAction{domain.ActionConnect, domain.ActionDisconnect, domain.ActionRemove} {
		require.NoError(t, adapter.SaveAuditLog(ctx, domain.AuditLog{
			UserID:    "u-1",
			Username:  "admin",
			Action:    action,
			Target:    "wifi_x",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	logs, err := adapter.ListAuditLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.ActionRemove, logs[0].Action)
	assert.Equal(t, domain.ActionDisconnect, logs[1].Action)
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connd.db")
	ctx := context.Background()

	store, err := NewSQLiteAdapter(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveService(ctx, sampleRecord()))
	require.NoError(t, store.Close())

	store2, err := NewSQLiteAdapter(path)
	require.NoError(t, err)
	defer store2.Close()

	loaded := domain.ServiceRecord{Identifier: sampleRecord().Identifier}
	require.NoError(t, store2.LoadService(ctx, &loaded))
	assert.Equal(t, "home", loaded.Name)
}
