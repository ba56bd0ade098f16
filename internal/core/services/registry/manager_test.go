package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports/portstest"
	"github.com/lcalzada-xor/connd/internal/core/services/persistence"
	"github.com/lcalzada-xor/connd/internal/core/services/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Log(ctx context.Context, action domain.AuditAction, target, details string) error {
	args := m.Called(ctx, action, target, details)
	return args.Error(0)
}

func (m *MockAuditService) GetLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.AuditLog), args.Error(1)
}

type managerFixture struct {
	reg   *Registry
	mgr   *Manager
	mem   *persistence.MemoryBackend
	audit *MockAuditService
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	reg, _, mem := newTestRegistry()

	modules := security.NewModuleRegistry()
	modules.Register(security.NewRoleModule(security.RolePriority))

	audit := new(MockAuditService)
	audit.On("Log", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	return &managerFixture{
		reg:   reg,
		mgr:   NewManager(reg, modules, audit),
		mem:   mem,
		audit: audit,
	}
}

func as(role domain.Role) context.Context {
	return domain.WithCaller(context.Background(), &domain.User{ID: string(role), Username: string(role), Role: role})
}

func TestManager_Resolve(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.mgr.GetProperties(as(domain.RoleAdmin), "")
	assert.ErrorIs(t, err, domain.ErrInvalidArguments)

	_, err = f.mgr.GetProperties(as(domain.RoleAdmin), "/profile/default/wifi_nope_nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestManager_GetPropertiesSecretGating(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	n := portstest.NewNetwork("aa", "home", "home", 60)
	require.NoError(t, n.SetString(domain.NetworkKeyPassphrase, "hunter22"))
	require.NoError(t, n.SetString(domain.NetworkKeySecurity, "wpa2"))
	require.NoError(t, n.SetString(domain.NetworkKeyMode, "managed"))
	s, _, err := f.reg.CreateFromNetwork(ctx, n)
	require.NoError(t, err)

	props, err := f.mgr.GetProperties(as(domain.RoleViewer), s.Path())
	require.NoError(t, err)
	assert.NotContains(t, props, domain.PropPassphrase)
	assert.Equal(t, "wifi", props[domain.PropType])
	assert.Equal(t, "wpa2", props[domain.PropSecurity])
	assert.Equal(t, "managed", props[domain.PropMode])
	assert.Equal(t, uint8(60), props[domain.PropStrength])
	assert.Equal(t, false, props[domain.PropFavorite])
	assert.Equal(t, "home", props[domain.PropName])
	assert.NotContains(t, props, domain.PropState, "unknown state is omitted")

	props, err = f.mgr.GetProperties(as(domain.RoleAdmin), s.Path())
	require.NoError(t, err)
	assert.Equal(t, "hunter22", props[domain.PropPassphrase])
}

func TestManager_SetProperty(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	n := portstest.NewNetwork("aa", "home", "home", 60)
	s, _, err := f.reg.CreateFromNetwork(ctx, n)
	require.NoError(t, err)
	path := s.Path()

	require.NoError(t, f.mgr.SetProperty(as(domain.RoleAdmin), path, domain.PropPassphrase, "correct horse"))
	f.audit.AssertCalled(t, "Log", mock.Anything, domain.ActionPassphraseSet, s.Identifier(), "")

	assertPassphrase := func(t *testing.T, want string) {
		t.Helper()
		props, err := f.mgr.GetProperties(as(domain.RoleAdmin), path)
		require.NoError(t, err)
		assert.Equal(t, want, props[domain.PropPassphrase])
		assert.Equal(t, want, n.String(domain.NetworkKeyPassphrase))

		rec := domain.ServiceRecord{Identifier: s.Identifier()}
		require.NoError(t, f.mem.LoadService(ctx, &rec))
		assert.Equal(t, want, rec.Passphrase)
	}
	assertPassphrase(t, "correct horse")

	tests := []struct {
		name    string
		ctx     context.Context
		prop    string
		value   any
		wantErr error
	}{
		{"anonymous", context.Background(), domain.PropPassphrase, "x", domain.ErrPermissionDenied},
		{"viewer lacks modify", as(domain.RoleViewer), domain.PropPassphrase, "x", domain.ErrPermissionDenied},
		{"operator lacks secret", as(domain.RoleOperator), domain.PropPassphrase, "x", domain.ErrPermissionDenied},
		{"read-only property", as(domain.RoleAdmin), domain.PropName, "x", domain.ErrInvalidArguments},
		{"empty name", as(domain.RoleAdmin), "", "x", domain.ErrInvalidArguments},
		{"wrong value type", as(domain.RoleAdmin), domain.PropPassphrase, 42, domain.ErrInvalidArguments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.mgr.SetProperty(tt.ctx, path, tt.prop, tt.value)
			assert.ErrorIs(t, err, tt.wantErr)
			assertPassphrase(t, "correct horse")
		})
	}

	require.NoError(t, f.mgr.SetProperty(as(domain.RoleAdmin), path, domain.PropPassphrase, "battery staple"))
	assertPassphrase(t, "battery staple")
}

func TestManager_ConnectNetwork(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	rec := &changeRecorder{}
	f.reg.AddObserver(rec)

	n := portstest.NewNetwork("aa", "home", "home", 60)
	n.ConnectErr = domain.ErrInProgress
	s, _, err := f.reg.CreateFromNetwork(ctx, n)
	require.NoError(t, err)

	require.NoError(t, f.mgr.Connect(as(domain.RoleViewer), s.Path()))
	assert.Equal(t, domain.StateAssociation, s.State())

	// A second request while associating is a no-op.
	require.NoError(t, f.mgr.Connect(ctx, s.Path()))
	assert.Equal(t, int32(1), n.Connects.Load())

	require.NoError(t, f.reg.IndicateConfiguration(ctx, s))
	require.NoError(t, f.reg.Ready(ctx, s))
	assert.Equal(t, []any{"association", "configuration", "ready"}, rec.states())

	require.NoError(t, f.mgr.Disconnect(ctx, s.Path()))
	assert.Equal(t, domain.StateDisconnect, s.State())
	assert.Equal(t, int32(1), n.Disconnects.Load())
}

func TestManager_ConnectNetworkFailure(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	n := portstest.NewNetwork("aa", "home", "home", 60)
	n.ConnectErr = errors.New("radio off")
	s, _, err := f.reg.CreateFromNetwork(ctx, n)
	require.NoError(t, err)

	assert.ErrorIs(t, f.mgr.Connect(ctx, s.Path()), domain.ErrOperationFailed)
	assert.Equal(t, domain.StateUnknown, s.State())
}

func TestManager_ConnectDevice(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	dev := portstest.NewDevice("eth0")
	s, _, err := f.reg.CreateFromDevice(ctx, dev)
	require.NoError(t, err)

	assert.ErrorIs(t, f.mgr.Connect(ctx, s.Path()), domain.ErrNoCarrier)
	assert.ErrorIs(t, f.mgr.Disconnect(ctx, s.Path()), domain.ErrNoCarrier)
	assert.Zero(t, dev.Connects.Load())

	require.NoError(t, f.reg.SetCarrier(ctx, s, true))

	require.NoError(t, f.mgr.Connect(ctx, s.Path()))
	assert.Equal(t, domain.StateReady, s.State())
	assert.Equal(t, int32(1), dev.Connects.Load())

	require.NoError(t, f.mgr.Disconnect(ctx, s.Path()))
	assert.Equal(t, domain.StateIdle, s.State())
	assert.Equal(t, int32(1), dev.Disconnects.Load())
}

func TestManager_Remove(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	eth, _, err := f.reg.CreateFromDevice(ctx, portstest.NewDevice("eth0"))
	require.NoError(t, err)
	assert.ErrorIs(t, f.mgr.Remove(ctx, eth.Path()), domain.ErrNotSupported)

	n := portstest.NewNetwork("aa", "home", "home", 60)
	s, _, err := f.reg.CreateFromNetwork(ctx, n)
	require.NoError(t, err)
	require.NoError(t, f.reg.SetFavorite(ctx, s, true))

	require.NoError(t, f.mgr.Remove(ctx, s.Path()))
	assert.False(t, s.Info().Favorite)
	assert.Equal(t, domain.StateDisconnect, s.State())
	assert.Equal(t, int32(1), n.Disconnects.Load())

	// Still registered: removal does not release the service.
	assert.Same(t, s, f.reg.LookupPath(s.Path()))

	rec := domain.ServiceRecord{Identifier: s.Identifier()}
	require.NoError(t, f.mem.LoadService(ctx, &rec))
	assert.False(t, rec.Favorite)

	// The latch is open again after removal.
	assert.NoError(t, f.reg.SetFavorite(ctx, s, true))
}

func TestManager_Move(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	s, _, err := f.reg.CreateFromNetwork(ctx, portstest.NewNetwork("aa", "home", "home", 60))
	require.NoError(t, err)

	assert.ErrorIs(t, f.mgr.MoveBefore(ctx, s.Path(), "/x"), domain.ErrNotSupported)
	assert.ErrorIs(t, f.mgr.MoveAfter(ctx, s.Path(), "/x"), domain.ErrNotSupported)

	require.NoError(t, f.reg.SetFavorite(ctx, s, true))
	assert.ErrorIs(t, f.mgr.MoveBefore(ctx, s.Path(), "/x"), domain.ErrNotImplemented)
	assert.ErrorIs(t, f.mgr.MoveAfter(ctx, s.Path(), "/x"), domain.ErrNotImplemented)
}

func TestManager_ListServices(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	a, _, err := f.reg.CreateFromNetwork(ctx, portstest.NewNetwork("aa", "g", "a", 20))
	require.NoError(t, err)
	b, _, err := f.reg.CreateFromNetwork(ctx, portstest.NewNetwork("bb", "g", "b", 90))
	require.NoError(t, err)

	assert.Equal(t, []string{b.Path(), a.Path()}, f.mgr.ListServices(ctx))
}
