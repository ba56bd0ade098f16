package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports/portstest"
	"github.com/lcalzada-xor/connd/internal/core/services/persistence"
	"github.com/lcalzada-xor/connd/internal/core/services/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeRecorder struct {
	mu      sync.Mutex
	changes []domain.PropertyChange
	delay   time.Duration // simulates a slow observer
}

func (r *changeRecorder) OnPropertyChanged(ctx context.Context, change domain.PropertyChange) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *changeRecorder) states() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, c := range r.changes {
		if c.Name == domain.PropState {
			out = append(out, c.Value)
		}
	}
	return out
}

func newTestRegistry() (*Registry, *profile.Manager, *persistence.MemoryBackend) {
	prof := profile.NewManager("")
	mem := persistence.NewMemoryBackend("memory", persistence.PriorityDefault)
	store := persistence.NewRegistry()
	store.Register(mem)
	return NewRegistry(store, prof), prof, mem
}

func TestRegistry_GetOrCreateIsUnique(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	a, err := reg.GetOrCreate(ctx, "wifi_a_b")
	require.NoError(t, err)
	again, err := reg.GetOrCreate(ctx, "wifi_a_b")
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.Equal(t, 2, a.Refcount())
	assert.Equal(t, 1, reg.Len())
	assert.Same(t, a, reg.Lookup("wifi_a_b"))

	_, err = reg.GetOrCreate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArguments)
}

func TestRegistry_UnrefReleasesAtZero(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	n := portstest.NewNetwork("aa", "home", "home", 50)
	s, created, err := reg.CreateFromNetwork(ctx, n)
	require.NoError(t, err)
	require.True(t, created)
	path := s.Path()

	reg.Ref(s)
	reg.Unref(ctx, s)
	assert.Equal(t, 1, reg.Len())

	reg.Unref(ctx, s)
	assert.Equal(t, 0, reg.Len())
	assert.Nil(t, reg.Lookup(s.Identifier()))
	assert.Nil(t, reg.LookupPath(path))
	assert.Empty(t, reg.List())
	assert.Equal(t, int32(1), n.Refs.Load(), "bound network released")
}

func TestRegistry_HydratesFromStore(t *testing.T) {
	reg, _, mem := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, mem.SaveService(ctx, domain.ServiceRecord{
		Identifier: "wifi_aa_home",
		Type:       domain.ServiceTypeWiFi,
		Favorite:   true,
		Order:      2,
		Name:       "stored",
		Passphrase: "hunter22",
	}))

	s, err := reg.GetOrCreate(ctx, "wifi_aa_home")
	require.NoError(t, err)

	info := s.Info()
	assert.Equal(t, domain.ServiceTypeWiFi, info.Type)
	assert.True(t, info.Favorite)
	assert.Equal(t, uint(2), info.Order)
	assert.Equal(t, "stored", info.Name)
	assert.Equal(t, domain.StateUnknown, info.State)
}

func TestRegistry_SelectionOrder(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	weak, _, err := reg.CreateFromNetwork(ctx, portstest.NewNetwork("01", "g", "weak", 10))
	require.NoError(t, err)
	strong, _, err := reg.CreateFromNetwork(ctx, portstest.NewNetwork("02", "g", "strong", 80))
	require.NoError(t, err)
	mid, _, err := reg.CreateFromNetwork(ctx, portstest.NewNetwork("03", "g", "mid", 40))
	require.NoError(t, err)

	assert.Equal(t, []string{strong.Path(), mid.Path(), weak.Path()}, reg.List())

	// Favorites beat stronger signals.
	require.NoError(t, reg.SetFavorite(ctx, weak, true))
	assert.Equal(t, []string{weak.Path(), strong.Path(), mid.Path()}, reg.List())

	// The order hint beats favorites.
	require.NoError(t, reg.SetOrder(ctx, mid, 1))
	assert.Equal(t, []string{mid.Path(), weak.Path(), strong.Path()}, reg.List())

	infos := reg.Services()
	require.Len(t, infos, 3)
	for i := 1; i < len(infos); i++ {
		a := &Service{order: infos[i-1].Order, favorite: infos[i-1].Favorite, strength: infos[i-1].Strength}
		b := &Service{order: infos[i].Order, favorite: infos[i].Favorite, strength: infos[i].Strength}
		assert.LessOrEqual(t, compareServices(a, b), 0)
	}
}

func TestInsertSorted_EqualKeysKeepInsertionOrder(t *testing.T) {
	a := &Service{identifier: "a", strength: 50}
	b := &Service{identifier: "b", strength: 50}
	c := &Service{identifier: "c", strength: 50}

	var list []*Service
	list = insertSorted(list, a)
	list = insertSorted(list, b)
	list = insertSorted(list, c)
	assert.Equal(t, []*Service{a, b, c}, list)

	list = resort(list, a)
	assert.Equal(t, []*Service{b, c, a}, list)
}

func TestRegistry_FavoriteLatch(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	s, _, err := reg.CreateFromNetwork(ctx, portstest.NewNetwork("aa", "g", "net", 30))
	require.NoError(t, err)

	require.NoError(t, reg.SetFavorite(ctx, s, true))
	assert.ErrorIs(t, reg.SetFavorite(ctx, s, true), domain.ErrAlreadySet)
	assert.ErrorIs(t, reg.SetFavorite(ctx, s, false), domain.ErrAlreadySet)
	assert.True(t, s.Info().Favorite)

	ghost := newService(reg, "ghost")
	assert.ErrorIs(t, reg.SetFavorite(ctx, ghost, true), domain.ErrNotFound)
}

func TestRegistry_CreateFromDevice(t *testing.T) {
	reg, prof, _ := newTestRegistry()
	ctx := context.Background()

	dev := portstest.NewDevice("eth0")
	s, created, err := reg.CreateFromDevice(ctx, dev)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, profile.DefaultPath+"/ethernet_eth0", s.Path())
	assert.Equal(t, domain.ServiceTypeEthernet, s.Info().Type)
	assert.Same(t, s, reg.LookupFromDevice(dev))
	gen := prof.Generation()
	assert.NotZero(t, gen)

	again, created, err := reg.CreateFromDevice(ctx, dev)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, s, again)
	assert.Equal(t, 1, s.Refcount())

	_, _, err = reg.CreateFromDevice(ctx, portstest.NewDevice(""))
	assert.ErrorIs(t, err, domain.ErrInvalidArguments)
	assert.Nil(t, reg.LookupFromDevice(portstest.NewDevice("")))
}

func TestRegistry_NetworkIdentity(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	_, _, err := reg.CreateFromNetwork(ctx, portstest.NewNetwork("", "g", "x", 1))
	assert.ErrorIs(t, err, domain.ErrInvalidArguments)
	_, _, err = reg.CreateFromNetwork(ctx, portstest.NewNetwork("aa", "", "x", 1))
	assert.ErrorIs(t, err, domain.ErrInvalidArguments)

	s, _, err := reg.CreateFromNetwork(ctx, portstest.NewNetwork("aa", "g", "x", 1))
	require.NoError(t, err)
	assert.Equal(t, "wifi_aa_g", s.Identifier())
	assert.Equal(t, profile.DefaultPath+"/wifi_aa_g", s.Path())
}

func TestRegistry_StrongerSightingRebinds(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	first := portstest.NewNetwork("aa", "home_managed_psk", "home", 40)
	s, created, err := reg.CreateFromNetwork(ctx, first)
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, int32(2), first.Refs.Load())

	// Same sighting again changes nothing.
	_, created, err = reg.CreateFromNetwork(ctx, first)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int32(2), first.Refs.Load())

	second := portstest.NewNetwork("aa", "home_managed_psk", "home-5g", 80)
	require.NoError(t, second.SetString(domain.NetworkKeyPassphrase, "secret-pass"))
	again, created, err := reg.CreateFromNetwork(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, s, again)

	assert.Equal(t, int32(1), first.Refs.Load(), "weaker network released")
	assert.Equal(t, int32(2), second.Refs.Load(), "stronger network bound")

	reg.mu.Lock()
	assert.Equal(t, "secret-pass", s.passphrase)
	assert.Equal(t, "home-5g", s.name)
	assert.Equal(t, uint8(80), s.strength)
	reg.mu.Unlock()

	// A weaker sighting refreshes the fields but keeps the binding.
	third := portstest.NewNetwork("aa", "home_managed_psk", "", 20)
	_, _, err = reg.CreateFromNetwork(ctx, third)
	require.NoError(t, err)
	assert.Equal(t, int32(1), third.Refs.Load())
	assert.Equal(t, int32(2), second.Refs.Load())
	assert.Equal(t, "home-5g", s.Info().Name)
}

func TestRegistry_SetCarrier(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	assert.ErrorIs(t, reg.SetCarrier(ctx, nil, true), domain.ErrInvalidArguments)

	wifi, _, err := reg.CreateFromNetwork(ctx, portstest.NewNetwork("aa", "g", "x", 10))
	require.NoError(t, err)
	assert.ErrorIs(t, reg.SetCarrier(ctx, wifi, true), domain.ErrInvalidArguments)

	eth, _, err := reg.CreateFromDevice(ctx, portstest.NewDevice("eth0"))
	require.NoError(t, err)

	require.NoError(t, reg.SetCarrier(ctx, eth, true))
	assert.Equal(t, domain.StateCarrier, eth.State())
	assert.True(t, eth.Info().Favorite)

	assert.ErrorIs(t, reg.SetCarrier(ctx, eth, false), domain.ErrAlreadySet)
	assert.Equal(t, domain.StateIdle, eth.State())
}

func TestRegistry_StateChangesAreObserved(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()
	rec := &changeRecorder{}
	reg.AddObserver(rec)

	s, _, err := reg.CreateFromNetwork(ctx, portstest.NewNetwork("aa", "g", "x", 10))
	require.NoError(t, err)

	require.NoError(t, reg.IndicateConfiguration(ctx, s))
	require.NoError(t, reg.Ready(ctx, s))
	require.NoError(t, reg.IndicateDisconnect(ctx, s))
	require.NoError(t, reg.IndicateIdle(ctx, s))
	require.NoError(t, reg.IndicateFailure(ctx, s))
	assert.ErrorIs(t, reg.Ready(ctx, nil), domain.ErrInvalidArguments)

	assert.Equal(t, []any{"configuration", "ready", "disconnect", "idle", "failure"}, rec.states())
	assert.Equal(t, s.Path(), rec.changes[0].Path)

	reg.RemoveObserver(rec)
	require.NoError(t, reg.Ready(ctx, s))
	assert.Len(t, rec.states(), 5)
}

func TestRegistry_UnexposedServiceIsSilent(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()
	rec := &changeRecorder{}
	reg.AddObserver(rec)

	s, err := reg.GetOrCreate(ctx, "wifi_hidden")
	require.NoError(t, err)
	require.NoError(t, reg.Ready(ctx, s))

	assert.Empty(t, rec.states())
	assert.Empty(t, reg.List())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_ReleasedServiceRejectsTransitions(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()
	rec := &changeRecorder{}
	reg.AddObserver(rec)

	s, _, err := reg.CreateFromNetwork(ctx, portstest.NewNetwork("aa", "g", "x", 10))
	require.NoError(t, err)
	eth, _, err := reg.CreateFromDevice(ctx, portstest.NewDevice("eth0"))
	require.NoError(t, err)

	reg.Unref(ctx, s)
	reg.Unref(ctx, eth)
	require.Equal(t, 0, reg.Len())

	assert.ErrorIs(t, reg.IndicateConfiguration(ctx, s), domain.ErrNotFound)
	assert.ErrorIs(t, reg.Ready(ctx, s), domain.ErrNotFound)
	assert.ErrorIs(t, reg.IndicateFailure(ctx, s), domain.ErrNotFound)
	assert.ErrorIs(t, reg.SetCarrier(ctx, eth, true), domain.ErrNotFound)

	assert.Equal(t, domain.StateUnknown, s.State())
	assert.Equal(t, domain.StateUnknown, eth.State())
	assert.Empty(t, rec.states())
}

func TestRegistry_ConcurrentTransitionsKeepOrder(t *testing.T) {
	for i := 0; i < 200; i++ {
		reg, _, _ := newTestRegistry()
		ctx := context.Background()

		s, _, err := reg.CreateFromNetwork(ctx, portstest.NewNetwork("aa", "g", "x", 10))
		require.NoError(t, err)
		rec := &changeRecorder{delay: 50 * time.Microsecond}
		reg.AddObserver(rec)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, reg.IndicateConfiguration(ctx, s))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, reg.Ready(ctx, s))
		}()
		wg.Wait()

		states := rec.states()
		require.Len(t, states, 2)
		require.Equal(t, s.State().String(), states[1], "run %d", i)
	}
}

func TestRegistry_Unbind(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	bound := portstest.NewNetwork("aa", "g", "x", 40)
	other := portstest.NewNetwork("aa", "g", "x", 30)
	s, _, err := reg.CreateFromNetwork(ctx, bound)
	require.NoError(t, err)
	_, created, err := reg.CreateFromNetwork(ctx, other)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, int32(2), bound.Refs.Load())
	require.Equal(t, int32(1), other.Refs.Load())

	assert.False(t, reg.Unbind(ctx, s, other))
	assert.True(t, reg.Unbind(ctx, s, bound))
	assert.Equal(t, int32(1), bound.Refs.Load())
	assert.False(t, reg.Unbind(ctx, s, bound))

	// The next merge binds again.
	_, _, err = reg.CreateFromNetwork(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, int32(2), other.Refs.Load())
	assert.Equal(t, 1, s.Refcount())
}

func TestRegistry_FailIfConnecting(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	s, _, err := reg.CreateFromNetwork(ctx, portstest.NewNetwork("aa", "g", "x", 10))
	require.NoError(t, err)

	assert.False(t, reg.FailIfConnecting(ctx, s))

	require.NoError(t, reg.IndicateConfiguration(ctx, s))
	assert.True(t, reg.FailIfConnecting(ctx, s))
	assert.Equal(t, domain.StateFailure, s.State())
}

func TestRegistry_Close(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	n := portstest.NewNetwork("aa", "g", "x", 10)
	_, _, err := reg.CreateFromNetwork(ctx, n)
	require.NoError(t, err)

	reg.Close(ctx)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, int32(1), n.Refs.Load())
}
