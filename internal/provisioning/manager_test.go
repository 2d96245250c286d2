package provisioning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weatherbird/provisioning/internal/button"
	"github.com/weatherbird/provisioning/internal/claim"
	"github.com/weatherbird/provisioning/internal/identity"
	"github.com/weatherbird/provisioning/internal/radio"
	"github.com/weatherbird/provisioning/internal/record"
	"go.uber.org/zap"
)

type memStore struct {
	mu     sync.Mutex
	rec    *record.Record
	saves  int
	forced bool
	err    error
}

func (s *memStore) Load() (*record.Record, record.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return record.Default(record.DefaultSlots), record.SourceDefaults
	}
	return s.rec.Clone(), record.SourcePrimary
}

func (s *memStore) Save(rec *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.rec = rec.Clone()
	return s.err
}

func (s *memStore) ForcedPortal() bool { return s.forced }

func (s *memStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type claimFunc func(ctx context.Context, req claim.Request) error

func (f claimFunc) Claim(ctx context.Context, req claim.Request) error { return f(ctx, req) }

type fixture struct {
	m       *Manager
	sim     *radio.Simulated
	store   *memStore
	claims  []claim.Request
	claimFn func(req claim.Request) error
	now     time.Time
}

const hardwareID = 0x1a2b3c

func newFixture(t *testing.T, stored *record.Record) *fixture {
	t.Helper()
	f := &fixture{
		sim:   radio.NewSimulated(),
		store: &memStore{rec: stored},
		now:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	ctrl := radio.NewController(f.sim, radio.DefaultConfig(), zap.NewNop())
	ctrl.Sleep = func(context.Context, time.Duration) error { return nil }

	f.m = NewManager(Options{
		Store: f.store,
		Radio: ctrl,
		Claimer: claimFunc(func(_ context.Context, req claim.Request) error {
			f.claims = append(f.claims, req)
			if f.claimFn != nil {
				return f.claimFn(req)
			}
			return nil
		}),
		Identity: identity.New(hardwareID, identity.Prefixes{}),
		Now:      func() time.Time { return f.now },
	})
	return f
}

func storedRecord(claimed bool, creds ...string) *record.Record {
	r := record.Default(record.DefaultSlots)
	for i := 0; i+1 < len(creds); i += 2 {
		_ = r.SetSlot(i/2, creds[i], creds[i+1])
	}
	if claimed {
		r.MarkClaimed("AbcDefGhiJkl", "owner1")
	}
	return r
}

func (f *fixture) setState(s State) {
	f.m.mu.Lock()
	f.m.state = s
	f.m.mu.Unlock()
}

func intp(v int) *int { return &v }
func strp(v string) *string { return &v }

func TestBegin_NoCredentials(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.m.Begin(context.Background()))

	assert.Equal(t, NoNetwork, f.m.State())
	assert.Equal(t, radio.ModeDiscovery, f.sim.Mode())

	ap, ok := f.sim.AccessPoint()
	require.True(t, ok, "discovery access point should be up")
	assert.Equal(t, "WEATHERBIRD1a2b3c", ap.SSID)
	assert.Equal(t, "WBPASS1a2b3c", ap.Password)
	assert.GreaterOrEqual(t, ap.Channel, 1)
	assert.LessOrEqual(t, ap.Channel, 11)
	assert.Equal(t, 0, f.store.Saves(), "boot must not persist")
}

func TestBegin_ConnectedClaimed(t *testing.T) {
	f := newFixture(t, storedRecord(true, "HomeNet", "pw"))
	f.sim.AddNetwork("HomeNet", "pw", -40)

	require.NoError(t, f.m.Begin(context.Background()))
	assert.Equal(t, FullyConfigured, f.m.State())
	assert.Equal(t, radio.ModeClient, f.sim.Mode())

	st := f.m.Status()
	assert.True(t, st.Associated)
	assert.Equal(t, "HomeNet", st.SSID)
	assert.Equal(t, "owner1", st.OwnerID)
}

func TestBegin_ConnectedUnclaimed(t *testing.T) {
	f := newFixture(t, storedRecord(false, "", "", "Garage", "pw"))
	f.sim.AddNetwork("Garage", "pw", -60)

	require.NoError(t, f.m.Begin(context.Background()))
	assert.Equal(t, NetworkReadyNoIdentity, f.m.State())
	assert.Equal(t, radio.ModeClient, f.sim.Mode())
}

func TestBegin_ConnectFails(t *testing.T) {
	f := newFixture(t, storedRecord(true, "HomeNet", "pw"))

	require.NoError(t, f.m.Begin(context.Background()))
	assert.Equal(t, NoNetwork, f.m.State())
	assert.Equal(t, radio.ModeDiscovery, f.sim.Mode())
	assert.Equal(t, 10, f.sim.Joins(), "one join per round")
}

func TestSubmitNetwork_HomeNet(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.AddNetwork("HomeNet", "", -50)
	require.NoError(t, f.m.Begin(context.Background()))

	status, err := f.m.SubmitNetwork(context.Background(), NetworkRequest{Slot: intp(0), SSID: strp("HomeNet")})
	require.NoError(t, err)
	assert.Equal(t, ConnectionSuccess, status)
	assert.Equal(t, NetworkReadyNoIdentity, f.m.State())

	require.Equal(t, 1, f.store.Saves())
	assert.Equal(t, "HomeNet", f.store.rec.Credentials[0].SSID)
	assert.Equal(t, "", f.store.rec.Credentials[0].Password)
}

func TestSubmitNetwork_ClaimedGoesFullyConfigured(t *testing.T) {
	f := newFixture(t, storedRecord(true))
	f.sim.AddNetwork("HomeNet", "pw", -50)
	require.NoError(t, f.m.Begin(context.Background()))

	status, err := f.m.SubmitNetwork(context.Background(), NetworkRequest{Slot: intp(1), SSID: strp("HomeNet"), Password: strp("pw")})
	require.NoError(t, err)
	assert.Equal(t, ConnectionSuccess, status)
	assert.Equal(t, FullyConfigured, f.m.State())
}

func TestSubmitNetwork_JoinFails(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.AddNetwork("HomeNet", "right", -50)
	require.NoError(t, f.m.Begin(context.Background()))

	status, err := f.m.SubmitNetwork(context.Background(), NetworkRequest{Slot: intp(0), SSID: strp("HomeNet"), Password: strp("wrong")})
	require.NoError(t, err)
	assert.Equal(t, ConnectionFailed, status)
	assert.Equal(t, ConfiguringNetwork, f.m.State())
	assert.Equal(t, 1, f.store.Saves(), "credential is stored even when the join fails")
}

func TestStoreNetwork_DefersJoin(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.AddNetwork("HomeNet", "pw", -50)
	require.NoError(t, f.m.Begin(context.Background()))
	assert.True(t, f.m.KeepsAccessPoint())

	join, err := f.m.StoreNetwork(context.Background(), NetworkRequest{Slot: intp(0), SSID: strp("HomeNet"), Password: strp("pw")})
	require.NoError(t, err)
	require.NotNil(t, join)
	assert.Equal(t, "HomeNet", join.SSID())
	assert.Equal(t, 0, f.sim.Joins(), "storing must not join")
	assert.Equal(t, NoNetwork, f.m.State())
	assert.Equal(t, 1, f.store.Saves())
	assert.Equal(t, "HomeNet", f.m.Status().Slots[0].SSID)

	status, err := join.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ConnectionSuccess, status)
	assert.Equal(t, NetworkReadyNoIdentity, f.m.State())
}

func TestPendingJoin_AssociatedMeanwhile(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.AddNetwork("HomeNet", "pw", -50)
	f.sim.AddNetwork("Garage", "pw", -60)
	require.NoError(t, f.m.Begin(context.Background()))

	join, err := f.m.StoreNetwork(context.Background(), NetworkRequest{Slot: intp(0), SSID: strp("HomeNet"), Password: strp("pw")})
	require.NoError(t, err)
	require.NoError(t, f.sim.Join(context.Background(), record.Credential{SSID: "Garage", Password: "pw"}))

	status, err := join.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ConnectionUnchanged, status)
	assert.Equal(t, 1, f.sim.Joins(), "no second join")
}

func TestStoreNetwork_NothingToJoin(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.m.Begin(context.Background()))

	join, err := f.m.StoreNetwork(context.Background(), NetworkRequest{Slot: intp(0), SSID: strp("")})
	require.NoError(t, err)
	assert.Nil(t, join, "an empty slot has nothing to join")
}

func TestKeepsAccessPoint_SingleRadio(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.SingleRadio = true
	assert.False(t, f.m.KeepsAccessPoint())
}

func TestSubmitNetwork_AlreadyAssociated(t *testing.T) {
	f := newFixture(t, storedRecord(false, "HomeNet", "pw"))
	f.sim.AddNetwork("HomeNet", "pw", -50)
	require.NoError(t, f.m.Begin(context.Background()))

	status, err := f.m.SubmitNetwork(context.Background(), NetworkRequest{Slot: intp(1), SSID: strp("Backup"), Password: strp("x")})
	require.NoError(t, err)
	assert.Equal(t, ConnectionUnchanged, status)
	assert.Equal(t, NetworkReadyNoIdentity, f.m.State())
	assert.Equal(t, "Backup", f.store.rec.Credentials[1].SSID)
}

func TestSubmitNetwork_ClearSlot(t *testing.T) {
	f := newFixture(t, storedRecord(false, "HomeNet", "pw"))
	require.NoError(t, f.m.Begin(context.Background()))

	status, err := f.m.SubmitNetwork(context.Background(), NetworkRequest{Slot: intp(0), SSID: strp(record.NoConfig)})
	require.NoError(t, err)
	assert.Equal(t, ConnectionUnchanged, status)
	assert.True(t, f.store.rec.Credentials[0].IsEmpty())
}

func TestSubmitNetwork_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		req   NetworkRequest
		field string
	}{
		{"slot out of range", NetworkRequest{Slot: intp(5), SSID: strp("HomeNet")}, "slot"},
		{"negative slot", NetworkRequest{Slot: intp(-1), SSID: strp("HomeNet")}, "slot"},
		{"missing slot", NetworkRequest{SSID: strp("HomeNet")}, "slot"},
		{"missing ssid", NetworkRequest{Slot: intp(0)}, "ssid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			require.NoError(t, f.m.Begin(context.Background()))
			before := f.m.State()

			_, err := f.m.SubmitNetwork(context.Background(), tt.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, before, f.m.State())
			assert.Equal(t, 0, f.store.Saves(), "no persistence on rejected input")
		})
	}
}

func TestClaimIdentity_Success(t *testing.T) {
	f := newFixture(t, storedRecord(false, "HomeNet", "pw"))
	f.sim.AddNetwork("HomeNet", "pw", -50)
	require.NoError(t, f.m.Begin(context.Background()))
	require.Equal(t, NetworkReadyNoIdentity, f.m.State())

	require.NoError(t, f.m.ClaimIdentity(context.Background(), "user123"))
	assert.Equal(t, FullyConfigured, f.m.State())

	require.Len(t, f.claims, 1)
	req := f.claims[0]
	assert.Equal(t, "ESP1a2b3c@sourceauditor.com", req.DeviceEmail)
	assert.Equal(t, "ESP1a2b3c", req.StationID)
	assert.Equal(t, "user123", req.OwnerID)
	assert.Len(t, req.DevicePassword, claim.PasswordLength)

	assert.True(t, f.store.rec.CloudInitialized)
	assert.Equal(t, "user123", f.store.rec.OwnerID)
	assert.Equal(t, req.DevicePassword, f.store.rec.CloudPassword)
}

func TestClaimIdentity_RemoteFailure(t *testing.T) {
	f := newFixture(t, storedRecord(false, "HomeNet", "pw"))
	f.sim.AddNetwork("HomeNet", "pw", -50)
	require.NoError(t, f.m.Begin(context.Background()))
	before := f.m.Record()
	f.claimFn = func(claim.Request) error {
		return &claim.Error{Type: claim.ErrTypeHTTP, StatusCode: 500}
	}

	err := f.m.ClaimIdentity(context.Background(), "user123")
	require.Error(t, err)
	assert.True(t, IsClaimError(err))
	assert.True(t, claim.IsHTTPError(err))
	assert.Equal(t, IdentityInitError, f.m.State())
	assert.True(t, before.Equal(f.m.Record()), "record unchanged")
	assert.Equal(t, 0, f.store.Saves())

	// Retry from the error state.
	f.claimFn = nil
	require.NoError(t, f.m.ClaimIdentity(context.Background(), "user123"))
	assert.Equal(t, FullyConfigured, f.m.State())
}

func TestClaimIdentity_NotEligible(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.m.Begin(context.Background()))

	err := f.m.ClaimIdentity(context.Background(), "user123")
	assert.True(t, IsTransitionError(err))
	assert.Empty(t, f.claims, "no remote call from NoNetwork")
	assert.Equal(t, NoNetwork, f.m.State())
}

func TestClaimIdentity_OwnerTooLong(t *testing.T) {
	f := newFixture(t, nil)
	err := f.m.ClaimIdentity(context.Background(), "0123456789012345678901234567890123456789")
	assert.True(t, IsValidationError(err))
}

func TestClaimIdentity_FailureFromConfiguredKeepsState(t *testing.T) {
	f := newFixture(t, storedRecord(true, "HomeNet", "pw"))
	f.sim.AddNetwork("HomeNet", "pw", -50)
	require.NoError(t, f.m.Begin(context.Background()))
	f.claimFn = func(claim.Request) error { return errors.New("boom") }

	err := f.m.ClaimIdentity(context.Background(), "other")
	assert.True(t, IsClaimError(err))
	assert.Equal(t, FullyConfigured, f.m.State())
}

func TestCancelIdentity(t *testing.T) {
	f := newFixture(t, storedRecord(false, "HomeNet", "pw"))
	f.sim.AddNetwork("HomeNet", "pw", -50)
	require.NoError(t, f.m.Begin(context.Background()))

	// Not on the identity form yet.
	assert.True(t, IsTransitionError(f.m.ClaimIdentity(context.Background(), "")))

	assert.Equal(t, ConfiguringIdentity, f.m.ShowIdentityPage(context.Background()))
	require.NoError(t, f.m.ClaimIdentity(context.Background(), ""))
	assert.Equal(t, IdentityConfigCancelled, f.m.State())
	assert.Empty(t, f.claims)
}

func TestLongPress_FromEveryState(t *testing.T) {
	for _, claimed := range []bool{false, true} {
		for _, s := range AllStates {
			f := newFixture(t, storedRecord(claimed, "HomeNet", "pw"))
			f.sim.AddNetwork("HomeNet", "pw", -50)
			require.NoError(t, f.m.Begin(context.Background()))
			f.setState(s)

			require.NoError(t, f.m.HandleLongPress(context.Background()))
			assert.Equal(t, ConfiguringNetwork, f.m.State(), "from %s", s)
			assert.Equal(t, radio.ModeDiscovery, f.sim.Mode())

			st := f.m.Status()
			require.NotNil(t, st.ForcedDiscoveryUntil)
			assert.Equal(t, f.now.Add(time.Hour), *st.ForcedDiscoveryUntil)

			f.m.Tick(context.Background(), f.now.Add(59*time.Minute))
			assert.Equal(t, ConfiguringNetwork, f.m.State(), "deadline not reached")

			f.m.Tick(context.Background(), f.now.Add(time.Hour))
			want := NetworkReadyNoIdentity
			if claimed {
				want = FullyConfigured
			}
			assert.Equal(t, want, f.m.State(), "after deadline from %s", s)
			assert.Equal(t, radio.ModeClient, f.sim.Mode())
			assert.Nil(t, f.m.Status().ForcedDiscoveryUntil)
		}
	}
}

func TestExitConfiguration(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.AddNetwork("HomeNet", "", -50)
	require.NoError(t, f.m.Begin(context.Background()))

	err := f.m.ExitConfiguration(context.Background())
	assert.True(t, IsTransitionError(err), "exit requires association")
	assert.Equal(t, NoNetwork, f.m.State())

	_, err = f.m.SubmitNetwork(context.Background(), NetworkRequest{Slot: intp(0), SSID: strp("HomeNet")})
	require.NoError(t, err)
	require.NoError(t, f.m.HandleLongPress(context.Background()))

	status, err := f.m.SubmitNetwork(context.Background(), NetworkRequest{Exit: true})
	require.NoError(t, err)
	assert.Equal(t, ConnectionUnchanged, status)
	assert.Equal(t, NetworkReadyNoIdentity, f.m.State())
	assert.Equal(t, f.now.Add(time.Second), *f.m.Status().ForcedDiscoveryUntil)

	f.m.Tick(context.Background(), f.now.Add(time.Second))
	assert.Equal(t, radio.ModeClient, f.sim.Mode())
	assert.Equal(t, NetworkReadyNoIdentity, f.m.State())
}

func TestLongPress_SingleRadioRestoresAtDeadline(t *testing.T) {
	f := newFixture(t, storedRecord(true, "HomeNet", "pw"))
	f.sim.AddNetwork("HomeNet", "pw", -50)
	f.sim.SingleRadio = true
	require.NoError(t, f.m.Begin(context.Background()))
	require.Equal(t, FullyConfigured, f.m.State())

	require.NoError(t, f.m.HandleLongPress(context.Background()))
	assert.Equal(t, ConfiguringNetwork, f.m.State())
	_, apUp := f.sim.AccessPoint()
	assert.True(t, apUp)
	assert.False(t, f.sim.Associated(context.Background()), "association is suspended for the access point")

	f.m.Tick(context.Background(), f.now.Add(DefaultDiscoveryDuration))
	assert.True(t, f.sim.Associated(context.Background()))
	assert.Equal(t, FullyConfigured, f.m.State())
	_, apUp = f.sim.AccessPoint()
	assert.False(t, apUp)
}

func TestExitConfiguration_OnlyFromNetworkStates(t *testing.T) {
	f := newFixture(t, storedRecord(true, "HomeNet", "pw"))
	f.sim.AddNetwork("HomeNet", "pw", -50)
	require.NoError(t, f.m.Begin(context.Background()))
	require.Equal(t, FullyConfigured, f.m.State())

	err := f.m.ExitConfiguration(context.Background())
	assert.True(t, IsTransitionError(err))
	assert.Equal(t, FullyConfigured, f.m.State())
	assert.Nil(t, f.m.Status().ForcedDiscoveryUntil)
}

func TestLiveStatus(t *testing.T) {
	f := newFixture(t, storedRecord(false, "HomeNet", "pw"))
	f.sim.AddNetwork("HomeNet", "pw", -50)
	require.NoError(t, f.m.Begin(context.Background()))

	live := f.m.LiveStatus(context.Background())
	assert.True(t, live.Associated)
	assert.Equal(t, "HomeNet", live.SSID)

	f.sim.SetReachable("HomeNet", false)
	live = f.m.LiveStatus(context.Background())
	assert.False(t, live.Associated)
	assert.Empty(t, live.SSID)
	assert.Empty(t, live.LocalIP)
	assert.True(t, f.m.Status().Associated, "published snapshot is untouched")

	f.sim.SetReachable("HomeNet", true)
	require.NoError(t, f.sim.Join(context.Background(), record.Credential{SSID: "HomeNet", Password: "pw"}))
	live = f.m.LiveStatus(context.Background())
	assert.True(t, live.Associated)
	assert.Equal(t, "HomeNet", live.SSID)
}

func TestCheckConnectivity(t *testing.T) {
	f := newFixture(t, storedRecord(true, "HomeNet", "pw"))
	f.sim.AddNetwork("HomeNet", "pw", -50)
	require.NoError(t, f.m.Begin(context.Background()))
	require.Equal(t, FullyConfigured, f.m.State())

	f.m.CheckConnectivity(context.Background())
	assert.Equal(t, FullyConfigured, f.m.State())

	f.sim.SetReachable("HomeNet", false)
	f.m.CheckConnectivity(context.Background())
	assert.Equal(t, NoNetwork, f.m.State())

	f.sim.SetReachable("HomeNet", true)
	_ = f.sim.Join(context.Background(), record.Credential{SSID: "HomeNet", Password: "pw"})
	f.m.CheckConnectivity(context.Background())
	assert.Equal(t, FullyConfigured, f.m.State(), "recovers once associated again")
}

func TestPageTransitions(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.AddNetwork("Strong", "x", -30)
	f.sim.AddNetwork("Weak", "x", -80)
	require.NoError(t, f.m.Begin(context.Background()))

	networks, err := f.m.ShowNetworkPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ConfiguringNetwork, f.m.State())
	require.Len(t, networks, 2)
	assert.Equal(t, "Strong", networks[0].SSID)

	assert.Equal(t, ConfiguringNetwork, f.m.ShowIdentityPage(context.Background()), "identity page needs a network")
}

func TestRequestReconfiguration(t *testing.T) {
	f := newFixture(t, storedRecord(true, "HomeNet", "pw"))
	f.sim.AddNetwork("HomeNet", "pw", -50)
	require.NoError(t, f.m.Begin(context.Background()))

	require.NoError(t, f.m.RequestReconfiguration(context.Background()))
	assert.Equal(t, ReconfigurationRequested, f.m.State())
	assert.Equal(t, ConfiguringIdentity, f.m.ShowIdentityPage(context.Background()))
	assert.True(t, IsTransitionError(f.m.RequestReconfiguration(context.Background())))
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, nil)
	var got []Transition
	unsubscribe := f.m.Subscribe(func(tr Transition) { got = append(got, tr) })

	require.NoError(t, f.m.Begin(context.Background()))
	require.NoError(t, f.m.HandleLongPress(context.Background()))
	unsubscribe()
	f.m.Tick(context.Background(), f.now.Add(2*time.Hour))

	require.Len(t, got, 2)
	assert.Equal(t, EventInit, got[0].Event)
	assert.Equal(t, Transition{From: NoNetwork, To: ConfiguringNetwork, Event: EventLongPress, At: f.now}, got[1])
}

func TestStatusHasNoSecrets(t *testing.T) {
	f := newFixture(t, storedRecord(true, "HomeNet", "pw"))
	require.NoError(t, f.m.Begin(context.Background()))

	st := f.m.Status()
	require.Len(t, st.Slots, 2)
	assert.Equal(t, SlotSummary{SSID: "HomeNet", HasPassword: true}, st.Slots[0])
	assert.Equal(t, SlotSummary{}, st.Slots[1])
	assert.Equal(t, "ESP1a2b3c", st.StationID)
}

func TestPersistFailureKeepsMutation(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.m.Begin(context.Background()))
	f.store.err = errors.New("disk full")

	_, err := f.m.SubmitNetwork(context.Background(), NetworkRequest{Slot: intp(1), SSID: strp("Attic")})
	require.NoError(t, err)
	assert.Equal(t, "Attic", f.m.Record().Credentials[1].SSID)
}

func TestRun_LongPressFromButton(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.m.Begin(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	buttons := make(chan button.Event, 2)
	done := make(chan error, 1)
	go func() { done <- f.m.Run(ctx, buttons) }()

	buttons <- button.Press
	buttons <- button.LongPress
	require.Eventually(t, func() bool { return f.m.State() == ConfiguringNetwork }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
