package provisioning

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/weatherbird/provisioning/internal/button"
	"github.com/weatherbird/provisioning/internal/claim"
	"github.com/weatherbird/provisioning/internal/identity"
	"github.com/weatherbird/provisioning/internal/logging"
	"github.com/weatherbird/provisioning/internal/radio"
	"github.com/weatherbird/provisioning/internal/record"
	"go.uber.org/zap"
)

const (
	// DefaultDiscoveryDuration is how long a long press keeps discovery mode up
	DefaultDiscoveryDuration = time.Hour

	// DefaultExitDelay is the pause between leaving configuration and client mode
	DefaultExitDelay = time.Second

	// DefaultConnectivityInterval is the period of live association checks
	DefaultConnectivityInterval = 30 * time.Second

	tickInterval = time.Second
)

// Store is the persistence the manager needs.
type Store interface {
	Load() (*record.Record, record.Source)
	Save(rec *record.Record) error
	ForcedPortal() bool
}

// Observer receives operational measurements. All methods must be cheap.
type Observer interface {
	ObserveTransition(t Transition)
	ObserveConnect(res radio.ConnectResult)
	ObserveClaim(err error)
	ObservePersist(err error)
}

type nopObserver struct{}

func (nopObserver) ObserveTransition(Transition) {}

func (nopObserver) ObserveConnect(radio.ConnectResult) {}

func (nopObserver) ObserveClaim(error) {}

func (nopObserver) ObservePersist(error) {}

// Transition describes one applied state change.
type Transition struct {
	From  State     `json:"from"`
	To    State     `json:"to"`
	Event Event     `json:"event"`
	At    time.Time `json:"at"`
}

// Options configures a Manager.
type Options struct {
	Store    Store
	Radio    *radio.Controller
	Claimer  claim.Claimer
	Identity identity.Device

	DiscoveryDuration    time.Duration
	ExitDelay            time.Duration
	ConnectivityInterval time.Duration

	Observer Observer
	Now      func() time.Time
}

// Manager owns the provisioning state and the configuration record. All
// mutations are serialized by one mutex; Status never blocks.
type Manager struct {
	mu           sync.Mutex
	state        State
	rec          *record.Record
	deadline     time.Time
	forcedPortal bool

	store    Store
	radio    *radio.Controller
	claimer  claim.Claimer
	identity identity.Device
	observer Observer
	now      func() time.Time

	discoveryDuration    time.Duration
	exitDelay            time.Duration
	connectivityInterval time.Duration

	status atomic.Pointer[Status]

	listenersMu sync.Mutex
	listeners   map[int]func(Transition)
	nextID      int
}

// NewManager creates a manager. Begin must be called before anything else.
func NewManager(opts Options) *Manager {
	if opts.DiscoveryDuration <= 0 {
		opts.DiscoveryDuration = DefaultDiscoveryDuration
	}
	if opts.ExitDelay <= 0 {
		opts.ExitDelay = DefaultExitDelay
	}
	if opts.ConnectivityInterval <= 0 {
		opts.ConnectivityInterval = DefaultConnectivityInterval
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Manager{
		state:                NoNetwork,
		rec:                  record.Default(record.DefaultSlots),
		store:                opts.Store,
		radio:                opts.Radio,
		claimer:              opts.Claimer,
		identity:             opts.Identity,
		observer:             opts.Observer,
		now:                  opts.Now,
		discoveryDuration:    opts.DiscoveryDuration,
		exitDelay:            opts.ExitDelay,
		connectivityInterval: opts.ConnectivityInterval,
		listeners:            make(map[int]func(Transition)),
	}
	m.status.Store(&Status{State: NoNetwork, StationID: opts.Identity.StationID()})
	return m
}

// Begin loads the record, tries the stored networks and settles on the
// initial state. Discovery mode is entered when no network could be joined.
func (m *Manager) Begin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, src := m.store.Load()
	m.rec = rec
	m.forcedPortal = m.store.ForcedPortal()
	logging.Info("Configuration loaded",
		zap.Stringer("source", src),
		zap.Int("usable_slots", len(rec.Usable())),
		zap.Bool("identity_initialized", rec.CloudInitialized),
		zap.Bool("forced_portal", m.forcedPortal),
	)

	if err := m.radio.EnterClientMode(ctx, nil); err != nil {
		logging.Warn("Failed to enter client mode", zap.Error(err))
	}

	g := m.guard(ctx)
	if g.HasCredentials {
		res := m.radio.Connect(ctx, m.rec.Usable())
		m.observer.ObserveConnect(res)
		g.Connected = res.Connected
	}

	to, _ := Next(m.state, EventInit, g)
	if to == NoNetwork {
		if err := m.enterDiscovery(ctx); err != nil {
			logging.Error("Failed to enter discovery mode", zap.Error(err))
		}
	}
	m.apply(ctx, EventInit, to)
	return nil
}

// Status returns the latest published snapshot.
func (m *Manager) Status() *Status {
	return m.status.Load()
}

// LiveStatus returns the latest snapshot with the association read from the
// radio now. The snapshot alone only changes on transitions, so it can lag a
// dropped or regained link until the next connectivity check.
func (m *Manager) LiveStatus(ctx context.Context) *Status {
	st := *m.Status()
	associated := m.radio.Associated(ctx)
	if associated == st.Associated {
		return &st
	}
	st.Associated = associated
	st.SSID, st.LocalIP = "", ""
	if associated {
		if link, err := m.radio.Radio().Link(ctx); err == nil {
			st.SSID = link.SSID
			st.LocalIP = link.IP
		}
	}
	return &st
}

// State returns the current state.
func (m *Manager) State() State {
	return m.Status().State
}

// Identity returns the station identity.
func (m *Manager) Identity() identity.Device {
	return m.identity
}

// Slots returns the number of credential slots.
func (m *Manager) Slots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.Slots()
}

// Record returns a copy of the in-memory configuration record.
func (m *Manager) Record() *record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.Clone()
}

// Subscribe registers fn to be called after every transition. fn runs with
// the manager locked and must not block or call back into the manager.
func (m *Manager) Subscribe(fn func(Transition)) (unsubscribe func()) {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listenersMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

// HandleLongPress forces discovery mode from any state and arms the
// forced-discovery deadline.
func (m *Manager) HandleLongPress(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	logging.Info("Provision button long press")
	if err := m.enterDiscovery(ctx); err != nil {
		logging.Error("Failed to enter discovery mode", zap.Error(err))
	}
	m.deadline = m.now().Add(m.discoveryDuration)
	_, err := m.transition(ctx, EventLongPress, m.guard(ctx))
	return err
}

// Tick fires the forced-discovery deadline once it has passed.
func (m *Manager) Tick(ctx context.Context, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deadline.IsZero() || now.Before(m.deadline) {
		return
	}
	m.deadline = time.Time{}

	logging.Info("Forced discovery window elapsed, returning to client mode")
	if err := m.radio.EnterClientMode(ctx, m.rec.Usable()); err != nil {
		logging.Warn("Failed to enter client mode", zap.Error(err))
	}
	_, _ = m.transition(ctx, EventDiscoveryExpired, m.guard(ctx))
}

// CheckConnectivity drops to NoNetwork when the interface has lost its
// association. A station in NoNetwork that finds itself associated again
// outside a forced discovery window recovers as if it had just joined.
func (m *Manager) CheckConnectivity(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.guard(ctx)
	switch {
	case m.state != NoNetwork && !g.Associated:
		_, _ = m.transition(ctx, EventConnectivityLost, g)
	case m.state == NoNetwork && g.Associated && m.deadline.IsZero():
		g.Connected = true
		_, _ = m.transition(ctx, EventNetworkJoined, g)
	default:
		m.publish(ctx)
	}
}

// NetworkRequest is a submission from the network-configuration page.
// Nil pointers mark absent fields.
type NetworkRequest struct {
	Slot     *int
	SSID     *string
	Password *string
	Exit     bool
}

// ConnectionStatus is the outcome reported for a network submission.
type ConnectionStatus string

const (
	ConnectionSuccess   ConnectionStatus = "Success"
	ConnectionFailed    ConnectionStatus = "Failed"
	ConnectionUnchanged ConnectionStatus = "Unchanged"

	// ConnectionPending is reported when the join runs after the reply,
	// because joining takes the access point the reply travels over down.
	ConnectionPending ConnectionStatus = "Pending"
)

// PendingJoin is a join of a freshly stored credential that has not been
// attempted yet.
type PendingJoin struct {
	m    *Manager
	cred record.Credential
}

// SSID names the network the join targets.
func (p *PendingJoin) SSID() string {
	return p.cred.SSID
}

// KeepsAccessPoint reports whether the discovery access point survives a
// join, so a client reached over it can wait for the outcome.
func (m *Manager) KeepsAccessPoint() bool {
	return m.radio.KeepsAccessPoint()
}

// SubmitNetwork stores one credential slot and, when the station is not
// associated, tries to join the submitted network.
func (m *Manager) SubmitNetwork(ctx context.Context, req NetworkRequest) (ConnectionStatus, error) {
	if req.Exit {
		return ConnectionUnchanged, m.ExitConfiguration(ctx)
	}
	join, err := m.StoreNetwork(ctx, req)
	if err != nil {
		return "", err
	}
	if join == nil {
		return ConnectionUnchanged, nil
	}
	return join.Run(ctx)
}

// StoreNetwork validates and persists one credential slot. It returns the
// join to attempt when the credential is usable and the station is not
// associated, and nil when there is nothing to join.
func (m *Manager) StoreNetwork(ctx context.Context, req NetworkRequest) (*PendingJoin, error) {
	if req.Slot == nil {
		return nil, &ValidationError{Field: "slot", Message: "missing"}
	}
	if req.SSID == nil {
		return nil, &ValidationError{Field: "ssid", Message: "missing"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	slot := *req.Slot
	if slot < 0 || slot >= m.rec.Slots() {
		return nil, &ValidationError{Field: "slot", Message: "out of range"}
	}

	var password string
	if req.Password != nil {
		password = *req.Password
	}
	if err := m.rec.SetSlot(slot, *req.SSID, password); err != nil {
		return nil, &ValidationError{Field: "slot", Message: err.Error()}
	}
	m.persist()

	cred := m.rec.Credentials[slot]
	logging.Info("Credential slot updated",
		zap.Int("slot", slot),
		zap.String("ssid", cred.SSID),
		zap.String("password", logging.Redact(cred.Password)),
	)
	m.publish(ctx)

	if cred.IsEmpty() || m.radio.Associated(ctx) {
		return nil, nil
	}
	return &PendingJoin{m: m, cred: cred}, nil
}

// Run makes one join attempt and applies its outcome. A station that became
// associated since the credential was stored is left alone.
func (p *PendingJoin) Run(ctx context.Context) (ConnectionStatus, error) {
	m := p.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.radio.Associated(ctx) {
		m.publish(ctx)
		return ConnectionUnchanged, nil
	}
	if m.state != NoNetwork && m.state != ConfiguringNetwork {
		_, _ = m.transition(ctx, EventConnectivityLost, m.guard(ctx))
	}

	g := m.guard(ctx)
	g.Connected = m.radio.JoinOnce(ctx, p.cred)
	if _, err := m.transition(ctx, EventNetworkJoined, g); err != nil {
		return ConnectionFailed, err
	}
	if !g.Connected {
		logging.Warn("Failed to join submitted network", zap.String("ssid", p.cred.SSID))
		return ConnectionFailed, nil
	}
	return ConnectionSuccess, nil
}

// ExitConfiguration leaves network configuration without touching the
// credentials. It requires a live association and schedules client mode
// after the exit delay.
func (m *Manager) ExitConfiguration(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.guard(ctx)
	if _, ok := Next(m.state, EventExitConfiguration, g); !ok {
		return &TransitionError{From: m.state, Event: EventExitConfiguration, Reason: "not associated with a network"}
	}
	m.deadline = m.now().Add(m.exitDelay)
	_, err := m.transition(ctx, EventExitConfiguration, g)
	return err
}

// ClaimIdentity registers the station with the cloud service for owner.
// An empty owner cancels the identity form instead.
func (m *Manager) ClaimIdentity(ctx context.Context, owner string) error {
	if owner == "" {
		return m.CancelIdentity(ctx)
	}
	if len(owner) > record.OwnerFieldLen-1 {
		return &ValidationError{Field: "uid", Message: "owner identifier too long"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := Next(m.state, EventClaimSucceeded, Guard{}); !ok {
		return &TransitionError{From: m.state, Event: EventClaimSucceeded}
	}

	password, err := claim.GeneratePassword(claim.PasswordLength)
	if err != nil {
		return err
	}
	req := claim.Request{
		DeviceEmail:    m.identity.Email(),
		DevicePassword: password,
		StationID:      m.identity.StationID(),
		OwnerID:        owner,
	}

	err = m.claimer.Claim(ctx, req)
	m.observer.ObserveClaim(err)
	if err != nil {
		logging.Error("Identity claim failed", zap.String("owner_id", owner), zap.Error(err))
		if _, terr := m.transition(ctx, EventClaimFailed, m.guard(ctx)); terr != nil {
			logging.Debug("Claim failure leaves state unchanged", zap.Stringer("state", m.state))
		}
		return &ClaimError{Err: err}
	}

	m.rec.MarkClaimed(password, owner)
	m.persist()
	logging.Info("Station claimed", zap.String("owner_id", owner))
	_, err = m.transition(ctx, EventClaimSucceeded, m.guard(ctx))
	return err
}

// CancelIdentity records that the user abandoned the identity form.
func (m *Manager) CancelIdentity(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.transition(ctx, EventClaimCancelled, m.guard(ctx))
	return err
}

// ShowNetworkPage marks the network page as shown and returns visible
// networks, strongest first.
func (m *Manager) ShowNetworkPage(ctx context.Context) ([]radio.Network, error) {
	m.mu.Lock()
	if _, ok := Next(m.state, EventNetworkPageShown, Guard{}); ok {
		_, _ = m.transition(ctx, EventNetworkPageShown, m.guard(ctx))
	}
	m.mu.Unlock()

	return m.radio.ScanNetworks(ctx)
}

// ShowIdentityPage marks the identity page as shown when the state allows
// identity configuration. It returns the resulting state.
func (m *Manager) ShowIdentityPage(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := Next(m.state, EventIdentityPageShown, Guard{}); ok {
		_, _ = m.transition(ctx, EventIdentityPageShown, m.guard(ctx))
	}
	return m.state
}

// RequestReconfiguration lets a fully configured station be claimed again.
func (m *Manager) RequestReconfiguration(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.transition(ctx, EventReconfigureRequested, m.guard(ctx))
	return err
}

// Run is the control loop. It consumes button events and drives the
// forced-discovery deadline and the periodic connectivity check until ctx
// is done.
func (m *Manager) Run(ctx context.Context, buttons <-chan button.Event) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	connectivity := time.NewTicker(m.connectivityInterval)
	defer connectivity.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-buttons:
			if !ok {
				buttons = nil
				continue
			}
			if ev == button.LongPress {
				if err := m.HandleLongPress(ctx); err != nil {
					logging.Warn("Long press not applied", zap.Error(err))
				}
			}
		case now := <-ticker.C:
			m.Tick(ctx, now)
		case <-connectivity.C:
			m.CheckConnectivity(ctx)
		}
	}
}

func (m *Manager) guard(ctx context.Context) Guard {
	return Guard{
		HasCredentials:      m.rec.HasCredentials(),
		IdentityInitialized: m.rec.CloudInitialized,
		Associated:          m.radio.Associated(ctx),
	}
}

func (m *Manager) enterDiscovery(ctx context.Context) error {
	ap := radio.AccessPoint{
		SSID:     m.identity.DiscoverySSID(),
		Password: m.identity.DiscoveryPassword(),
	}
	return m.radio.EnterDiscoveryMode(ctx, ap)
}

// transition applies ev under g. The caller holds m.mu.
func (m *Manager) transition(ctx context.Context, ev Event, g Guard) (Transition, error) {
	to, ok := Next(m.state, ev, g)
	if !ok {
		return Transition{}, &TransitionError{From: m.state, Event: ev}
	}
	return m.apply(ctx, ev, to), nil
}

func (m *Manager) apply(ctx context.Context, ev Event, to State) Transition {
	t := Transition{From: m.state, To: to, Event: ev, At: m.now()}
	m.state = to
	logging.LogTransition(t.From.String(), t.To.String(), ev.String())
	m.publish(ctx)

	m.observer.ObserveTransition(t)
	m.listenersMu.Lock()
	for _, fn := range m.listeners {
		fn(t)
	}
	m.listenersMu.Unlock()
	return t
}

func (m *Manager) persist() {
	err := m.store.Save(m.rec)
	m.observer.ObservePersist(err)
	if err != nil {
		logging.Error("Failed to persist configuration", zap.Error(err))
	}
}

// publish builds a fresh status snapshot. The caller holds m.mu.
func (m *Manager) publish(ctx context.Context) {
	st := &Status{
		State:        m.state,
		StationID:    m.identity.StationID(),
		Associated:   m.radio.Associated(ctx),
		OwnerID:      m.rec.OwnerID,
		Initialized:  m.rec.CloudInitialized,
		ForcedPortal: m.forcedPortal,
		UpdatedAt:    m.now(),
	}
	if !m.deadline.IsZero() {
		d := m.deadline
		st.ForcedDiscoveryUntil = &d
	}
	if st.Associated {
		if link, err := m.radio.Radio().Link(ctx); err == nil {
			st.SSID = link.SSID
			st.LocalIP = link.IP
		}
	}
	for _, c := range m.rec.Credentials {
		s := SlotSummary{}
		if !c.IsEmpty() {
			s.SSID = c.SSID
			s.HasPassword = c.Password != "" && c.Password != record.NoConfig
		}
		st.Slots = append(st.Slots, s)
	}
	m.status.Store(st)
}
