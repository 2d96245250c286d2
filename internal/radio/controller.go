package radio

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/weatherbird/provisioning/internal/logging"
	"github.com/weatherbird/provisioning/internal/record"
	"go.uber.org/zap"
)

// Config holds the association policy.
type Config struct {
	// Rounds is how many passes over the candidate list Connect makes.
	// Default: 10
	Rounds int

	// RoundDelay is the pause after a failed round.
	// Default: 3 seconds
	RoundDelay time.Duration

	// JoinPolls and JoinPollInterval bound JoinOnce.
	// Default: 5 polls, 500ms apart
	JoinPolls        int
	JoinPollInterval time.Duration

	// MaxChannel is the highest channel the access point may pick.
	// Default: 11
	MaxChannel int
}

// DefaultConfig returns the stock association policy.
func DefaultConfig() Config {
	return Config{
		Rounds:           10,
		RoundDelay:       3 * time.Second,
		JoinPolls:        5,
		JoinPollInterval: 500 * time.Millisecond,
		MaxChannel:       11,
	}
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ConnectResult reports the outcome of Connect.
type ConnectResult struct {
	Connected bool
	Rounds    int
	SSID      string
	Elapsed   time.Duration
}

// Controller applies the association policy to a radio.
type Controller struct {
	radio  Interface
	config Config
	logger *zap.Logger

	// suspended is set when starting the access point cost an association
	// that EnterClientMode must restore. Callers serialize mode changes.
	suspended bool

	// Sleep and Intn are replaceable so tests run without real delays.
	Sleep Sleeper
	Intn  func(n int) int
}

// maxAPChannel is the highest 2.4 GHz channel the access point can share.
const maxAPChannel = 14

// NewController creates a controller. A nil logger uses the package logger.
func NewController(radio Interface, config Config, logger *zap.Logger) *Controller {
	def := DefaultConfig()
	if config.Rounds <= 0 {
		config.Rounds = def.Rounds
	}
	if config.RoundDelay < 0 {
		config.RoundDelay = def.RoundDelay
	}
	if config.JoinPolls <= 0 {
		config.JoinPolls = def.JoinPolls
	}
	if config.JoinPollInterval <= 0 {
		config.JoinPollInterval = def.JoinPollInterval
	}
	if config.MaxChannel <= 0 {
		config.MaxChannel = def.MaxChannel
	}
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Controller{
		radio:  radio,
		config: config,
		logger: logger,
		Sleep:  ContextSleep,
		Intn:   rand.IntN,
	}
}

// Radio returns the underlying interface.
func (c *Controller) Radio() Interface {
	return c.radio
}

// KeepsAccessPoint reports whether the access point survives joining a
// network.
func (c *Controller) KeepsAccessPoint() bool {
	ca, ok := c.radio.(ConcurrentAP)
	return ok && ca.ConcurrentAP()
}

// Associated reports live association.
func (c *Controller) Associated(ctx context.Context) bool {
	return c.radio.Associated(ctx)
}

// Connect tries every candidate in order, round after round, until one
// associates or the rounds run out. It blocks for up to Rounds × RoundDelay.
func (c *Controller) Connect(ctx context.Context, candidates []record.Credential) ConnectResult {
	start := time.Now()
	usable := make([]record.Credential, 0, len(candidates))
	for _, cred := range candidates {
		if !cred.IsEmpty() {
			usable = append(usable, cred)
		}
	}

	if len(usable) == 0 {
		c.logger.Info("No stored networks to connect to")
		return ConnectResult{Elapsed: time.Since(start)}
	}

	for round := 1; round <= c.config.Rounds; round++ {
		for _, cred := range usable {
			if err := c.radio.Join(ctx, cred); err != nil {
				c.logger.Debug("join attempt failed",
					zap.Int("round", round),
					zap.String("ssid", cred.SSID),
					zap.Error(err),
				)
				continue
			}
			if c.radio.Associated(ctx) {
				c.logger.Info("Connected",
					zap.String("ssid", cred.SSID),
					zap.Int("round", round),
				)
				return ConnectResult{Connected: true, Rounds: round, SSID: cred.SSID, Elapsed: time.Since(start)}
			}
		}

		if round == c.config.Rounds {
			break
		}
		if err := c.Sleep(ctx, c.config.RoundDelay); err != nil {
			return ConnectResult{Rounds: round, Elapsed: time.Since(start)}
		}
	}

	c.logger.Warn("Could not connect to any stored network",
		zap.Int("rounds", c.config.Rounds),
		zap.Int("candidates", len(usable)),
	)
	return ConnectResult{Rounds: c.config.Rounds, Elapsed: time.Since(start)}
}

// JoinOnce makes a single association attempt for a newly submitted
// credential and polls for the result.
func (c *Controller) JoinOnce(ctx context.Context, cred record.Credential) bool {
	if cred.IsEmpty() {
		return false
	}
	if err := c.radio.Join(ctx, cred); err != nil {
		c.logger.Info("Join failed", zap.String("ssid", cred.SSID), zap.Error(err))
		return false
	}
	for i := 0; i < c.config.JoinPolls; i++ {
		if c.radio.Associated(ctx) {
			return true
		}
		if err := c.Sleep(ctx, c.config.JoinPollInterval); err != nil {
			return false
		}
	}
	return c.radio.Associated(ctx)
}

// EnterDiscoveryMode starts the station's access point. A radio that keeps
// the access point alongside the client stays associated and hosts it on the
// client's channel. Otherwise the association is dropped for the access
// point's lifetime and restored by EnterClientMode.
func (c *Controller) EnterDiscoveryMode(ctx context.Context, ap AccessPoint) error {
	ap.Channel = c.Intn(c.config.MaxChannel) + 1

	concurrent := c.KeepsAccessPoint()
	was := false
	if concurrent {
		if link, err := c.radio.Link(ctx); err == nil {
			was = true
			if link.Channel > 0 && link.Channel <= maxAPChannel {
				ap.Channel = link.Channel
			}
		}
	} else if c.disconnectIfAssociated(ctx) {
		c.suspended = true
	}

	if err := c.radio.SetMode(ctx, ModeDiscovery); err != nil {
		return err
	}
	if err := c.radio.StartAccessPoint(ctx, ap); err != nil {
		return err
	}
	c.logger.Info("Discovery access point started",
		zap.String("ssid", ap.SSID),
		zap.Int("channel", ap.Channel),
		zap.Bool("concurrent", concurrent),
	)

	// The radio may have fallen back to hosting the access point on the
	// client interface.
	if was && !c.radio.Associated(ctx) {
		c.suspended = true
	}
	if c.suspended {
		c.logger.Warn("Client association suspended while the access point is up")
	}
	return nil
}

// EnterClientMode stops the access point. On a radio without a separate
// access point interface the client is reset first. An association that
// existed before, or that discovery mode suspended, is restored afterwards.
func (c *Controller) EnterClientMode(ctx context.Context, candidates []record.Credential) error {
	was := c.suspended
	c.suspended = false
	if !c.KeepsAccessPoint() && c.disconnectIfAssociated(ctx) {
		was = true
	}

	if err := c.radio.SetMode(ctx, ModeClient); err != nil {
		return err
	}
	c.logger.Info("Client mode")

	if was {
		c.Connect(ctx, candidates)
	}
	return nil
}

// ScanNetworks lists visible networks strongest first.
func (c *Controller) ScanNetworks(ctx context.Context) ([]Network, error) {
	networks, err := c.radio.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return SortBySignal(networks), nil
}

func (c *Controller) disconnectIfAssociated(ctx context.Context) bool {
	if !c.radio.Associated(ctx) {
		return false
	}
	if err := c.radio.Disconnect(ctx); err != nil {
		c.logger.Warn("Disconnect failed", zap.Error(err))
	}
	return true
}
