package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/weatherbird/provisioning/internal/identity"
	"github.com/weatherbird/provisioning/internal/logging"
	"github.com/weatherbird/provisioning/internal/provisioning"
	"github.com/weatherbird/provisioning/internal/radio"
	"go.uber.org/zap"
)

const (
	// DefaultPort is the HTTP port of the configuration surface
	DefaultPort = 80

	// DefaultAPSubnet is the address range of the discovery access point
	DefaultAPSubnet = "10.42.0.0/24"

	// DefaultHomepageURL is where a fully configured station sends visitors
	DefaultHomepageURL = "http://weather.sourceauditor.com"

	// DefaultShutdownTimeout bounds graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second
)

//go:embed templates/*.html
var templateFS embed.FS

// Config holds the server configuration
type Config struct {
	Host string
	Port int

	// APSubnet is the CIDR of the discovery access point network. Requests
	// whose local address falls inside it are treated as arriving over the
	// access point.
	APSubnet string

	HomepageURL     string
	ShutdownTimeout time.Duration
}

// Provisioner is the state machine the handlers drive.
type Provisioner interface {
	Status() *provisioning.Status
	LiveStatus(ctx context.Context) *provisioning.Status
	Identity() identity.Device
	StoreNetwork(ctx context.Context, req provisioning.NetworkRequest) (*provisioning.PendingJoin, error)
	KeepsAccessPoint() bool
	ExitConfiguration(ctx context.Context) error
	ClaimIdentity(ctx context.Context, owner string) error
	CancelIdentity(ctx context.Context) error
	ShowNetworkPage(ctx context.Context) ([]radio.Network, error)
	ShowIdentityPage(ctx context.Context) provisioning.State
	RequestReconfiguration(ctx context.Context) error
	Subscribe(fn func(provisioning.Transition)) (unsubscribe func())
}

// Metrics exposes request measurements. It may be nil.
type Metrics interface {
	Handler() http.Handler
	ObserveHTTP(route string, code int, elapsed time.Duration)
}

// Server serves the configuration pages
type Server struct {
	config  *Config
	prov    Provisioner
	metrics Metrics
	apNet   *net.IPNet
	pages   *template.Template
	hub     *Hub
	handler http.Handler
}

// New creates a Server. metrics may be nil.
func New(config *Config, prov Provisioner, metrics Metrics) (*Server, error) {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.APSubnet == "" {
		config.APSubnet = DefaultAPSubnet
	}
	if config.HomepageURL == "" {
		config.HomepageURL = DefaultHomepageURL
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	_, apNet, err := net.ParseCIDR(config.APSubnet)
	if err != nil {
		return nil, fmt.Errorf("invalid access point subnet %q: %w", config.APSubnet, err)
	}

	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}

	s := &Server{
		config:  config,
		prov:    prov,
		metrics: metrics,
		apNet:   apNet,
		pages:   pages,
		hub:     NewHub(),
	}
	s.handler = s.withRequestLogging(s.routes())
	return s, nil
}

// Handler returns the root handler, including request logging.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the websocket event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)

	unsubscribe := s.prov.Subscribe(func(t provisioning.Transition) {
		s.hub.Broadcast(newTransitionMessage(t, s.prov.Status()))
	})
	defer unsubscribe()

	logging.Info("Configuration server listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("ap_subnet", s.apNet.String()),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info("Shutting down configuration server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		_ = httpServer.Close()
	}
	s.hub.CloseAll()
	return nil
}

// viaAccessPoint reports whether r arrived on the discovery access point.
func (s *Server) viaAccessPoint(r *http.Request) bool {
	addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr)
	if !ok {
		return false
	}
	var ip net.IP
	switch a := addr.(type) {
	case *net.TCPAddr:
		ip = a.IP
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return false
		}
		ip = net.ParseIP(host)
	}
	return ip != nil && s.apNet.Contains(ip)
}
