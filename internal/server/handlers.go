package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/weatherbird/provisioning/internal/logging"
	"github.com/weatherbird/provisioning/internal/provisioning"
	"github.com/weatherbird/provisioning/internal/radio"
	"go.uber.org/zap"
)

// HeaderConnectionStatus reports the outcome of a network submission.
const HeaderConnectionStatus = "X-Connection-Status"

// NetworkSubmission is the POST /confignetwork body. Nil fields were absent.
type NetworkSubmission struct {
	Slot     *int    `json:"slot"`
	SSID     *string `json:"ssid"`
	Password *string `json:"password"`
	Exit     bool    `json:"exit"`
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /network", s.handleNetworkPage)
	mux.HandleFunc("POST /confignetwork", s.handleConfigNetwork)
	mux.HandleFunc("GET /identity", s.handleIdentityPage)
	mux.HandleFunc("GET /userloggedin.html", s.handleUserLoggedIn)
	mux.HandleFunc("GET /cancel.html", s.handleCancel)
	mux.HandleFunc("POST /reconfigure", s.handleReconfigure)
	mux.HandleFunc("GET /status.json", s.handleStatus)
	mux.HandleFunc("GET /deviceinitializing.html", s.handleDeviceInitializing)
	mux.HandleFunc("GET /test", s.handleTest)
	mux.HandleFunc("GET /events", s.handleEvents)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.HandleFunc("/", s.handleNotFound)
	return mux
}

// opContext keeps the request values but not its cancellation. An
// association attempt runs to completion even if the client goes away.
func opContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// identityState reports whether st may show the owner sign-in page.
func identityState(st provisioning.State) bool {
	switch st {
	case provisioning.NetworkReadyNoIdentity,
		provisioning.ConfiguringIdentity,
		provisioning.ReconfigurationRequested,
		provisioning.IdentityInitError:
		return true
	}
	return false
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	st := s.prov.LiveStatus(r.Context())
	viaAP := s.viaAccessPoint(r)

	switch {
	case !st.Associated || st.ForcedPortal ||
		st.State == provisioning.NoNetwork || st.State == provisioning.ConfiguringNetwork:
		http.Redirect(w, r, "/network", http.StatusFound)
	case viaAP:
		s.renderConnect(w, st)
	case identityState(st.State):
		http.Redirect(w, r, "/identity", http.StatusFound)
	default:
		http.Redirect(w, r, s.config.HomepageURL, http.StatusFound)
	}
}

type networkPage struct {
	StationID string
	Networks  []radio.Network
	Slots     []provisioning.SlotSummary
}

func (s *Server) handleNetworkPage(w http.ResponseWriter, r *http.Request) {
	networks, err := s.prov.ShowNetworkPage(opContext(r))
	if err != nil {
		logging.Warn("Network scan failed", zap.Error(err))
	}
	st := s.prov.Status()
	s.render(w, http.StatusOK, "network.html", networkPage{
		StationID: st.StationID,
		Networks:  networks,
		Slots:     st.Slots,
	})
}

func (s *Server) handleConfigNetwork(w http.ResponseWriter, r *http.Request) {
	var sub NetworkSubmission
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	if err := dec.Decode(&sub); err != nil {
		writeText(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return
	}

	if sub.Exit {
		if err := s.prov.ExitConfiguration(opContext(r)); err != nil {
			s.writeError(w, err)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	join, err := s.prov.StoreNetwork(opContext(r), provisioning.NetworkRequest{
		Slot:     sub.Slot,
		SSID:     sub.SSID,
		Password: sub.Password,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if join == nil {
		w.Header().Set(HeaderConnectionStatus, string(provisioning.ConnectionUnchanged))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if s.prov.KeepsAccessPoint() {
		status, err := join.Run(opContext(r))
		if err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set(HeaderConnectionStatus, string(status))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// The join takes the access point down, so the reply goes out first.
	w.Header().Set(HeaderConnectionStatus, string(provisioning.ConnectionPending))
	w.WriteHeader(http.StatusNoContent)
	if err := http.NewResponseController(w).Flush(); err != nil {
		logging.Debug("Flush before join failed", zap.Error(err))
	}
	status, err := join.Run(opContext(r))
	logging.Info("Submitted network joined after reply",
		zap.String("ssid", join.SSID()),
		zap.String("status", string(status)),
		zap.Error(err),
	)
}

func (s *Server) handleIdentityPage(w http.ResponseWriter, r *http.Request) {
	st := s.prov.Status()
	switch {
	case identityState(st.State):
		if s.viaAccessPoint(r) {
			s.renderConnect(w, st)
			return
		}
		s.prov.ShowIdentityPage(opContext(r))
		s.render(w, http.StatusOK, "identity.html", s.prov.Identity())
	case st.State == provisioning.FullyConfigured:
		s.renderMessage(w, http.StatusOK, "Weather station has already been configured. Press the reconfigure button to change the owner.")
	default:
		s.renderMessage(w, http.StatusOK, "Complete the WiFi configuration before signing in.")
	}
}

func (s *Server) handleUserLoggedIn(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("uid")
	if err := s.prov.ClaimIdentity(opContext(r), owner); err != nil {
		s.writeError(w, err)
		return
	}
	if owner == "" {
		s.renderMessage(w, http.StatusOK, "Sign-in cancelled. The station is connected but has no owner.")
		return
	}
	s.renderMessage(w, http.StatusOK, "Weather station registered. You can close this page.")
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.prov.CancelIdentity(opContext(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.renderMessage(w, http.StatusOK, "Sign-in cancelled. The station is connected but has no owner.")
}

func (s *Server) handleReconfigure(w http.ResponseWriter, r *http.Request) {
	if err := s.prov.RequestReconfiguration(opContext(r)); err != nil {
		s.writeError(w, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewStatusDocument(s.prov.LiveStatus(r.Context())))
}

func (s *Server) handleDeviceInitializing(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusOK, "initializing.html", s.prov.Identity())
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	if s.viaAccessPoint(r) {
		writeText(w, http.StatusOK, "Hello from AP")
		return
	}
	writeText(w, http.StatusOK, "Hello from STA")
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusNotFound, "Page not found")
}

// writeError maps provisioning errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		verr *provisioning.ValidationError
		terr *provisioning.TransitionError
		cerr *provisioning.ClaimError
	)
	switch {
	case errors.As(err, &verr):
		writeText(w, http.StatusUnprocessableEntity, verr.Error())
	case errors.As(err, &terr):
		writeText(w, http.StatusConflict, terr.Error())
	case errors.As(err, &cerr):
		s.renderMessage(w, http.StatusBadGateway, "Registration with the weather service failed. Please try again.")
	default:
		logging.Error("Request failed", zap.Error(err))
		writeText(w, http.StatusInternalServerError, "internal error")
	}
}

type connectPage struct {
	Associated bool
	SSID       string
	LocalIP    string
}

func (s *Server) renderConnect(w http.ResponseWriter, st *provisioning.Status) {
	s.render(w, http.StatusOK, "connect.html", connectPage{
		Associated: st.Associated,
		SSID:       st.SSID,
		LocalIP:    st.LocalIP,
	})
}

func (s *Server) renderMessage(w http.ResponseWriter, code int, msg string) {
	s.render(w, code, "message.html", msg)
}

func (s *Server) render(w http.ResponseWriter, code int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		logging.Error("Failed to render page", zap.String("page", name), zap.Error(err))
	}
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(msg))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode response", zap.Error(err))
	}
}
