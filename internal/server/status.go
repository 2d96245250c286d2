package server

import (
	"time"

	"github.com/weatherbird/provisioning/internal/provisioning"
)

// StatusDocument is the body of GET /status.json.
type StatusDocument struct {
	ID                   string         `json:"id"`
	State                int            `json:"state"`
	StateName            string         `json:"stateName"`
	SSID                 string         `json:"ssid"`
	LocalIP              string         `json:"localIp"`
	Associated           bool           `json:"associated"`
	ForcedDiscoveryUntil *time.Time     `json:"forcedDiscoveryUntil"`
	Config               ConfigDocument `json:"config"`
}

// ConfigDocument is the non-secret part of the configuration record.
type ConfigDocument struct {
	OwnerID     string         `json:"ownerId"`
	Initialized bool           `json:"initialized"`
	Slots       []SlotDocument `json:"slots"`
}

// SlotDocument describes one credential slot.
type SlotDocument struct {
	SSID        string `json:"ssid"`
	HasPassword bool   `json:"hasPassword"`
}

// NewStatusDocument converts a status snapshot.
func NewStatusDocument(st *provisioning.Status) StatusDocument {
	doc := StatusDocument{
		ID:                   st.StationID,
		State:                int(st.State),
		StateName:            st.State.String(),
		SSID:                 st.SSID,
		LocalIP:              st.LocalIP,
		Associated:           st.Associated,
		ForcedDiscoveryUntil: st.ForcedDiscoveryUntil,
		Config: ConfigDocument{
			OwnerID:     st.OwnerID,
			Initialized: st.Initialized,
			Slots:       make([]SlotDocument, 0, len(st.Slots)),
		},
	}
	for _, slot := range st.Slots {
		doc.Config.Slots = append(doc.Config.Slots, SlotDocument{SSID: slot.SSID, HasPassword: slot.HasPassword})
	}
	return doc
}

// EventMessage is pushed to websocket clients.
type EventMessage struct {
	Type       string                   `json:"type"`
	Transition *provisioning.Transition `json:"transition,omitempty"`
	Status     StatusDocument           `json:"status"`
}

// Event message types.
const (
	EventTypeSnapshot   = "snapshot"
	EventTypeTransition = "transition"
)

func newTransitionMessage(t provisioning.Transition, st *provisioning.Status) EventMessage {
	return EventMessage{Type: EventTypeTransition, Transition: &t, Status: NewStatusDocument(st)}
}

func newSnapshotMessage(st *provisioning.Status) EventMessage {
	return EventMessage{Type: EventTypeSnapshot, Status: NewStatusDocument(st)}
}
