package provisioning

import "fmt"

// State is the provisioning state of the station. The numeric values are
// reported in status.json and match deployed firmware.
type State int

const (
	NoNetwork State = iota
	ConfiguringNetwork
	NetworkReadyNoIdentity
	ConfiguringIdentity
	IdentityConfigCancelled
	FullyConfigured
	ReconfigurationRequested
	IdentityInitError
)

// AllStates lists every state in numeric order.
var AllStates = []State{
	NoNetwork,
	ConfiguringNetwork,
	NetworkReadyNoIdentity,
	ConfiguringIdentity,
	IdentityConfigCancelled,
	FullyConfigured,
	ReconfigurationRequested,
	IdentityInitError,
}

// String returns the state name
func (s State) String() string {
	switch s {
	case NoNetwork:
		return "NoNetwork"
	case ConfiguringNetwork:
		return "ConfiguringNetwork"
	case NetworkReadyNoIdentity:
		return "NetworkReadyNoIdentity"
	case ConfiguringIdentity:
		return "ConfiguringIdentity"
	case IdentityConfigCancelled:
		return "IdentityConfigCancelled"
	case FullyConfigured:
		return "FullyConfigured"
	case ReconfigurationRequested:
		return "ReconfigurationRequested"
	case IdentityInitError:
		return "IdentityInitError"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is an input to the transition function.
type Event int

const (
	EventInit Event = iota
	EventNetworkJoined
	EventClaimSucceeded
	EventClaimFailed
	EventClaimCancelled
	EventLongPress
	EventDiscoveryExpired
	EventConnectivityLost
	EventExitConfiguration
	EventNetworkPageShown
	EventIdentityPageShown
	EventReconfigureRequested
)

// AllEvents lists every event.
var AllEvents = []Event{
	EventInit,
	EventNetworkJoined,
	EventClaimSucceeded,
	EventClaimFailed,
	EventClaimCancelled,
	EventLongPress,
	EventDiscoveryExpired,
	EventConnectivityLost,
	EventExitConfiguration,
	EventNetworkPageShown,
	EventIdentityPageShown,
	EventReconfigureRequested,
}

// String returns the event name
func (e Event) String() string {
	switch e {
	case EventInit:
		return "init"
	case EventNetworkJoined:
		return "network-joined"
	case EventClaimSucceeded:
		return "claim-succeeded"
	case EventClaimFailed:
		return "claim-failed"
	case EventClaimCancelled:
		return "claim-cancelled"
	case EventLongPress:
		return "long-press"
	case EventDiscoveryExpired:
		return "discovery-expired"
	case EventConnectivityLost:
		return "connectivity-lost"
	case EventExitConfiguration:
		return "exit-configuration"
	case EventNetworkPageShown:
		return "network-page-shown"
	case EventIdentityPageShown:
		return "identity-page-shown"
	case EventReconfigureRequested:
		return "reconfigure-requested"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Guard carries the facts a transition may depend on.
type Guard struct {
	// HasCredentials: at least one credential slot is usable
	HasCredentials bool
	// Connected: the association attempt tied to this event succeeded
	Connected bool
	// IdentityInitialized: the cloud identity has been claimed
	IdentityInitialized bool
	// Associated: the interface reports a live association right now
	Associated bool
}

func (g Guard) ready() State {
	if g.IdentityInitialized {
		return FullyConfigured
	}
	return NetworkReadyNoIdentity
}

func in(s State, set ...State) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

// Next is the transition table. It reports false, with from unchanged, when
// the event is not allowed in from under g. The result depends only on its
// arguments.
func Next(from State, ev Event, g Guard) (State, bool) {
	switch ev {
	case EventInit:
		if g.HasCredentials && g.Connected {
			return g.ready(), true
		}
		return NoNetwork, true

	case EventNetworkJoined:
		if !in(from, NoNetwork, ConfiguringNetwork) {
			return from, false
		}
		if !g.Connected {
			return ConfiguringNetwork, true
		}
		return g.ready(), true

	case EventClaimSucceeded:
		if in(from, NetworkReadyNoIdentity, FullyConfigured, IdentityInitError, ConfiguringIdentity) {
			return FullyConfigured, true
		}

	case EventClaimFailed:
		if in(from, NetworkReadyNoIdentity, ConfiguringIdentity, IdentityInitError) {
			return IdentityInitError, true
		}

	case EventClaimCancelled:
		if from == ConfiguringIdentity {
			return IdentityConfigCancelled, true
		}

	case EventLongPress:
		return ConfiguringNetwork, true

	case EventDiscoveryExpired:
		return g.ready(), true

	case EventConnectivityLost:
		if from != NoNetwork && !g.Associated {
			return NoNetwork, true
		}

	case EventExitConfiguration:
		if in(from, NoNetwork, ConfiguringNetwork) && g.Associated {
			return NetworkReadyNoIdentity, true
		}

	case EventNetworkPageShown:
		if in(from, NoNetwork, ConfiguringNetwork) {
			return ConfiguringNetwork, true
		}

	case EventIdentityPageShown:
		if in(from, NetworkReadyNoIdentity, ConfiguringIdentity, ReconfigurationRequested, IdentityInitError) {
			return ConfiguringIdentity, true
		}

	case EventReconfigureRequested:
		if from == FullyConfigured {
			return ReconfigurationRequested, true
		}
	}
	return from, false
}
