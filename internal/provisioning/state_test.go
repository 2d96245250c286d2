package provisioning

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_Table(t *testing.T) {
	none := Guard{}
	connected := Guard{HasCredentials: true, Connected: true}
	connectedID := Guard{HasCredentials: true, Connected: true, IdentityInitialized: true}

	tests := []struct {
		name  string
		from  State
		event Event
		guard Guard
		want  State
		ok    bool
	}{
		{"boot claimed", NoNetwork, EventInit, connectedID, FullyConfigured, true},
		{"boot unclaimed", NoNetwork, EventInit, connected, NetworkReadyNoIdentity, true},
		{"boot no credentials", NoNetwork, EventInit, Guard{Connected: true}, NoNetwork, true},
		{"boot connect failed", NoNetwork, EventInit, Guard{HasCredentials: true}, NoNetwork, true},

		{"join from no network", NoNetwork, EventNetworkJoined, connected, NetworkReadyNoIdentity, true},
		{"join while configuring, claimed", ConfiguringNetwork, EventNetworkJoined, connectedID, FullyConfigured, true},
		{"join failed", NoNetwork, EventNetworkJoined, none, ConfiguringNetwork, true},
		{"join from configured", FullyConfigured, EventNetworkJoined, connected, FullyConfigured, false},

		{"claim ok from ready", NetworkReadyNoIdentity, EventClaimSucceeded, none, FullyConfigured, true},
		{"claim ok from configured", FullyConfigured, EventClaimSucceeded, none, FullyConfigured, true},
		{"claim ok from error", IdentityInitError, EventClaimSucceeded, none, FullyConfigured, true},
		{"claim ok from configuring", ConfiguringIdentity, EventClaimSucceeded, none, FullyConfigured, true},
		{"claim ok from no network", NoNetwork, EventClaimSucceeded, none, NoNetwork, false},
		{"claim ok from cancelled", IdentityConfigCancelled, EventClaimSucceeded, none, IdentityConfigCancelled, false},

		{"claim failed from ready", NetworkReadyNoIdentity, EventClaimFailed, none, IdentityInitError, true},
		{"claim failed from configuring", ConfiguringIdentity, EventClaimFailed, none, IdentityInitError, true},
		{"claim failed again", IdentityInitError, EventClaimFailed, none, IdentityInitError, true},
		{"claim failed from configured", FullyConfigured, EventClaimFailed, none, FullyConfigured, false},

		{"cancel", ConfiguringIdentity, EventClaimCancelled, none, IdentityConfigCancelled, true},
		{"cancel from ready", NetworkReadyNoIdentity, EventClaimCancelled, none, NetworkReadyNoIdentity, false},

		{"lost", FullyConfigured, EventConnectivityLost, none, NoNetwork, true},
		{"lost but associated", FullyConfigured, EventConnectivityLost, Guard{Associated: true}, FullyConfigured, false},
		{"lost from no network", NoNetwork, EventConnectivityLost, none, NoNetwork, false},

		{"exit associated", ConfiguringNetwork, EventExitConfiguration, Guard{Associated: true}, NetworkReadyNoIdentity, true},
		{"exit unassociated", ConfiguringNetwork, EventExitConfiguration, none, ConfiguringNetwork, false},
		{"exit from no network", NoNetwork, EventExitConfiguration, Guard{Associated: true}, NetworkReadyNoIdentity, true},
		{"exit when configured", FullyConfigured, EventExitConfiguration, Guard{Associated: true}, FullyConfigured, false},
		{"exit after reconfigure", ReconfigurationRequested, EventExitConfiguration, Guard{Associated: true}, ReconfigurationRequested, false},

		{"network page", NoNetwork, EventNetworkPageShown, none, ConfiguringNetwork, true},
		{"network page when configured", FullyConfigured, EventNetworkPageShown, none, FullyConfigured, false},

		{"identity page", NetworkReadyNoIdentity, EventIdentityPageShown, none, ConfiguringIdentity, true},
		{"identity page after reconfigure", ReconfigurationRequested, EventIdentityPageShown, none, ConfiguringIdentity, true},
		{"identity page after error", IdentityInitError, EventIdentityPageShown, none, ConfiguringIdentity, true},
		{"identity page without network", NoNetwork, EventIdentityPageShown, none, NoNetwork, false},

		{"reconfigure", FullyConfigured, EventReconfigureRequested, none, ReconfigurationRequested, true},
		{"reconfigure unclaimed", NetworkReadyNoIdentity, EventReconfigureRequested, none, NetworkReadyNoIdentity, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Next(tt.from, tt.event, tt.guard)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext_LongPressAlwaysConfiguresNetwork(t *testing.T) {
	for _, s := range AllStates {
		got, ok := Next(s, EventLongPress, Guard{})
		require.True(t, ok, s.String())
		assert.Equal(t, ConfiguringNetwork, got, s.String())
	}
}

func TestNext_DiscoveryExpiryFollowsIdentity(t *testing.T) {
	for _, s := range AllStates {
		got, ok := Next(s, EventDiscoveryExpired, Guard{})
		require.True(t, ok)
		assert.Equal(t, NetworkReadyNoIdentity, got)

		got, ok = Next(s, EventDiscoveryExpired, Guard{IdentityInitialized: true})
		require.True(t, ok)
		assert.Equal(t, FullyConfigured, got)
	}
}

// A random walk never sees the same (state, event, guard) map to two
// different results.
func TestNext_DependsOnlyOnCurrentState(t *testing.T) {
	type key struct {
		from  State
		event Event
		guard Guard
	}
	type result struct {
		to State
		ok bool
	}

	rng := rand.New(rand.NewPCG(1, 2))
	seen := make(map[key]result)
	state := NoNetwork

	for i := 0; i < 20000; i++ {
		k := key{
			from:  state,
			event: AllEvents[rng.IntN(len(AllEvents))],
			guard: Guard{
				HasCredentials:      rng.IntN(2) == 0,
				Connected:           rng.IntN(2) == 0,
				IdentityInitialized: rng.IntN(2) == 0,
				Associated:          rng.IntN(2) == 0,
			},
		}
		to, ok := Next(k.from, k.event, k.guard)
		if prev, found := seen[k]; found {
			require.Equal(t, prev, result{to, ok}, "step %d: %+v", i, k)
		}
		seen[k] = result{to, ok}
		if !ok {
			assert.Equal(t, k.from, to, "rejected event must not change state")
		}
		state = to
	}

	assert.Greater(t, len(seen), len(AllStates)*len(AllEvents))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "IdentityInitError", IdentityInitError.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.Equal(t, 7, int(IdentityInitError))
	assert.Equal(t, "exit-configuration", EventExitConfiguration.String())
	assert.Equal(t, "Event(99)", Event(99).String())
}

func TestErrors(t *testing.T) {
	err := error(&TransitionError{From: NoNetwork, Event: EventClaimSucceeded})
	assert.True(t, IsTransitionError(err))
	assert.False(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "claim-succeeded not allowed in state NoNetwork")

	err = &ValidationError{Field: "slot", Message: "out of range"}
	assert.True(t, IsValidationError(err))
	assert.Equal(t, "invalid slot: out of range", err.Error())

	assert.True(t, IsClaimError(&ClaimError{Err: assert.AnError}))
}
