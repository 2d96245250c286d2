// Package server implements the station's configuration web surface.
//
// The server is reachable on two networks at once: the station's own
// discovery access point and, once joined, the home network. Several pages
// behave differently depending on which one a request arrived on, so every
// handler classifies the request by its local address against the
// configured access point subnet.
//
// # Routes
//
//	GET  /                         route to the page the current state needs
//	GET  /network                  network configuration page (scan results + slots)
//	POST /confignetwork            store a credential slot or exit configuration
//	GET  /identity                 owner sign-in page
//	GET  /userloggedin.html?uid=   claim the cloud identity for uid (empty uid cancels)
//	GET  /cancel.html              cancel the identity form
//	POST /reconfigure              allow a configured station to be claimed again
//	GET  /status.json              status document (never contains secrets)
//	GET  /deviceinitializing.html  waiting page polled while the claim runs
//	GET  /test                     reports which network the request came in on
//	GET  /events                   websocket stream of state transitions
//	GET  /metrics                  Prometheus exposition, when metrics are enabled
//
// # Error mapping
//
// Handlers translate provisioning errors to status codes: malformed JSON is
// 400, a ValidationError is 422, a TransitionError is 409 and a failed remote
// claim is 502. No state is changed on any 4xx reply.
//
// # Network submissions
//
// A successful POST /confignetwork replies 204 and reports the association
// attempt in the X-Connection-Status header as Success, Failed or Unchanged.
//
// # Events
//
// Every transition is pushed to connected websocket clients as a JSON
// EventMessage. A client receives the current status immediately on connect.
// Slow clients are dropped rather than allowed to block the state machine.
package server
