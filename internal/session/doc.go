// Package session implements the real-time session core.
//
// The Session owns the single connection's lifecycle:
//   - at most one live transport per session, enforced by the state machine
//   - a dispatch loop per connection instance, reducing decoded events into
//     the state store one at a time, in delivery order
//   - exactly one pending reconnect timer after a transient loss; a rejected
//     handshake is never auto-retried
//   - an application-level keepalive probe while connected
//   - a command gateway that rejects outbound requests synchronously while
//     not connected
package session
