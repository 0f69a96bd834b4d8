// Package auth implements the two-step trust bootstrap: the Broker exchanges
// the long-lived master credential for a short-lived, user-scoped token over
// REST, and Store implementations cache issued credentials across reconnects.
package auth
