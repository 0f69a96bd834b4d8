// Package model defines the domain types shared across the client: the
// credential issued by the exchange endpoint, messages, containers (rooms
// and conversations), and presence entries.
package model
