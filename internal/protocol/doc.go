// Package protocol defines the wire catalog for the real-time channel:
// inbound server events decoded into a tagged union, and outbound commands.
//
// Frames are JSON envelopes {"event": <name>, "data": {...}} in both
// directions. Two dialects share the catalog: the canonical room-based
// addressing scheme and a legacy direct (user-to-user) scheme. Decoding
// accepts both payload shapes; command construction takes the dialect
// explicitly.
package protocol
