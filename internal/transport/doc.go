// Package transport implements the single WebSocket connection to the chat
// backend: dial, first-frame authentication, serialized writes, a raw frame
// channel, and transport-level stale detection.
package transport
