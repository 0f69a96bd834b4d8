// Package archive implements the optional client-side transcript writer: it
// consumes the session's message feed and batch-upserts rows into Postgres
// for audit. The session core has no dependency on it.
package archive
