// Package state holds the derived client collections and the reconciliation
// rules that keep them consistent under an out-of-order, possibly duplicated
// event stream: snapshots replace wholesale, history batches replace one
// container's subset, pushed messages upsert by id.
package state
