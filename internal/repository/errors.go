// Package repository implements raw-SQL persistence over MySQL. Each
// repository exposes plain methods for reads and *Tx variants that run
// inside a caller-owned transaction; the ledger service composes the Tx
// variants so every mutation commits or rolls back as one unit. Sentinel
// errors defined here let the ledger layer distinguish failure modes
// without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist. The
// ledger layer wraps it with the resource kind before it reaches
// handlers.
var ErrNotFound = errors.New("not found")

// ErrStale is returned when an optimistic status update matched no row:
// another transaction changed the row first. The ledger layer surfaces
// this as a conflict.
var ErrStale = errors.New("row changed concurrently")

// ErrDuplicate is returned when an insert violates a unique constraint,
// such as an already-registered participant email.
var ErrDuplicate = errors.New("duplicate entry")
