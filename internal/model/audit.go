package model

import (
	"encoding/json"
	"time"
)

// AuditLogEntry is an append-only record of a mutation in the
// `audit_log` table. Entries are never updated or deleted. The Details
// payload is opaque to the ledger; it is stored as JSON and returned
// verbatim to audit consumers.
//
// Fields:
//  ID            – primary key identifier.
//  PerformedByID – participant who performed the action.
//  ActionType    – short verb string (mint_token, split_token, ...).
//  ResourceType  – kind of resource acted on (token, product, ...).
//  ResourceID    – identifier of the resource.
//  Details       – opaque structured payload.
//  Origin        – request origin (client IP), if known.
//  CreatedAt     – when the action happened.
type AuditLogEntry struct {
	ID            uint64          // audit_log.id
	PerformedByID uint64          // audit_log.performed_by_id
	ActionType    string          // audit_log.action_type
	ResourceType  string          // audit_log.resource_type
	ResourceID    uint64          // audit_log.resource_id
	Details       json.RawMessage // audit_log.details (JSON)
	Origin        string          // audit_log.origin
	CreatedAt     time.Time       // audit_log.created_at
}
