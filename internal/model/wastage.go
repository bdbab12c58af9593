package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wastage approval statuses. auto_approved, approved and rejected are
// terminal; a log in a terminal state can never be re-processed.
const (
	WastageAutoApproved    = "auto_approved"
	WastagePendingReview   = "pending_review"
	WastageFlaggedForAudit = "flagged_for_audit"
	WastageApproved        = "approved"
	WastageRejected        = "rejected"
)

// Operation types a wastage log or threshold row may reference.
const (
	OpCasting  = "casting"
	OpHandmade = "handmade"
	OpFiligree = "filigree"
	OpSplit    = "split"
	OpMerge    = "merge"
	OpOther    = "other"
)

// ValidOperationType reports whether s names a known wastage operation.
func ValidOperationType(s string) bool {
	switch s {
	case OpCasting, OpHandmade, OpFiligree, OpSplit, OpMerge, OpOther:
		return true
	}
	return false
}

// WastageLog records an expected-vs-actual weight delta in the
// `wastage_logs` table. The derived weight and percentage are persisted
// so that threshold policy changes never reclassify historical logs.
//
// Fields:
//  ID                – primary key identifier.
//  TokenID           – token the operation worked on (nullable).
//  OperationType     – one of the Op* constants.
//  ExpectedWeight    – grams expected after the operation.
//  ActualWeight      – grams actually measured.
//  WastageWeight     – expected − actual.
//  WastagePercentage – wastage / expected × 100.
//  CraftsmanID       – participant who performed the physical work.
//  ApprovalStatus    – one of the Wastage* status constants.
//  ApprovedByID      – approver (nullable until decided).
//  ApprovalNotes     – reviewer notes.
//  ApprovedAt        – decision timestamp (nullable).
//  CreatedAt         – when the log was submitted.
type WastageLog struct {
	ID                uint64          // wastage_logs.id
	TokenID           *uint64         // wastage_logs.token_id (nullable)
	OperationType     string          // wastage_logs.operation_type
	ExpectedWeight    decimal.Decimal // wastage_logs.expected_weight
	ActualWeight      decimal.Decimal // wastage_logs.actual_weight
	WastageWeight     decimal.Decimal // wastage_logs.wastage_weight
	WastagePercentage decimal.Decimal // wastage_logs.wastage_percentage
	CraftsmanID       uint64          // wastage_logs.craftsman_id
	ApprovalStatus    string          // wastage_logs.approval_status
	ApprovedByID      *uint64         // wastage_logs.approved_by_id (nullable)
	ApprovalNotes     string          // wastage_logs.approval_notes
	ApprovedAt        *time.Time      // wastage_logs.approved_at (nullable)
	CreatedAt         time.Time       // wastage_logs.created_at
}

// Decided reports whether the log is in a terminal approval state.
func (w *WastageLog) Decided() bool {
	switch w.ApprovalStatus {
	case WastageAutoApproved, WastageApproved, WastageRejected:
		return true
	}
	return false
}

// WastageThreshold is the per-operation approval policy in the
// `wastage_thresholds` table. Invariant:
// review_required_max >= auto_approve_max >= 0. The engine reads the row
// on every log event so admin changes take effect immediately.
//
// Fields:
//  ID                – primary key identifier.
//  OperationType     – operation the policy applies to, unique.
//  AutoApproveMax    – percentage at or below which wastage is
//                      auto-approved.
//  ReviewRequiredMax – percentage at or below which wastage goes to lab
//                      review; above it the log is flagged for audit.
//  UpdatedByID       – admin who last changed the row (nullable).
//  UpdatedAt         – timestamp of last change.
type WastageThreshold struct {
	ID                uint64          // wastage_thresholds.id
	OperationType     string          // wastage_thresholds.operation_type
	AutoApproveMax    decimal.Decimal // wastage_thresholds.auto_approve_max
	ReviewRequiredMax decimal.Decimal // wastage_thresholds.review_required_max
	UpdatedByID       *uint64         // wastage_thresholds.updated_by_id (nullable)
	UpdatedAt         time.Time       // wastage_thresholds.updated_at
}
