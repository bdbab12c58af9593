// Package queue defines message payloads exchanged over the message
// broker and the background consumer for review notifications.
package queue

// WastageFlaggedEvent is published when a wastage log lands in
// pending_review or flagged_for_audit, so lab reviewers can be notified
// without polling the primary database.
type WastageFlaggedEvent struct {
	LogID             uint64 `json:"log_id"`
	OperationType     string `json:"operation_type"`
	WastagePercentage string `json:"wastage_percentage"`
	ApprovalStatus    string `json:"approval_status"`
	CraftsmanID       uint64 `json:"craftsman_id"`
	CraftsmanName     string `json:"craftsman_name"`
	TokenCode         string `json:"token_code,omitempty"`
	LoggedAt          string `json:"logged_at"`
}

// TokenTransferredEvent is published on every custody hand-over so
// downstream consumers can feed notifications and analytics.
type TokenTransferredEvent struct {
	TokenID       uint64 `json:"token_id"`
	TokenCode     string `json:"token_code"`
	Weight        string `json:"weight"`
	FromID        uint64 `json:"from_participant_id"`
	FromName      string `json:"from_name"`
	ToID          uint64 `json:"to_participant_id"`
	ToName        string `json:"to_name"`
	TransferredAt string `json:"transferred_at"`
}
