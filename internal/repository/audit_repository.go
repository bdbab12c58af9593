package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/auriclabs/goldledger/internal/model"
)

// AuditRepo appends to and reads the immutable audit log. The table has
// no update or delete path.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Insert appends one audit entry. Callers treat failures as best-effort:
// the primary operation has already committed and must not be rolled
// back because logging failed.
func (r *AuditRepo) Insert(ctx context.Context, e *model.AuditLogEntry) error {
	details := e.Details
	if details == nil {
		details = json.RawMessage(`{}`)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (performed_by_id, action_type, resource_type, resource_id, details, origin)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.PerformedByID, e.ActionType, e.ResourceType, e.ResourceID, string(details), e.Origin)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// Tail returns the most recent entries, newest first, capped at limit.
func (r *AuditRepo) Tail(ctx context.Context, limit int) ([]model.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, performed_by_id, action_type, resource_type, resource_id, details, origin, created_at
		 FROM audit_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AuditLogEntry, 0, limit)
	for rows.Next() {
		var e model.AuditLogEntry
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.PerformedByID, &e.ActionType, &e.ResourceType, &e.ResourceID,
			&details, &e.Origin, &e.CreatedAt); err != nil {
			return nil, err
		}
		if details.Valid {
			e.Details = json.RawMessage(details.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
