package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auriclabs/goldledger/internal/model"
)

// WastageRepo provides persistence for wastage logs and the per-operation
// approval thresholds. Decisions use an optimistic status check so a log
// can only ever be decided once.
type WastageRepo struct {
	db *sql.DB
}

// NewWastageRepo returns a new WastageRepo bound to the given database.
func NewWastageRepo(db *sql.DB) *WastageRepo { return &WastageRepo{db: db} }

const wastageCols = `id, token_id, operation_type, expected_weight, actual_weight, wastage_weight, wastage_percentage,
	craftsman_id, approval_status, approved_by_id, approval_notes, approved_at, created_at`

func scanWastage(row interface{ Scan(...interface{}) error }) (*model.WastageLog, error) {
	var w model.WastageLog
	var tokenID, approvedBy sql.NullInt64
	var notes sql.NullString
	var approvedAt sql.NullTime
	err := row.Scan(&w.ID, &tokenID, &w.OperationType, &w.ExpectedWeight, &w.ActualWeight,
		&w.WastageWeight, &w.WastagePercentage, &w.CraftsmanID, &w.ApprovalStatus,
		&approvedBy, &notes, &approvedAt, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	if tokenID.Valid {
		id := uint64(tokenID.Int64)
		w.TokenID = &id
	}
	if approvedBy.Valid {
		id := uint64(approvedBy.Int64)
		w.ApprovedByID = &id
	}
	if notes.Valid {
		w.ApprovalNotes = notes.String
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		w.ApprovedAt = &t
	}
	return &w, nil
}

// Insert persists a classified wastage log and populates the generated
// ID. The derived weight and percentage are stored so later threshold
// changes never reclassify the log.
func (r *WastageRepo) Insert(ctx context.Context, w *model.WastageLog) error {
	var tokenID, approvedBy, approvedAt interface{}
	if w.TokenID != nil {
		tokenID = *w.TokenID
	}
	if w.ApprovedByID != nil {
		approvedBy = *w.ApprovedByID
	}
	if w.ApprovedAt != nil {
		approvedAt = *w.ApprovedAt
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO wastage_logs (token_id, operation_type, expected_weight, actual_weight, wastage_weight,
		   wastage_percentage, craftsman_id, approval_status, approved_by_id, approval_notes, approved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tokenID, w.OperationType, w.ExpectedWeight, w.ActualWeight, w.WastageWeight,
		w.WastagePercentage, w.CraftsmanID, w.ApprovalStatus, approvedBy, w.ApprovalNotes, approvedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	w.ID = uint64(id)
	return nil
}

// GetByID fetches a wastage log by id. ErrNotFound when missing.
func (r *WastageRepo) GetByID(ctx context.Context, id uint64) (*model.WastageLog, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+wastageCols+` FROM wastage_logs WHERE id = ?`, id)
	w, err := scanWastage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return w, err
}

// GetByIDTx fetches a wastage log inside a transaction with a row lock.
func (r *WastageRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.WastageLog, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+wastageCols+` FROM wastage_logs WHERE id = ? FOR UPDATE`, id)
	w, err := scanWastage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return w, err
}

// List returns all wastage logs, newest first.
func (r *WastageRepo) List(ctx context.Context) ([]*model.WastageLog, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+wastageCols+` FROM wastage_logs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.WastageLog, 0)
	for rows.Next() {
		w, err := scanWastage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// DecideTx records an approve/reject decision within the given
// transaction. The WHERE clause only matches logs still awaiting a
// decision, so a second decision matches nothing and returns ErrStale.
func (r *WastageRepo) DecideTx(ctx context.Context, tx *sql.Tx, id uint64, status string, approverID uint64, notes string, decidedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE wastage_logs SET approval_status = ?, approved_by_id = ?, approval_notes = ?, approved_at = ?
		 WHERE id = ? AND approval_status IN (?, ?)`,
		status, approverID, notes, decidedAt,
		id, model.WastagePendingReview, model.WastageFlaggedForAudit)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStale
	}
	return nil
}

// GetThreshold fetches the approval policy for one operation type.
// ErrNotFound when no policy is configured; there is no implicit
// default.
func (r *WastageRepo) GetThreshold(ctx context.Context, operationType string) (*model.WastageThreshold, error) {
	var t model.WastageThreshold
	var updatedBy sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, operation_type, auto_approve_max, review_required_max, updated_by_id, updated_at
		 FROM wastage_thresholds WHERE operation_type = ?`, operationType).
		Scan(&t.ID, &t.OperationType, &t.AutoApproveMax, &t.ReviewRequiredMax, &updatedBy, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if updatedBy.Valid {
		id := uint64(updatedBy.Int64)
		t.UpdatedByID = &id
	}
	return &t, nil
}

// ListThresholds returns all configured thresholds ordered by operation
// type.
func (r *WastageRepo) ListThresholds(ctx context.Context) ([]*model.WastageThreshold, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, operation_type, auto_approve_max, review_required_max, updated_by_id, updated_at
		 FROM wastage_thresholds ORDER BY operation_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.WastageThreshold, 0)
	for rows.Next() {
		var t model.WastageThreshold
		var updatedBy sql.NullInt64
		if err := rows.Scan(&t.ID, &t.OperationType, &t.AutoApproveMax, &t.ReviewRequiredMax, &updatedBy, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if updatedBy.Valid {
			id := uint64(updatedBy.Int64)
			t.UpdatedByID = &id
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// UpsertThreshold creates or replaces the policy for an operation type
// and returns the stored row.
func (r *WastageRepo) UpsertThreshold(ctx context.Context, operationType string, autoMax, reviewMax decimal.Decimal, updatedBy uint64) (*model.WastageThreshold, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wastage_thresholds (operation_type, auto_approve_max, review_required_max, updated_by_id)
		 VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE auto_approve_max = VALUES(auto_approve_max),
		   review_required_max = VALUES(review_required_max), updated_by_id = VALUES(updated_by_id)`,
		operationType, autoMax, reviewMax, updatedBy)
	if err != nil {
		return nil, err
	}
	return r.GetThreshold(ctx, operationType)
}
