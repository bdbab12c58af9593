package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/auriclabs/goldledger/internal/model"
)

// TokenRepo provides persistence for tokens, their lineage edges and
// custody transfers. Status flips use optimistic checks on the current
// status so two transactions racing on the same token cannot both
// consume its mass; the loser gets ErrStale.
type TokenRepo struct {
	db *sql.DB
}

// NewTokenRepo returns a new TokenRepo bound to the given database.
func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *TokenRepo) DB() *sql.DB { return r.db }

const tokenCols = `id, token_code, batch_id, weight, purity, status, current_owner_id, minted_by_id, parent_token_id, created_at`

func scanToken(row interface{ Scan(...interface{}) error }) (*model.Token, error) {
	var t model.Token
	var parent sql.NullInt64
	err := row.Scan(&t.ID, &t.Code, &t.BatchID, &t.Weight, &t.Purity, &t.Status,
		&t.CurrentOwnerID, &t.MintedByID, &parent, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		p := uint64(parent.Int64)
		t.ParentTokenID = &p
	}
	return &t, nil
}

// CreateTx inserts a new token within the given transaction and
// populates the generated ID on the record.
func (r *TokenRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Token) error {
	var parent interface{}
	if t.ParentTokenID != nil {
		parent = *t.ParentTokenID
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO tokens (token_code, batch_id, weight, purity, status, current_owner_id, minted_by_id, parent_token_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Code, t.BatchID, t.Weight, t.Purity, t.Status, t.CurrentOwnerID, t.MintedByID, parent)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByID fetches a token by id. ErrNotFound when missing.
func (r *TokenRepo) GetByID(ctx context.Context, id uint64) (*model.Token, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tokenCols+` FROM tokens WHERE id = ?`, id)
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// GetByIDTx fetches a token inside a transaction with a row lock, so the
// subsequent optimistic status flip observes a stable row.
func (r *TokenRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Token, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+tokenCols+` FROM tokens WHERE id = ? FOR UPDATE`, id)
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// GetByIDsTx fetches several tokens inside a transaction with row locks.
// ErrNotFound is returned when any of the ids is missing.
func (r *TokenRepo) GetByIDsTx(ctx context.Context, tx *sql.Tx, ids []uint64) ([]*model.Token, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + tokenCols + ` FROM tokens WHERE id IN (` + placeholders(len(ids)) + `) FOR UPDATE`
	rows, err := tx.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != len(ids) {
		return nil, ErrNotFound
	}
	return out, nil
}

// ListByOwner returns tokens held by a participant, optionally filtered
// by status, newest first.
func (r *TokenRepo) ListByOwner(ctx context.Context, ownerID uint64, status string) ([]*model.Token, error) {
	query := `SELECT ` + tokenCols + ` FROM tokens WHERE current_owner_id = ?`
	args := []interface{}{ownerID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	return r.queryTokens(ctx, query, args...)
}

// ListAll returns every token, optionally filtered by status, newest
// first. Restricted to callers with the view_all permission.
func (r *TokenRepo) ListAll(ctx context.Context, status string) ([]*model.Token, error) {
	query := `SELECT ` + tokenCols + ` FROM tokens`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	return r.queryTokens(ctx, query, args...)
}

func (r *TokenRepo) queryTokens(ctx context.Context, query string, args ...interface{}) ([]*model.Token, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.Token, 0)
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FlipStatusTx transitions a token from `from` to `to` within the given
// transaction. The WHERE clause re-checks the current status so a
// concurrent transaction that already consumed the token makes this
// update match nothing; ErrStale is returned in that case and the caller
// must roll back.
func (r *TokenRepo) FlipStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tokens SET status = ? WHERE id = ? AND status = ?`, to, id, from)
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

// UpdateOwnerTx reassigns custody of an active token. Like FlipStatusTx
// it re-checks both owner and status, so a stale transfer fails instead
// of overwriting a concurrent change.
func (r *TokenRepo) UpdateOwnerTx(ctx context.Context, tx *sql.Tx, id, fromOwner, toOwner uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tokens SET current_owner_id = ? WHERE id = ? AND current_owner_id = ? AND status = ?`,
		toOwner, id, fromOwner, model.TokenActive)
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

// InsertLineageTx appends one lineage edge within the given transaction.
// Lineage rows are never updated or deleted afterwards.
func (r *TokenRepo) InsertLineageTx(ctx context.Context, tx *sql.Tx, e *model.TokenLineage) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO token_lineage (child_token_id, parent_token_id, operation_type, weight_transferred, performed_by_id)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ChildTokenID, e.ParentTokenID, e.OperationType, e.WeightTransferred, e.PerformedByID)
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

// InsertTransferTx appends one custody transfer record within the given
// transaction.
func (r *TokenRepo) InsertTransferTx(ctx context.Context, tx *sql.Tx, t *model.TokenTransfer) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO token_transfers (token_id, from_participant_id, to_participant_id, notes)
		 VALUES (?, ?, ?, ?)`,
		t.TokenID, t.FromParticipantID, t.ToParticipantID, t.Notes)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// TransfersByToken returns the custody chain of one token, oldest first.
func (r *TokenRepo) TransfersByToken(ctx context.Context, tokenID uint64) ([]model.TokenTransfer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, token_id, from_participant_id, to_participant_id, notes, created_at
		 FROM token_transfers WHERE token_id = ? ORDER BY created_at`, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.TokenTransfer, 0)
	for rows.Next() {
		var t model.TokenTransfer
		if err := rows.Scan(&t.ID, &t.TokenID, &t.FromParticipantID, &t.ToParticipantID, &t.Notes, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountByStatus returns token counts grouped by status.
func (r *TokenRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tokens GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// TotalWeight sums the weight of all tokens in the given status.
func (r *TokenRepo) TotalWeight(ctx context.Context, status string) (string, error) {
	var total sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(weight), 0) FROM tokens WHERE status = ?`, status).Scan(&total)
	if err != nil {
		return "0", err
	}
	if !total.Valid {
		return "0", nil
	}
	return total.String, nil
}

// MintedWeightByBatchTx sums, inside the given transaction, the weight
// of tokens minted directly against a batch. Tokens created by splits or
// merges have lineage edges and are excluded, so the sum never counts
// the same gold twice.
func (r *TokenRepo) MintedWeightByBatchTx(ctx context.Context, tx *sql.Tx, batchID uint64) (decimal.Decimal, error) {
	var total sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(t.weight), 0) FROM tokens t
		 WHERE t.batch_id = ?
		   AND NOT EXISTS (SELECT 1 FROM token_lineage l WHERE l.child_token_id = t.id)`,
		batchID).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(total.String)
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []uint64) []interface{} {
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}
