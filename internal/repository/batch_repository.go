package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/auriclabs/goldledger/internal/model"
)

// BatchRepo provides persistence for gold batches and their custody
// history.
type BatchRepo struct {
	db *sql.DB
}

// NewBatchRepo returns a new BatchRepo bound to the given database.
func NewBatchRepo(db *sql.DB) *BatchRepo { return &BatchRepo{db: db} }

const batchCols = `id, batch_code, weight, purity, source, refiner_id, current_owner_id, created_at`

func scanBatch(row interface{ Scan(...interface{}) error }) (*model.GoldBatch, error) {
	var b model.GoldBatch
	err := row.Scan(&b.ID, &b.Code, &b.Weight, &b.Purity, &b.Source, &b.RefinerID, &b.CurrentOwnerID, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateTx inserts a batch and its "digital birth" history row within
// the given transaction, populating the generated ID.
func (r *BatchRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.GoldBatch) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO gold_batches (batch_code, weight, purity, source, refiner_id, current_owner_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.Code, b.Weight, b.Purity, b.Source, b.RefinerID, b.CurrentOwnerID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO batch_history (batch_id, from_party, to_party, action) VALUES (?, 'system', ?, 'digital birth')`,
		b.ID, b.Source)
	return err
}

// GetByID fetches a batch by id. ErrNotFound when missing.
func (r *BatchRepo) GetByID(ctx context.Context, id uint64) (*model.GoldBatch, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+batchCols+` FROM gold_batches WHERE id = ?`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// GetByIDForUpdateTx fetches a batch by id with a row lock, serializing
// concurrent mints against the same batch. ErrNotFound when missing.
func (r *BatchRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.GoldBatch, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+batchCols+` FROM gold_batches WHERE id = ? FOR UPDATE`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// List returns all batches, newest first.
func (r *BatchRepo) List(ctx context.Context) ([]*model.GoldBatch, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+batchCols+` FROM gold_batches ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.GoldBatch, 0)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// TransferTx reassigns batch custody and appends the matching history
// row within the given transaction. The WHERE clause re-checks the
// current owner so a concurrent transfer fails with ErrStale.
func (r *BatchRepo) TransferTx(ctx context.Context, tx *sql.Tx, batchID, fromOwner, toOwner uint64, fromName, toName string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE gold_batches SET current_owner_id = ? WHERE id = ? AND current_owner_id = ?`,
		toOwner, batchID, fromOwner)
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
	_, err = tx.ExecContext(ctx,
		`INSERT INTO batch_history (batch_id, from_party, to_party, action) VALUES (?, ?, ?, 'ownership transfer')`,
		batchID, fromName, toName)
	return err
}

// History returns a batch's custody events, oldest first.
func (r *BatchRepo) History(ctx context.Context, batchID uint64) ([]model.BatchHistory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, batch_id, from_party, to_party, action, created_at
		 FROM batch_history WHERE batch_id = ? ORDER BY created_at`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BatchHistory, 0)
	for rows.Next() {
		var h model.BatchHistory
		if err := rows.Scan(&h.ID, &h.BatchID, &h.FromParty, &h.ToParty, &h.Action, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
