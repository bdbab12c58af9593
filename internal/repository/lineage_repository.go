package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/auriclabs/goldledger/internal/model"
)

// LineageRepo is the read-only store behind the ancestry engine. It
// serves the batched subgraph loads the engine performs: one query per
// frontier generation instead of one per tree node.
type LineageRepo struct {
	db *sql.DB
}

// NewLineageRepo returns a new LineageRepo bound to the given database.
func NewLineageRepo(db *sql.DB) *LineageRepo { return &LineageRepo{db: db} }

// TokenByID fetches one token. ErrNotFound when missing.
func (r *LineageRepo) TokenByID(ctx context.Context, id uint64) (*model.Token, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tokenCols+` FROM tokens WHERE id = ?`, id)
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// TokensByIDs fetches several tokens keyed by id. Missing ids are simply
// absent from the map; the engine treats that as corrupted lineage.
func (r *LineageRepo) TokensByIDs(ctx context.Context, ids []uint64) (map[uint64]*model.Token, error) {
	if len(ids) == 0 {
		return map[uint64]*model.Token{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tokenCols+` FROM tokens WHERE id IN (`+placeholders(len(ids))+`)`, idArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]*model.Token, len(ids))
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out[t.ID] = t
	}
	return out, rows.Err()
}

// EdgesByChildIDs returns all lineage edges whose child is in the given
// set, i.e. one ancestor generation for a whole frontier at once.
func (r *LineageRepo) EdgesByChildIDs(ctx context.Context, childIDs []uint64) ([]model.TokenLineage, error) {
	if len(childIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, child_token_id, parent_token_id, operation_type, weight_transferred, performed_by_id, created_at
		 FROM token_lineage WHERE child_token_id IN (`+placeholders(len(childIDs))+`)`, idArgs(childIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TokenLineage
	for rows.Next() {
		var e model.TokenLineage
		if err := rows.Scan(&e.ID, &e.ChildTokenID, &e.ParentTokenID, &e.OperationType,
			&e.WeightTransferred, &e.PerformedByID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// BatchesByIDs fetches several gold batches keyed by id.
func (r *LineageRepo) BatchesByIDs(ctx context.Context, ids []uint64) (map[uint64]*model.GoldBatch, error) {
	if len(ids) == 0 {
		return map[uint64]*model.GoldBatch{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+batchCols+` FROM gold_batches WHERE id IN (`+placeholders(len(ids))+`)`, idArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]*model.GoldBatch, len(ids))
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out[b.ID] = b
	}
	return out, rows.Err()
}
