package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/auriclabs/goldledger/internal/model"
)

// ProductRepo provides persistence for finished products and their
// token composition. A product and its composition rows are only ever
// written together, inside the assembler's transaction.
type ProductRepo struct {
	db *sql.DB
}

// NewProductRepo returns a new ProductRepo bound to the given database.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

const productCols = `id, product_code, name, type, gross_weight, net_gold_weight, purity, craftsman_id, qr_ref, created_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Type, &p.GrossWeight, &p.NetGoldWeight,
		&p.Purity, &p.CraftsmanID, &p.QRRef, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateTx inserts a product within the given transaction and populates
// the generated ID.
func (r *ProductRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Product) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO products (product_code, name, type, gross_weight, net_gold_weight, purity, craftsman_id, qr_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Code, p.Name, p.Type, p.GrossWeight, p.NetGoldWeight, p.Purity, p.CraftsmanID, p.QRRef)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// InsertCompositionBulkTx inserts all composition rows in one statement
// within the given transaction. Passing an empty slice has no effect.
func (r *ProductRepo) InsertCompositionBulkTx(ctx context.Context, tx *sql.Tx, rows []model.ProductComposition) error {
	if len(rows) == 0 {
		return nil
	}
	query := `INSERT INTO product_composition (product_id, token_id, weight_used, percentage) VALUES `
	args := make([]interface{}, 0, len(rows)*4)
	for i, c := range rows {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, c.ProductID, c.TokenID, c.WeightUsed, c.Percentage)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetByID fetches a product by id. ErrNotFound when missing.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productCols+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Composition returns a product's token composition rows.
func (r *ProductRepo) Composition(ctx context.Context, productID uint64) ([]model.ProductComposition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, token_id, weight_used, percentage, created_at
		 FROM product_composition WHERE product_id = ? ORDER BY id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ProductComposition, 0)
	for rows.Next() {
		var c model.ProductComposition
		if err := rows.Scan(&c.ID, &c.ProductID, &c.TokenID, &c.WeightUsed, &c.Percentage, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListByCraftsman returns products owned by a participant, newest first.
func (r *ProductRepo) ListByCraftsman(ctx context.Context, craftsmanID uint64) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productCols+` FROM products WHERE craftsman_id = ? ORDER BY created_at DESC`, craftsmanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateOwnerTx reassigns product custody within the given transaction,
// re-checking the current owner so a stale transfer fails with ErrStale.
func (r *ProductRepo) UpdateOwnerTx(ctx context.Context, tx *sql.Tx, id, fromOwner, toOwner uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET craftsman_id = ? WHERE id = ? AND craftsman_id = ?`, toOwner, id, fromOwner)
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

// Stats returns the product count and summed net gold weight.
func (r *ProductRepo) Stats(ctx context.Context) (count int, totalNetGold string, err error) {
	var total sql.NullString
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(net_gold_weight), 0) FROM products`).Scan(&count, &total)
	if err != nil {
		return 0, "0", err
	}
	if total.Valid {
		totalNetGold = total.String
	} else {
		totalNetGold = "0"
	}
	return count, totalNetGold, nil
}
