package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product types accepted by the assembler.
const (
	ProductRing     = "ring"
	ProductNecklace = "necklace"
	ProductBracelet = "bracelet"
	ProductEarrings = "earrings"
	ProductPendant  = "pendant"
	ProductOther    = "other"
)

// ValidProductType reports whether s names a known product type.
func ValidProductType(s string) bool {
	switch s {
	case ProductRing, ProductNecklace, ProductBracelet, ProductEarrings, ProductPendant, ProductOther:
		return true
	}
	return false
}

// Product is a finished piece of jewellery in the `products` table. Its
// net gold weight equals the sum of its composition's weight-used plus
// any declared wastage, within the ledger tolerance.
//
// Fields:
//  ID            – primary key identifier.
//  Code          – human-readable product code (PRD-...), unique.
//  Name          – commercial name.
//  Type          – one of the Product* constants.
//  GrossWeight   – total weight including non-gold parts.
//  NetGoldWeight – gold weight, backed by consumed tokens.
//  Purity        – gold content percentage.
//  CraftsmanID   – participant who assembled and currently owns it.
//  QRRef         – opaque reference printed as the QR code.
//  CreatedAt     – timestamp of assembly.
type Product struct {
	ID            uint64          // products.id
	Code          string          // products.product_code
	Name          string          // products.name
	Type          string          // products.type
	GrossWeight   decimal.Decimal // products.gross_weight
	NetGoldWeight decimal.Decimal // products.net_gold_weight
	Purity        decimal.Decimal // products.purity
	CraftsmanID   uint64          // products.craftsman_id
	QRRef         string          // products.qr_ref
	CreatedAt     time.Time       // products.created_at
}

// ProductComposition links a product to one consumed token in the
// `product_composition` table. Rows are written together with the
// product and are immutable afterwards.
//
// Fields:
//  ID         – primary key identifier.
//  ProductID  – product the token went into.
//  TokenID    – consumed token.
//  WeightUsed – grams taken from the token.
//  Percentage – weight_used / net_gold_weight × 100.
//  CreatedAt  – timestamp of creation.
type ProductComposition struct {
	ID         uint64          // product_composition.id
	ProductID  uint64          // product_composition.product_id
	TokenID    uint64          // product_composition.token_id
	WeightUsed decimal.Decimal // product_composition.weight_used
	Percentage decimal.Decimal // product_composition.percentage
	CreatedAt  time.Time       // product_composition.created_at
}
