package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Token lifecycle statuses. A token starts active and the other three
// states are terminal: once a token has been consumed by a split, merged,
// or converted into a product it never becomes active again.
const (
	TokenActive    = "active"
	TokenConsumed  = "consumed"
	TokenMerged    = "merged"
	TokenConverted = "converted_to_product"
)

// Token is a discrete, weighed quantity of gold as stored in the
// `tokens` table. Weight and purity are exact decimals; the mass-balance
// rules in the ledger package compare them with a fixed ±0.01 g
// tolerance, so float arithmetic is never used on these fields.
//
// Fields:
//  ID             – primary key identifier.
//  Code           – human-readable token code (TOK-...), unique.
//  BatchID        – origin gold batch.
//  Weight         – weight in grams, always > 0.
//  Purity         – gold content percentage (e.g. 99.90).
//  Status         – one of the Token* status constants.
//  CurrentOwnerID – participant currently holding custody.
//  MintedByID     – participant who performed the mint/split/merge.
//  ParentTokenID  – parent for simple 1:1 derivations (nullable); the
//                   authoritative parent set lives in token_lineage.
//  CreatedAt      – timestamp of creation.
type Token struct {
	ID             uint64          // tokens.id
	Code           string          // tokens.token_code
	BatchID        uint64          // tokens.batch_id
	Weight         decimal.Decimal // tokens.weight
	Purity         decimal.Decimal // tokens.purity
	Status         string          // tokens.status
	CurrentOwnerID uint64          // tokens.current_owner_id
	MintedByID     uint64          // tokens.minted_by_id
	ParentTokenID  *uint64         // tokens.parent_token_id (nullable)
	CreatedAt      time.Time       // tokens.created_at
}

// Terminal reports whether the token is in a state that permits no
// further transition.
func (t *Token) Terminal() bool {
	return t.Status != TokenActive
}

// TokenTransfer is an immutable custody hand-over record in the
// `token_transfers` table. Transfers never change token status, only the
// current owner, so the full chain of custody is reconstructed from
// these rows.
//
// Fields:
//  ID                – primary key identifier.
//  TokenID           – token that changed hands.
//  FromParticipantID – previous owner.
//  ToParticipantID   – new owner.
//  Notes             – free-form hand-over notes.
//  CreatedAt         – when the transfer happened.
type TokenTransfer struct {
	ID                uint64    // token_transfers.id
	TokenID           uint64    // token_transfers.token_id
	FromParticipantID uint64    // token_transfers.from_participant_id
	ToParticipantID   uint64    // token_transfers.to_participant_id
	Notes             string    // token_transfers.notes
	CreatedAt         time.Time // token_transfers.created_at
}
