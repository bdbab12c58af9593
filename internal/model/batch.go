package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// GoldBatch is a raw metal entry registered by a refiner, stored in the
// `gold_batches` table. Tokens reference their origin batch and the
// ancestry engine resolves source contributions back to batches.
//
// Fields:
//  ID             – primary key identifier.
//  Code           – human-readable batch code (BV-GOLD-...), unique.
//  Weight         – registered weight in grams.
//  Purity         – gold content percentage.
//  Source         – mine or scrap source description.
//  RefinerID      – refiner who registered the batch.
//  CurrentOwnerID – participant currently holding the batch.
//  CreatedAt      – timestamp of registration.
type GoldBatch struct {
	ID             uint64          // gold_batches.id
	Code           string          // gold_batches.batch_code
	Weight         decimal.Decimal // gold_batches.weight
	Purity         decimal.Decimal // gold_batches.purity
	Source         string          // gold_batches.source
	RefinerID      uint64          // gold_batches.refiner_id
	CurrentOwnerID uint64          // gold_batches.current_owner_id
	CreatedAt      time.Time       // gold_batches.created_at
}

// BatchHistory records custody events on a batch in the `batch_history`
// table, starting with its registration ("digital birth") and followed
// by ownership transfers. Rows are append-only.
//
// Fields:
//  ID        – primary key identifier.
//  BatchID   – batch the event belongs to.
//  FromParty – previous holder (or "system" at registration).
//  ToParty   – new holder.
//  Action    – event description.
//  CreatedAt – when the event happened.
type BatchHistory struct {
	ID        uint64    // batch_history.id
	BatchID   uint64    // batch_history.batch_id
	FromParty string    // batch_history.from_party
	ToParty   string    // batch_history.to_party
	Action    string    // batch_history.action
	CreatedAt time.Time // batch_history.created_at
}
