package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operation types recorded on lineage edges.
const (
	LineageSplit = "split"
	LineageMerge = "merge"
)

// TokenLineage is a directed edge from a parent token to a child token
// in the `token_lineage` table. A split writes one edge per child back
// to the same parent; a merge writes one edge per input parent to the
// single child. Together the edges form a DAG over tokens. Rows are
// append-only and never edited or deleted.
//
// Fields:
//  ID                – primary key identifier.
//  ChildTokenID      – token produced by the operation.
//  ParentTokenID     – token the mass came from.
//  OperationType     – LineageSplit or LineageMerge.
//  WeightTransferred – grams contributed by this parent to the child.
//  PerformedByID     – participant who performed the operation.
//  CreatedAt         – when the edge was written.
type TokenLineage struct {
	ID                uint64          // token_lineage.id
	ChildTokenID      uint64          // token_lineage.child_token_id
	ParentTokenID     uint64          // token_lineage.parent_token_id
	OperationType     string          // token_lineage.operation_type
	WeightTransferred decimal.Decimal // token_lineage.weight_transferred
	PerformedByID     uint64          // token_lineage.performed_by_id
	CreatedAt         time.Time       // token_lineage.created_at
}
