package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/auriclabs/goldledger/internal/model"
)

// LineageStore is the read-only view of the store the ancestry engine
// needs. Reads are not required to be transactionally consistent with
// concurrent writes; the engine serves human audit, not settlement.
type LineageStore interface {
	TokenByID(ctx context.Context, id uint64) (*model.Token, error)
	EdgesByChildIDs(ctx context.Context, childIDs []uint64) ([]model.TokenLineage, error)
	BatchesByIDs(ctx context.Context, ids []uint64) (map[uint64]*model.GoldBatch, error)
	TokensByIDs(ctx context.Context, ids []uint64) (map[uint64]*model.Token, error)
}

// Lineage computes ancestry trees and origin-batch contributions over
// the token_lineage DAG. It batch-loads the full ancestor subgraph once
// and traverses in memory: lineage depth is unbounded and per-node
// fetching is the dominant cost of the naive approach.
type Lineage struct {
	store LineageStore
}

// NewLineage returns a Lineage engine reading from store.
func NewLineage(store LineageStore) *Lineage {
	return &Lineage{store: store}
}

// TreeNode is one token in a lineage tree. Operation and
// WeightTransferred describe the edge from this node to its child and
// are zero-valued on the root.
type TreeNode struct {
	TokenID           uint64          `json:"-"`
	Code              string          `json:"token_code"`
	Weight            decimal.Decimal `json:"weight"`
	Purity            decimal.Decimal `json:"purity"`
	Status            string          `json:"status"`
	Operation         string          `json:"operation,omitempty"`
	WeightTransferred decimal.Decimal `json:"weight_transferred,omitempty"`
	Parents           []*TreeNode     `json:"parents,omitempty"`
}

// SourceContribution is the share of a token's mass attributable to one
// origin batch.
type SourceContribution struct {
	BatchID    uint64          `json:"-"`
	BatchCode  string          `json:"batch_code"`
	Source     string          `json:"source"`
	Weight     decimal.Decimal `json:"weight_contribution"`
	Percentage decimal.Decimal `json:"percentage"`
}

// TreeStats summarises a lineage tree: generations back to origin and
// number of lineage edges traversed. Used for traceability scoring only.
type TreeStats struct {
	DeepestGeneration    int `json:"deepest_generation"`
	TotalTransformations int `json:"total_transformations"`
}

// subgraph is the in-memory ancestor closure of one token.
type subgraph struct {
	tokens map[uint64]*model.Token
	edges  map[uint64][]model.TokenLineage // keyed by child token id
}

// loadSubgraph walks parent edges breadth-first from the given token
// until only mint-origin tokens remain, loading each frontier in one
// query. The seen set bounds the walk even on corrupted (cyclic) data;
// the cycle itself is reported during traversal.
func (l *Lineage) loadSubgraph(ctx context.Context, tokenID uint64) (*subgraph, error) {
	root, err := l.store.TokenByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	g := &subgraph{
		tokens: map[uint64]*model.Token{root.ID: root},
		edges:  map[uint64][]model.TokenLineage{},
	}
	seen := map[uint64]bool{root.ID: true}
	frontier := []uint64{root.ID}
	for len(frontier) > 0 {
		edges, err := l.store.EdgesByChildIDs(ctx, frontier)
		if err != nil {
			return nil, err
		}
		var next []uint64
		for _, e := range edges {
			g.edges[e.ChildTokenID] = append(g.edges[e.ChildTokenID], e)
			if !seen[e.ParentTokenID] {
				seen[e.ParentTokenID] = true
				next = append(next, e.ParentTokenID)
			}
		}
		if len(next) > 0 {
			tokens, err := l.store.TokensByIDs(ctx, next)
			if err != nil {
				return nil, err
			}
			for id, t := range tokens {
				g.tokens[id] = t
			}
		}
		frontier = next
	}
	return g, nil
}

// BuildTree returns the full ancestry tree of a token, following parent
// edges up to mint-origin tokens. It fails with ErrCycleDetected if the
// stored graph is not acyclic.
func (l *Lineage) BuildTree(ctx context.Context, tokenID uint64) (*TreeNode, error) {
	g, err := l.loadSubgraph(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	return buildNode(g, tokenID, map[uint64]bool{})
}

// buildNode assembles the tree rooted at id. onPath holds the ids on the
// current descent so a cycle is detected instead of recursing forever.
func buildNode(g *subgraph, id uint64, onPath map[uint64]bool) (*TreeNode, error) {
	if onPath[id] {
		return nil, ErrCycleDetected
	}
	t, ok := g.tokens[id]
	if !ok {
		return nil, &NotFoundError{Resource: "token"}
	}
	node := &TreeNode{
		TokenID: t.ID,
		Code:    t.Code,
		Weight:  t.Weight,
		Purity:  t.Purity,
		Status:  t.Status,
	}
	onPath[id] = true
	defer delete(onPath, id)
	for _, e := range g.edges[id] {
		parent, err := buildNode(g, e.ParentTokenID, onPath)
		if err != nil {
			return nil, err
		}
		parent.Operation = e.OperationType
		parent.WeightTransferred = e.WeightTransferred
		node.Parents = append(node.Parents, parent)
	}
	return node, nil
}

// SourceContributions resolves the share of each origin batch in the
// token's current mass. A token's share map is the weighted sum of its
// parents' share maps, the weights being each parent edge's contribution
// over the total transferred; mint-origin tokens contribute 100% to
// their own batch. Percentages therefore sum to 100 across batches (up
// to decimal rounding) no matter how tangled the split/merge history is.
func (l *Lineage) SourceContributions(ctx context.Context, tokenID uint64) ([]SourceContribution, error) {
	g, err := l.loadSubgraph(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	memo := map[uint64]map[uint64]decimal.Decimal{}
	fractions, err := batchFractions(g, tokenID, memo, map[uint64]bool{})
	if err != nil {
		return nil, err
	}
	batchIDs := make([]uint64, 0, len(fractions))
	for id := range fractions {
		batchIDs = append(batchIDs, id)
	}
	batches, err := l.store.BatchesByIDs(ctx, batchIDs)
	if err != nil {
		return nil, err
	}
	tokenWeight := g.tokens[tokenID].Weight
	out := make([]SourceContribution, 0, len(fractions))
	for id, frac := range fractions {
		sc := SourceContribution{
			BatchID:    id,
			Weight:     tokenWeight.Mul(frac).Round(2),
			Percentage: frac.Mul(hundred).Round(2),
		}
		if b, ok := batches[id]; ok {
			sc.BatchCode = b.Code
			sc.Source = b.Source
		}
		out = append(out, sc)
	}
	sortContributions(out)
	return out, nil
}

// sortContributions orders contributions by descending percentage.
func sortContributions(cs []SourceContribution) {
	sort.Slice(cs, func(i, j int) bool {
		return cs[i].Percentage.GreaterThan(cs[j].Percentage)
	})
}

// batchFractions returns origin-batch shares for token id, each in
// [0, 1], summing to 1. Memoised per token so diamond-shaped ancestry is
// computed once per node.
func batchFractions(g *subgraph, id uint64, memo map[uint64]map[uint64]decimal.Decimal, onPath map[uint64]bool) (map[uint64]decimal.Decimal, error) {
	if f, ok := memo[id]; ok {
		return f, nil
	}
	if onPath[id] {
		return nil, ErrCycleDetected
	}
	t, ok := g.tokens[id]
	if !ok {
		return nil, &NotFoundError{Resource: "token"}
	}
	edges := g.edges[id]
	if len(edges) == 0 {
		f := map[uint64]decimal.Decimal{t.BatchID: decimal.NewFromInt(1)}
		memo[id] = f
		return f, nil
	}
	total := decimal.Zero
	for _, e := range edges {
		total = total.Add(e.WeightTransferred)
	}
	if !total.IsPositive() {
		return nil, Validationf("lineage edges of token %d carry no weight", id)
	}
	onPath[id] = true
	defer delete(onPath, id)
	f := map[uint64]decimal.Decimal{}
	for _, e := range edges {
		share := e.WeightTransferred.Div(total)
		parent, err := batchFractions(g, e.ParentTokenID, memo, onPath)
		if err != nil {
			return nil, err
		}
		for batchID, pf := range parent {
			f[batchID] = f[batchID].Add(pf.Mul(share))
		}
	}
	memo[id] = f
	return f, nil
}

// Stats derives depth and transformation counts from a built tree.
// Diamond-shaped ancestry counts an edge once per path, matching how the
// tree itself is rendered.
func Stats(tree *TreeNode) TreeStats {
	var s TreeStats
	if tree == nil {
		return s
	}
	var walk func(n *TreeNode, depth int)
	walk = func(n *TreeNode, depth int) {
		if depth > s.DeepestGeneration {
			s.DeepestGeneration = depth
		}
		s.TotalTransformations += len(n.Parents)
		for _, p := range n.Parents {
			walk(p, depth+1)
		}
	}
	walk(tree, 0)
	return s
}
