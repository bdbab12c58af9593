package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriclabs/goldledger/internal/model"
)

// fakeLineageStore serves the ancestry engine from in-memory maps.
type fakeLineageStore struct {
	tokens  map[uint64]*model.Token
	edges   []model.TokenLineage
	batches map[uint64]*model.GoldBatch
}

func (f *fakeLineageStore) TokenByID(_ context.Context, id uint64) (*model.Token, error) {
	t, ok := f.tokens[id]
	if !ok {
		return nil, &NotFoundError{Resource: "token"}
	}
	return t, nil
}

func (f *fakeLineageStore) EdgesByChildIDs(_ context.Context, childIDs []uint64) ([]model.TokenLineage, error) {
	want := map[uint64]bool{}
	for _, id := range childIDs {
		want[id] = true
	}
	var out []model.TokenLineage
	for _, e := range f.edges {
		if want[e.ChildTokenID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLineageStore) BatchesByIDs(_ context.Context, ids []uint64) (map[uint64]*model.GoldBatch, error) {
	out := map[uint64]*model.GoldBatch{}
	for _, id := range ids {
		if b, ok := f.batches[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

func (f *fakeLineageStore) TokensByIDs(_ context.Context, ids []uint64) (map[uint64]*model.Token, error) {
	out := map[uint64]*model.Token{}
	for _, id := range ids {
		if t, ok := f.tokens[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func tok(id, batchID uint64, weight, status string) *model.Token {
	return &model.Token{
		ID:      id,
		Code:    "TOK-TEST-" + status,
		BatchID: batchID,
		Weight:  d(weight),
		Purity:  d("99.9"),
		Status:  status,
	}
}

func edge(child, parent uint64, op, weight string) model.TokenLineage {
	return model.TokenLineage{
		ChildTokenID:      child,
		ParentTokenID:     parent,
		OperationType:     op,
		WeightTransferred: d(weight),
	}
}

// mergeSplitStore models two mint-origin tokens merged into one, which
// was then split into two children.
func mergeSplitStore() *fakeLineageStore {
	return &fakeLineageStore{
		tokens: map[uint64]*model.Token{
			1: tok(1, 1, "100", model.TokenMerged),
			2: tok(2, 2, "50", model.TokenMerged),
			3: tok(3, 1, "149.5", model.TokenConsumed),
			4: tok(4, 1, "100", model.TokenActive),
			5: tok(5, 1, "49.49", model.TokenActive),
		},
		edges: []model.TokenLineage{
			edge(3, 1, model.LineageMerge, "100"),
			edge(3, 2, model.LineageMerge, "50"),
			edge(4, 3, model.LineageSplit, "100"),
			edge(5, 3, model.LineageSplit, "49.49"),
		},
		batches: map[uint64]*model.GoldBatch{
			1: {ID: 1, Code: "BV-GOLD-00001", Source: "Marikana mine"},
			2: {ID: 2, Code: "BV-GOLD-00002", Source: "recycled scrap"},
		},
	}
}

func TestBuildTreeMintOrigin(t *testing.T) {
	l := NewLineage(mergeSplitStore())
	tree, err := l.BuildTree(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tree.TokenID)
	assert.Empty(t, tree.Parents)
}

func TestBuildTreeMergeThenSplit(t *testing.T) {
	l := NewLineage(mergeSplitStore())
	tree, err := l.BuildTree(context.Background(), 4)
	require.NoError(t, err)

	require.Len(t, tree.Parents, 1)
	merged := tree.Parents[0]
	assert.Equal(t, uint64(3), merged.TokenID)
	assert.Equal(t, model.LineageSplit, merged.Operation)
	assert.True(t, merged.WeightTransferred.Equal(d("100")))

	require.Len(t, merged.Parents, 2)
	for _, p := range merged.Parents {
		assert.Equal(t, model.LineageMerge, p.Operation)
		assert.Empty(t, p.Parents)
	}
}

func TestBuildTreeUnknownToken(t *testing.T) {
	l := NewLineage(mergeSplitStore())
	_, err := l.BuildTree(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSourceContributions(t *testing.T) {
	l := NewLineage(mergeSplitStore())
	cs, err := l.SourceContributions(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, cs, 2)

	// Sorted descending by percentage: two thirds from batch 1, one
	// third from batch 2.
	assert.Equal(t, "BV-GOLD-00001", cs[0].BatchCode)
	assert.True(t, cs[0].Percentage.Equal(d("66.67")), "got %s", cs[0].Percentage)
	assert.True(t, cs[0].Weight.Equal(d("66.67")), "got %s", cs[0].Weight)
	assert.Equal(t, "Marikana mine", cs[0].Source)

	assert.Equal(t, "BV-GOLD-00002", cs[1].BatchCode)
	assert.True(t, cs[1].Percentage.Equal(d("33.33")), "got %s", cs[1].Percentage)

	total := decimal.Zero
	for _, c := range cs {
		total = total.Add(c.Percentage)
	}
	assert.True(t, total.Equal(hundred), "percentages sum to %s", total)
}

func TestSourceContributionsMintOrigin(t *testing.T) {
	l := NewLineage(mergeSplitStore())
	cs, err := l.SourceContributions(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "BV-GOLD-00002", cs[0].BatchCode)
	assert.True(t, cs[0].Percentage.Equal(hundred))
	assert.True(t, cs[0].Weight.Equal(d("50")))
}

func TestSourceContributionsDiamond(t *testing.T) {
	// One mint split in two, then re-merged. Both paths lead to the
	// same batch; the memoised shares must still sum to exactly 100%.
	store := &fakeLineageStore{
		tokens: map[uint64]*model.Token{
			1: tok(1, 1, "100", model.TokenConsumed),
			2: tok(2, 1, "60", model.TokenMerged),
			3: tok(3, 1, "40", model.TokenMerged),
			4: tok(4, 1, "99.9", model.TokenActive),
		},
		edges: []model.TokenLineage{
			edge(2, 1, model.LineageSplit, "60"),
			edge(3, 1, model.LineageSplit, "40"),
			edge(4, 2, model.LineageMerge, "60"),
			edge(4, 3, model.LineageMerge, "40"),
		},
		batches: map[uint64]*model.GoldBatch{
			1: {ID: 1, Code: "BV-GOLD-00001", Source: "Marikana mine"},
		},
	}
	l := NewLineage(store)
	cs, err := l.SourceContributions(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.True(t, cs[0].Percentage.Equal(hundred), "got %s", cs[0].Percentage)
}

func TestCycleDetected(t *testing.T) {
	// A cycle can only come from corrupted data; the engine must refuse
	// rather than recurse forever.
	store := &fakeLineageStore{
		tokens: map[uint64]*model.Token{
			10: tok(10, 1, "10", model.TokenActive),
			11: tok(11, 1, "10", model.TokenConsumed),
		},
		edges: []model.TokenLineage{
			edge(10, 11, model.LineageSplit, "10"),
			edge(11, 10, model.LineageSplit, "10"),
		},
		batches: map[uint64]*model.GoldBatch{
			1: {ID: 1, Code: "BV-GOLD-00001"},
		},
	}
	l := NewLineage(store)

	_, err := l.BuildTree(context.Background(), 10)
	assert.ErrorIs(t, err, ErrCycleDetected)

	_, err = l.SourceContributions(context.Background(), 10)
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestStats(t *testing.T) {
	l := NewLineage(mergeSplitStore())

	tree, err := l.BuildTree(context.Background(), 4)
	require.NoError(t, err)
	s := Stats(tree)
	assert.Equal(t, 2, s.DeepestGeneration)
	assert.Equal(t, 3, s.TotalTransformations)

	tree, err = l.BuildTree(context.Background(), 1)
	require.NoError(t, err)
	s = Stats(tree)
	assert.Equal(t, 0, s.DeepestGeneration)
	assert.Equal(t, 0, s.TotalTransformations)

	assert.Equal(t, TreeStats{}, Stats(nil))
}
