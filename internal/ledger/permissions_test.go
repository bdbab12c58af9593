package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriclabs/goldledger/internal/model"
)

func participant(role string, overrides map[string]bool) *model.Participant {
	return &model.Participant{
		ID:        1,
		Name:      "Test Participant",
		Role:      role,
		Overrides: overrides,
		Active:    true,
	}
}

func TestAuthorizeRoleTable(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())

	cases := []struct {
		role       string
		permission string
		allow      bool
	}{
		{model.RoleRefiner, PermMintToken, true},
		{model.RoleRefiner, PermSplitToken, false},
		{model.RoleCraftsman, PermSplitToken, true},
		{model.RoleCraftsman, PermMintToken, false},
		{model.RoleCraftsman, PermLogWastage, true},
		{model.RoleCraftsman, PermApproveWastage, false},
		{model.RoleLab, PermApproveWastage, true},
		{model.RoleLab, PermMintToken, false},
		{model.RoleJeweller, PermTransferToken, true},
		{model.RoleJeweller, PermCreateBatch, false},
		{model.RoleAuditor, PermViewAll, true},
		{model.RoleAuditor, PermCreateProduct, false},
		{model.RoleAdmin, PermManageParticipants, true},
		{model.RoleAdmin, PermUpdateThresholds, true},
	}
	for _, tc := range cases {
		err := e.Authorize(participant(tc.role, nil), tc.permission)
		if tc.allow {
			assert.NoError(t, err, "%s should hold %s", tc.role, tc.permission)
		} else {
			assert.Error(t, err, "%s should lack %s", tc.role, tc.permission)
		}
	}
}

func TestAuthorizeOverrideGrants(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())

	// Explicit true grants beyond the role table.
	p := participant(model.RoleCraftsman, map[string]bool{PermMintToken: true})
	assert.NoError(t, e.Authorize(p, PermMintToken))

	// A false entry behaves like absence: the role table still decides.
	p = participant(model.RoleCraftsman, map[string]bool{PermSplitToken: false})
	assert.NoError(t, e.Authorize(p, PermSplitToken))
}

func TestAuthorizeInactiveDeniedEverything(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())
	p := participant(model.RoleAdmin, map[string]bool{PermMintToken: true})
	p.Active = false

	for _, perm := range []string{PermMintToken, PermViewAll, PermManageParticipants} {
		err := e.Authorize(p, perm)
		require.Error(t, err, perm)
		assert.True(t, IsAuthorization(err))
	}
}

func TestAuthorizeNilParticipant(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())
	err := e.Authorize(nil, PermViewOwn)
	require.Error(t, err)
	assert.True(t, IsAuthorization(err))
}

func TestAuthorizeUnknownRole(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())
	err := e.Authorize(participant("courier", nil), PermTransferToken)
	require.Error(t, err)
	assert.True(t, IsAuthorization(err))
}

func TestCanViewAll(t *testing.T) {
	e := NewEvaluator(DefaultPolicy())

	assert.True(t, e.CanViewAll(participant(model.RoleLab, nil)))
	assert.True(t, e.CanViewAll(participant(model.RoleAuditor, nil)))
	assert.False(t, e.CanViewAll(participant(model.RoleCraftsman, nil)))
	assert.True(t, e.CanViewAll(participant(model.RoleCraftsman, map[string]bool{PermViewAll: true})))
}

func TestEvaluatorCustomPolicy(t *testing.T) {
	e := NewEvaluator(Policy{"courier": {PermTransferToken}})

	assert.NoError(t, e.Authorize(participant("courier", nil), PermTransferToken))
	assert.Error(t, e.Authorize(participant("courier", nil), PermMintToken))
	assert.Error(t, e.Authorize(participant(model.RoleAdmin, nil), PermMintToken))
}
