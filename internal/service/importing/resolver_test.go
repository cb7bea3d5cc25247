package importing

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/beneficiary-import/internal/domain"
)

func TestResolve_PartitionIsComplete(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 20; round++ {
		repo := newMockRepo(formationX)
		pool := make([]person, 30)
		for i := range pool {
			pool[i] = person{fmt.Sprintf("Nom%d", i), "P", fmt.Sprintf("p%d@example.org", i)}
			if rng.Intn(2) == 0 {
				id := repo.seedBeneficiary(pool[i].email, pool[i].name, pool[i].firstName)
				if rng.Intn(2) == 0 {
					repo.seedLink(id, formationX)
				}
			}
		}

		var candidates []domain.Beneficiary
		for i := 0; i < 40; i++ {
			p := pool[rng.Intn(len(pool))]
			candidates = append(candidates, domain.Beneficiary{Email: p.email, Name: p.name, FirstName: p.firstName})
		}

		res, err := NewResolver(repo).Resolve(context.Background(), candidates, formationX)
		require.NoError(t, err)

		assert.Equal(t, len(candidates), len(res.NewCandidates)+len(res.ExistingMatchedIDs)+res.DuplicateRows, "round %d", round)

		matched := make(map[string]bool, len(res.ExistingMatchedIDs))
		for _, id := range res.ExistingMatchedIDs {
			matched[id] = true
		}
		for _, id := range res.IDsNeedingNewLink {
			assert.True(t, matched[id], "round %d: %s needs a link but was not matched", round, id)
			assert.Zero(t, repo.links[linkKey{id, formationX}])
		}
		for _, c := range res.NewCandidates {
			assert.NotEmpty(t, c.Fingerprint)
		}
	}
}

func TestResolve_NoCandidates(t *testing.T) {
	res, err := NewResolver(newMockRepo()).Resolve(context.Background(), nil, formationX)
	require.NoError(t, err)
	assert.Zero(t, res.TotalRows)
	assert.Empty(t, res.NewCandidates)
}

func TestResolve_StoreFailureReturnsNoPartialResult(t *testing.T) {
	repo := newMockRepo()
	repo.failFingerprints = fmt.Errorf("too many connections")

	res, err := NewResolver(repo).Resolve(context.Background(), []domain.Beneficiary{{Email: "a@example.org"}}, formationX)
	assert.Nil(t, res)
	assert.Equal(t, KindStoreRead, KindOf(err))
}

func TestWrite_EmptyResolutionSkipsTransaction(t *testing.T) {
	repo := newMockRepo()
	called := false
	repo.beforeTx = func() { called = true }

	got, err := NewWriter(repo).Write(context.Background(), &Resolution{TotalRows: 2, DuplicateRows: 0}, formationX)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportResult{}, got)
	assert.False(t, called)
}
