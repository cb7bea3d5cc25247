package importing

import (
	"context"

	"github.com/ignite/beneficiary-import/internal/domain"
)

// Resolution is the read-only outcome of matching an upload against the
// store. NewCandidates carry their computed Fingerprint.
type Resolution struct {
	TotalRows          int
	NewCandidates      []domain.Beneficiary
	ExistingMatchedIDs []string
	IDsNeedingNewLink  []string
	// DuplicateRows counts rows dropped because an earlier row in the same
	// upload had the same fingerprint.
	DuplicateRows int
}

// Resolver partitions upload candidates into new and existing beneficiaries.
type Resolver struct {
	repo Repository
}

// NewResolver creates a resolver reading from repo.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve fetches the fingerprint map once and matches every candidate
// against it in memory. A store failure yields a store_read *Error and no
// partial Resolution.
func (r *Resolver) Resolve(ctx context.Context, candidates []domain.Beneficiary, formationID string) (*Resolution, error) {
	existing, err := r.repo.ListAllFingerprints(ctx)
	if err != nil {
		return nil, storeReadError(err)
	}

	res := &Resolution{TotalRows: len(candidates)}
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		fp := c.IdentityFingerprint()
		if _, dup := seen[fp]; dup {
			res.DuplicateRows++
			continue
		}
		seen[fp] = struct{}{}

		if id, ok := existing[fp]; ok {
			res.ExistingMatchedIDs = append(res.ExistingMatchedIDs, id)
			continue
		}
		c.Fingerprint = fp
		c.ID = ""
		res.NewCandidates = append(res.NewCandidates, c)
	}

	if len(res.ExistingMatchedIDs) == 0 {
		return res, nil
	}

	linked, err := r.repo.LinkedBeneficiaryIDs(ctx, formationID, res.ExistingMatchedIDs)
	if err != nil {
		return nil, storeReadError(err)
	}
	for _, id := range res.ExistingMatchedIDs {
		if !linked[id] {
			res.IDsNeedingNewLink = append(res.IDsNeedingNewLink, id)
		}
	}
	return res, nil
}
