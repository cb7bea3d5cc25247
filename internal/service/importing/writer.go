package importing

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ignite/beneficiary-import/internal/domain"
)

// Writer persists a Resolution for one formation.
type Writer struct {
	repo Repository
}

// NewWriter creates a writer over repo.
func NewWriter(repo Repository) *Writer {
	return &Writer{repo: repo}
}

// Write inserts new beneficiaries, then links them and the matched ids that
// lack a link, all in one transaction. Candidates that lost an insert race
// to a concurrent import are looked up and linked instead. Any failure rolls
// back every write and returns a transaction *Error; nothing is retried.
func (w *Writer) Write(ctx context.Context, res *Resolution, formationID string) (domain.ImportResult, error) {
	var result domain.ImportResult
	if res == nil || (len(res.NewCandidates) == 0 && len(res.IDsNeedingNewLink) == 0) {
		return result, nil
	}

	err := w.repo.WithinTx(ctx, func(tx TxRepository) error {
		var inserted map[string]string
		if len(res.NewCandidates) > 0 {
			var err error
			inserted, err = tx.InsertBeneficiaries(ctx, res.NewCandidates)
			if err != nil {
				return errors.Wrap(err, "insert beneficiaries")
			}
		}

		linkIDs := make([]string, 0, len(res.NewCandidates)+len(res.IDsNeedingNewLink))
		var raced []string
		for _, c := range res.NewCandidates {
			if id, ok := inserted[c.Fingerprint]; ok {
				linkIDs = append(linkIDs, id)
				continue
			}
			raced = append(raced, c.Fingerprint)
		}

		if len(raced) > 0 {
			found, err := tx.FindBeneficiaryIDs(ctx, raced)
			if err != nil {
				return errors.Wrap(err, "look up raced beneficiaries")
			}
			for _, fp := range raced {
				id, ok := found[fp]
				if !ok {
					return errors.Errorf("beneficiary with fingerprint %s neither inserted nor found", fp)
				}
				linkIDs = append(linkIDs, id)
			}
		}
		linkIDs = append(linkIDs, res.IDsNeedingNewLink...)

		created, err := tx.InsertEnrollmentLinks(ctx, formationID, linkIDs)
		if err != nil {
			return errors.Wrap(err, "insert enrollment links")
		}

		result.NewBeneficiariesInserted = len(inserted)
		result.NewLinksCreated = created
		return nil
	})
	if err != nil {
		return domain.ImportResult{}, transactionError(err)
	}
	return result, nil
}
