package importing

import (
	"context"

	"github.com/ignite/beneficiary-import/internal/domain"
)

// Repository defines the data access contract for the import pipeline.
type Repository interface {
	// FormationExists reports whether a formation with the given id exists.
	FormationExists(ctx context.Context, formationID string) (bool, error)

	// ListAllFingerprints returns fingerprint -> beneficiary id for every
	// existing beneficiary.
	ListAllFingerprints(ctx context.Context) (map[string]string, error)

	// LinkedBeneficiaryIDs returns the subset of ids already linked to the
	// formation.
	LinkedBeneficiaryIDs(ctx context.Context, formationID string, ids []string) (map[string]bool, error)

	// WithinTx runs fn in one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx TxRepository) error) error

	// RecordImport stores an audit row for an import attempt.
	RecordImport(ctx context.Context, log *domain.ImportLog) error

	// ListImports returns import audit rows, newest first, with the total
	// count matching the filter.
	ListImports(ctx context.Context, filter ImportLogFilter) ([]domain.ImportLog, int, error)
}

// TxRepository holds the writes performed inside WithinTx.
type TxRepository interface {
	// InsertBeneficiaries bulk-inserts beneficiaries and returns
	// fingerprint -> generated id for the rows actually inserted. Rows whose
	// fingerprint already exists are skipped, not reported as errors.
	InsertBeneficiaries(ctx context.Context, beneficiaries []domain.Beneficiary) (map[string]string, error)

	// FindBeneficiaryIDs returns fingerprint -> id for the given fingerprints
	// as seen inside the transaction.
	FindBeneficiaryIDs(ctx context.Context, fingerprints []string) (map[string]string, error)

	// InsertEnrollmentLinks links each beneficiary to the formation with all
	// confirmation flags false. Pairs that already exist are skipped. Returns
	// the number of links created.
	InsertEnrollmentLinks(ctx context.Context, formationID string, beneficiaryIDs []string) (int, error)
}

// ImportLogFilter controls pagination and filtering for import history.
type ImportLogFilter struct {
	FormationID string
	Limit       int
	Offset      int
}
