package domain

import "time"

// ImportStatus enumerates the outcomes recorded for an import attempt.
type ImportStatus string

const (
	ImportCompleted ImportStatus = "completed"
	ImportFailed    ImportStatus = "failed"
)

// ImportResult is the count summary returned to the caller of an import.
type ImportResult struct {
	NewBeneficiariesInserted int `json:"newBeneficiariesInserted"`
	NewLinksCreated          int `json:"newLinksCreated"`
}

// ImportLog is the audit row kept for every import attempt that passed
// request validation.
type ImportLog struct {
	ID               string       `json:"id" db:"id"`
	FormationID      string       `json:"formationId" db:"formation_id"`
	FileName         string       `json:"fileName" db:"file_name"`
	ArchiveKey       string       `json:"archiveKey,omitempty" db:"archive_key"`
	TotalRows        int          `json:"totalRows" db:"total_rows"`
	NewBeneficiaries int          `json:"newBeneficiaries" db:"new_beneficiaries"`
	LinksCreated     int          `json:"linksCreated" db:"links_created"`
	DuplicateRows    int          `json:"duplicateRows" db:"duplicate_rows"`
	Status           ImportStatus `json:"status" db:"status"`
	ErrorKind        string       `json:"errorKind,omitempty" db:"error_kind"`
	ErrorMessage     string       `json:"errorMessage,omitempty" db:"error_message"`
	CreatedAt        time.Time    `json:"createdAt" db:"created_at"`
}
