package api

import (
	"context"

	"github.com/ignite/beneficiary-import/internal/domain"
	"github.com/ignite/beneficiary-import/internal/service/importing"
)

// ImportService is the part of *importing.Service the handlers call.
type ImportService interface {
	Import(ctx context.Context, req importing.ImportRequest) (*importing.ImportOutcome, error)
	Preview(ctx context.Context, req importing.ImportRequest) (*importing.Preview, error)
	ListImports(ctx context.Context, filter importing.ImportLogFilter) ([]domain.ImportLog, int, error)
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	imports     ImportService
	maxUpload   int64
	hideDetails bool
}

// NewHandlers creates handlers over the import service. maxUpload caps the
// request body in bytes; hideDetails suppresses error detail in responses.
func NewHandlers(imports ImportService, maxUpload int64, hideDetails bool) *Handlers {
	return &Handlers{imports: imports, maxUpload: maxUpload, hideDetails: hideDetails}
}
