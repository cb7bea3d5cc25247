package importing

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ignite/beneficiary-import/internal/domain"
	"github.com/ignite/beneficiary-import/internal/pkg/logger"
	"github.com/ignite/beneficiary-import/internal/spreadsheet"
)

// ImportRequest is one uploaded file aimed at one formation.
type ImportRequest struct {
	FormationID string `validate:"required,uuid"`
	FileName    string
	Content     []byte `validate:"required,min=1"`
}

// ImportOutcome is the result of a committed import plus the audit detail
// behind it.
type ImportOutcome struct {
	domain.ImportResult
	TotalRows     int    `json:"totalRows"`
	DuplicateRows int    `json:"duplicateRows"`
	ArchiveKey    string `json:"archiveKey,omitempty"`
}

// Preview reports what an import would do without writing anything.
type Preview struct {
	TotalRows        int `json:"totalRows"`
	NewBeneficiaries int `json:"newBeneficiaries"`
	ExistingMatched  int `json:"existingMatched"`
	LinksToCreate    int `json:"linksToCreate"`
	DuplicateRows    int `json:"duplicateRows"`
}

// Lock is a mutual-exclusion handle for one formation's imports.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFunc returns the lock guarding key.
type LockFunc func(key string) Lock

// Archiver stores the original upload and returns the key it was stored under.
type Archiver interface {
	Archive(ctx context.Context, formationID, fileName string, content []byte) (string, error)
}

// Notifier announces a finished import.
type Notifier interface {
	NotifyImport(ctx context.Context, log domain.ImportLog) error
}

// Metrics records import outcomes. outcome is "completed" or an error Kind.
type Metrics interface {
	ImportFinished(outcome string, totalRows int, result domain.ImportResult, elapsed time.Duration)
}

// Service runs the import pipeline. It is safe for concurrent use; the
// optional collaborators must be set before the first call.
type Service struct {
	repo     Repository
	resolver *Resolver
	writer   *Writer
	validate *validator.Validate
	// parseFile is spreadsheet.Parse outside tests.
	parseFile func(content []byte) ([]domain.Beneficiary, error)

	lockFor  LockFunc
	archiver Archiver
	notifier Notifier
	metrics  Metrics
	now      func() time.Time
}

// NewService creates an import service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo:      repo,
		resolver:  NewResolver(repo),
		writer:    NewWriter(repo),
		validate:  validator.New(),
		parseFile: spreadsheet.Parse,
		now:       time.Now,
	}
}

// SetLocker enables per-formation locking around the resolve and write phases.
func (s *Service) SetLocker(fn LockFunc) { s.lockFor = fn }

// SetArchiver enables archiving of committed uploads.
func (s *Service) SetArchiver(a Archiver) { s.archiver = a }

// SetNotifier enables import summary notifications.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetMetrics enables import metrics.
func (s *Service) SetMetrics(m Metrics) { s.metrics = m }

// Import parses req.Content, resolves it against existing beneficiaries and
// links everything to req.FormationID in one transaction.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportOutcome, error) {
	start := s.now()
	if err := s.validateRequest(req); err != nil {
		s.observe(err, 0, domain.ImportResult{}, start)
		return nil, err
	}

	entry := &domain.ImportLog{FormationID: req.FormationID, FileName: req.FileName}
	outcome, err := s.runImport(ctx, req, entry)
	if err != nil {
		entry.Status = domain.ImportFailed
		entry.ErrorKind = string(KindOf(err))
		entry.ErrorMessage = publicMessage(err)
		s.record(context.WithoutCancel(ctx), entry)
		s.observe(err, entry.TotalRows, domain.ImportResult{}, start)
		logger.Warn("beneficiary import failed",
			"formation_id", req.FormationID, "file", req.FileName,
			"kind", entry.ErrorKind, "error", err.Error())
		return nil, err
	}

	entry.Status = domain.ImportCompleted
	// post-commit steps outlive the request
	s.afterCommit(context.WithoutCancel(ctx), req, entry, outcome)
	s.observe(nil, outcome.TotalRows, outcome.ImportResult, start)
	logger.Info("beneficiary import completed",
		"formation_id", req.FormationID, "file", req.FileName,
		"rows", outcome.TotalRows, "duplicates", outcome.DuplicateRows,
		"inserted", outcome.NewBeneficiariesInserted, "links", outcome.NewLinksCreated,
		"elapsed_ms", s.now().Sub(start).Milliseconds())
	return outcome, nil
}

func (s *Service) runImport(ctx context.Context, req ImportRequest, entry *domain.ImportLog) (*ImportOutcome, error) {
	candidates, err := s.parse(req)
	if err != nil {
		return nil, err
	}
	entry.TotalRows = len(candidates)

	if err := s.checkFormation(ctx, req.FormationID); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, req.FormationID)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.resolver.Resolve(ctx, candidates, req.FormationID)
	if err != nil {
		return nil, err
	}
	entry.DuplicateRows = res.DuplicateRows

	result, err := s.writer.Write(ctx, res, req.FormationID)
	if err != nil {
		return nil, err
	}
	entry.NewBeneficiaries = result.NewBeneficiariesInserted
	entry.LinksCreated = result.NewLinksCreated

	return &ImportOutcome{
		ImportResult:  result,
		TotalRows:     res.TotalRows,
		DuplicateRows: res.DuplicateRows,
	}, nil
}

// Preview runs validation, parsing and resolution without writing.
func (s *Service) Preview(ctx context.Context, req ImportRequest) (*Preview, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	candidates, err := s.parse(req)
	if err != nil {
		return nil, err
	}
	if err := s.checkFormation(ctx, req.FormationID); err != nil {
		return nil, err
	}
	res, err := s.resolver.Resolve(ctx, candidates, req.FormationID)
	if err != nil {
		return nil, err
	}
	return &Preview{
		TotalRows:        res.TotalRows,
		NewBeneficiaries: len(res.NewCandidates),
		ExistingMatched:  len(res.ExistingMatchedIDs),
		LinksToCreate:    len(res.NewCandidates) + len(res.IDsNeedingNewLink),
		DuplicateRows:    res.DuplicateRows,
	}, nil
}

// ListImports returns import history matching filter.
func (s *Service) ListImports(ctx context.Context, filter ImportLogFilter) ([]domain.ImportLog, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	logs, total, err := s.repo.ListImports(ctx, filter)
	if err != nil {
		return nil, 0, storeReadError(err)
	}
	return logs, total, nil
}

func (s *Service) validateRequest(req ImportRequest) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "FormationID":
				if verrs[0].Tag() == "required" {
					return validationError("formationId is required", err)
				}
				return validationError("formationId is not a valid identifier", err)
			case "Content":
				return validationError("no file uploaded", err)
			}
		}
		return validationError("invalid import request", err)
	}
	return nil
}

func (s *Service) parse(req ImportRequest) ([]domain.Beneficiary, error) {
	candidates, err := s.parseFile(req.Content)
	switch {
	case err == nil:
		return candidates, nil
	case errors.Is(err, spreadsheet.ErrNoSheets):
		return nil, validationError("spreadsheet has no sheets", err)
	case errors.Is(err, spreadsheet.ErrNoRows):
		return nil, validationError("spreadsheet has no rows", err)
	default:
		var pe *spreadsheet.ParseError
		if errors.As(err, &pe) && (len(pe.Missing) > 0 || len(pe.Incomplete) > 0) {
			return nil, &Error{Kind: KindParse, Message: pe.Error(), Err: err}
		}
		return nil, parseError(err)
	}
}

func (s *Service) checkFormation(ctx context.Context, formationID string) error {
	ok, err := s.repo.FormationExists(ctx, formationID)
	if err != nil {
		return storeReadError(err)
	}
	if !ok {
		return validationError("formation "+formationID+" does not exist", nil)
	}
	return nil
}

func (s *Service) lock(ctx context.Context, formationID string) (func(), error) {
	if s.lockFor == nil {
		return func() {}, nil
	}
	l := s.lockFor("beneficiary-import:" + formationID)
	ok, err := l.Acquire(ctx)
	if err != nil {
		return nil, &Error{Kind: KindStoreRead, Message: "failed to acquire import lock", Err: err}
	}
	if !ok {
		return nil, conflictError(formationID)
	}
	return func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("import lock release failed", "formation_id", formationID, "error", err.Error())
		}
	}, nil
}

// afterCommit runs the best-effort steps; their failures never undo the
// committed import.
func (s *Service) afterCommit(ctx context.Context, req ImportRequest, entry *domain.ImportLog, outcome *ImportOutcome) {
	if s.archiver != nil {
		key, err := s.archiver.Archive(ctx, req.FormationID, req.FileName, req.Content)
		if err != nil {
			logger.Warn("archive upload failed", "formation_id", req.FormationID, "file", req.FileName, "error", err.Error())
		} else {
			entry.ArchiveKey = key
			outcome.ArchiveKey = key
		}
	}

	s.record(ctx, entry)

	if s.notifier != nil {
		if err := s.notifier.NotifyImport(ctx, *entry); err != nil {
			logger.Warn("import notification failed", "formation_id", req.FormationID, "error", err.Error())
		}
	}
}

func (s *Service) record(ctx context.Context, entry *domain.ImportLog) {
	entry.CreatedAt = s.now().UTC()
	if err := s.repo.RecordImport(ctx, entry); err != nil {
		logger.Warn("import log write failed", "formation_id", entry.FormationID, "error", err.Error())
	}
}

func (s *Service) observe(err error, totalRows int, result domain.ImportResult, start time.Time) {
	if s.metrics == nil {
		return
	}
	outcome := string(domain.ImportCompleted)
	if err != nil {
		outcome = string(KindOf(err))
	}
	s.metrics.ImportFinished(outcome, totalRows, result, s.now().Sub(start))
}
