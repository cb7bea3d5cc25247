package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/ignite/beneficiary-import/internal/domain"
	"github.com/ignite/beneficiary-import/internal/pkg/logger"
	"github.com/ignite/beneficiary-import/internal/service/importing"
)

// insertBatchSize bounds rows per INSERT statement; 12 params per row keeps
// a full batch well under the 65535 bind parameter limit.
const insertBatchSize = 500

const beneficiaryColumns = 12

// BeneficiaryRepo implements importing.Repository against PostgreSQL.
type BeneficiaryRepo struct{ db *sql.DB }

// NewBeneficiaryRepo creates a Postgres-backed import repository.
func NewBeneficiaryRepo(db *sql.DB) *BeneficiaryRepo { return &BeneficiaryRepo{db: db} }

var _ importing.Repository = (*BeneficiaryRepo)(nil)

func (r *BeneficiaryRepo) FormationExists(ctx context.Context, formationID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM formations WHERE id = $1)`,
		formationID,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "formation exists")
	}
	return exists, nil
}

func (r *BeneficiaryRepo) ListAllFingerprints(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, fingerprint FROM beneficiaries`)
	if err != nil {
		return nil, errors.Wrap(err, "list fingerprints")
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, fp string
		if err := rows.Scan(&id, &fp); err != nil {
			return nil, errors.Wrap(err, "scan fingerprint")
		}
		out[fp] = id
	}
	return out, errors.Wrap(rows.Err(), "iterate fingerprints")
}

func (r *BeneficiaryRepo) LinkedBeneficiaryIDs(ctx context.Context, formationID string, ids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT beneficiary_id FROM enrollment_links
		WHERE formation_id = $1 AND beneficiary_id = ANY($2::uuid[])
	`, formationID, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "linked beneficiaries")
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan linked beneficiary")
		}
		out[id] = true
	}
	return out, errors.Wrap(rows.Err(), "iterate linked beneficiaries")
}

// WithinTx runs fn inside a database transaction. A panic in fn rolls the
// transaction back before propagating.
func (r *BeneficiaryRepo) WithinTx(ctx context.Context, fn func(tx importing.TxRepository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&beneficiaryTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Error("transaction rollback failed", "error", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// beneficiaryTx implements importing.TxRepository over one *sql.Tx.
type beneficiaryTx struct{ tx *sql.Tx }

func (t *beneficiaryTx) InsertBeneficiaries(ctx context.Context, bs []domain.Beneficiary) (map[string]string, error) {
	out := make(map[string]string, len(bs))
	for start := 0; start < len(bs); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(bs) {
			end = len(bs)
		}
		if err := t.insertBatch(ctx, bs[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *beneficiaryTx) insertBatch(ctx context.Context, batch []domain.Beneficiary, out map[string]string) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO beneficiaries
		(id, name, first_name, email, gender, country, level, professional_situation, region, age_range, phone, fingerprint)
		VALUES `)
	args := make([]interface{}, 0, len(batch)*beneficiaryColumns)
	for i, b := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 1; c <= beneficiaryColumns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*beneficiaryColumns+c)
		}
		sb.WriteString(")")

		fp := b.Fingerprint
		if fp == "" {
			fp = b.IdentityFingerprint()
		}
		args = append(args, uuid.New().String(), b.Name, b.FirstName, b.Email, b.Gender, b.Country,
			nullString(b.Level), nullString(b.ProfessionalSituation), nullString(b.Region),
			nullString(b.AgeRange), nullString(b.Phone), fp)
	}
	sb.WriteString(` ON CONFLICT (fingerprint) DO NOTHING RETURNING id, fingerprint`)

	rows, err := t.tx.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return errors.Wrap(err, "insert beneficiaries")
	}
	defer rows.Close()
	for rows.Next() {
		var id, fp string
		if err := rows.Scan(&id, &fp); err != nil {
			return errors.Wrap(err, "scan inserted beneficiary")
		}
		out[fp] = id
	}
	return errors.Wrap(rows.Err(), "iterate inserted beneficiaries")
}

func (t *beneficiaryTx) FindBeneficiaryIDs(ctx context.Context, fingerprints []string) (map[string]string, error) {
	out := make(map[string]string, len(fingerprints))
	if len(fingerprints) == 0 {
		return out, nil
	}
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, fingerprint FROM beneficiaries WHERE fingerprint = ANY($1)`,
		pq.Array(fingerprints),
	)
	if err != nil {
		return nil, errors.Wrap(err, "find beneficiaries")
	}
	defer rows.Close()
	for rows.Next() {
		var id, fp string
		if err := rows.Scan(&id, &fp); err != nil {
			return nil, errors.Wrap(err, "scan beneficiary")
		}
		out[fp] = id
	}
	return out, errors.Wrap(rows.Err(), "iterate beneficiaries")
}

func (t *beneficiaryTx) InsertEnrollmentLinks(ctx context.Context, formationID string, beneficiaryIDs []string) (int, error) {
	if len(beneficiaryIDs) == 0 {
		return 0, nil
	}
	seen := make(map[string]bool, len(beneficiaryIDs))
	links := make([]domain.EnrollmentLink, 0, len(beneficiaryIDs))
	for _, id := range beneficiaryIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		links = append(links, domain.EnrollmentLink{
			ID:            uuid.New().String(),
			FormationID:   formationID,
			BeneficiaryID: id,
		})
	}

	var (
		ids, targets             = make([]string, len(links)), make([]string, len(links))
		calls, emails, submitted = make([]bool, len(links)), make([]bool, len(links)), make([]bool, len(links))
	)
	for i, l := range links {
		ids[i], targets[i] = l.ID, l.BeneficiaryID
		calls[i], emails[i], submitted[i] = l.CallConfirmed, l.EmailConfirmed, l.Submitted
	}

	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO enrollment_links
			(id, formation_id, beneficiary_id, call_confirmed, email_confirmed, submitted)
		SELECT l.id, $2, l.beneficiary_id, l.call_confirmed, l.email_confirmed, l.submitted
		FROM unnest($1::uuid[], $3::uuid[], $4::bool[], $5::bool[], $6::bool[])
			AS l(id, beneficiary_id, call_confirmed, email_confirmed, submitted)
		ON CONFLICT (beneficiary_id, formation_id) DO NOTHING
	`, pq.Array(ids), formationID, pq.Array(targets), pq.Array(calls), pq.Array(emails), pq.Array(submitted))
	if err != nil {
		return 0, errors.Wrap(err, "insert enrollment links")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "enrollment links rows affected")
	}
	return int(n), nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
