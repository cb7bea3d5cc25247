package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ignite/beneficiary-import/internal/domain"
	"github.com/ignite/beneficiary-import/internal/service/importing"
)

func (r *BeneficiaryRepo) RecordImport(ctx context.Context, l *domain.ImportLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO beneficiary_imports
			(id, formation_id, file_name, archive_key, total_rows, new_beneficiaries,
			 links_created, duplicate_rows, status, error_kind, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, l.ID, l.FormationID, l.FileName, l.ArchiveKey, l.TotalRows, l.NewBeneficiaries,
		l.LinksCreated, l.DuplicateRows, string(l.Status), l.ErrorKind, l.ErrorMessage, l.CreatedAt)
	return errors.Wrap(err, "record import")
}

func (r *BeneficiaryRepo) ListImports(ctx context.Context, f importing.ImportLogFilter) ([]domain.ImportLog, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM beneficiary_imports
		WHERE ($1 = '' OR formation_id::text = $1)
	`, f.FormationID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count imports")
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, formation_id, file_name, archive_key, total_rows, new_beneficiaries,
		       links_created, duplicate_rows, status, error_kind, error_message, created_at
		FROM beneficiary_imports
		WHERE ($1 = '' OR formation_id::text = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, f.FormationID, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list imports")
	}
	defer rows.Close()

	var out []domain.ImportLog
	for rows.Next() {
		var l domain.ImportLog
		var status string
		if err := rows.Scan(&l.ID, &l.FormationID, &l.FileName, &l.ArchiveKey, &l.TotalRows,
			&l.NewBeneficiaries, &l.LinksCreated, &l.DuplicateRows, &status,
			&l.ErrorKind, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, 0, errors.Wrap(err, "scan import")
		}
		l.Status = domain.ImportStatus(status)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "iterate imports")
	}
	return out, total, nil
}
