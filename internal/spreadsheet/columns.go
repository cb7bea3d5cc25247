package spreadsheet

import (
	"strings"

	"github.com/ignite/beneficiary-import/internal/domain"
)

// Field identifies the beneficiary attribute a column feeds.
type Field string

const (
	FieldName                  Field = "name"
	FieldFirstName             Field = "firstName"
	FieldEmail                 Field = "email"
	FieldGender                Field = "gender"
	FieldCountry               Field = "country"
	FieldLevel                 Field = "level"
	FieldProfessionalSituation Field = "professionalSituation"
	FieldRegion                Field = "region"
	FieldAgeRange              Field = "ageRange"
	FieldPhone                 Field = "phone"
)

// Column declares one expected header. Header matching is exact and
// case-sensitive after trimming the header cell.
type Column struct {
	Header   string
	Field    Field
	Required bool
}

// Columns is the fixed header table for beneficiary uploads.
var Columns = []Column{
	{Header: "Nom", Field: FieldName, Required: true},
	{Header: "Prénom", Field: FieldFirstName, Required: true},
	{Header: "Email", Field: FieldEmail, Required: true},
	{Header: "Genre", Field: FieldGender, Required: true},
	{Header: "Pays", Field: FieldCountry, Required: true},
	{Header: "Niveau", Field: FieldLevel},
	{Header: "Situation Professionnelle", Field: FieldProfessionalSituation},
	{Header: "Région", Field: FieldRegion},
	{Header: "Tranche d'âge", Field: FieldAgeRange},
	{Header: "Téléphone", Field: FieldPhone},
}

// columnMapping holds the resolved header row: column index -> field.
type columnMapping struct {
	fields map[int]Field
}

// mapHeader resolves a header row against Columns and returns a ParseError
// listing every required header that is absent.
func mapHeader(header []string) (*columnMapping, error) {
	byHeader := make(map[string]Column, len(Columns))
	for _, c := range Columns {
		byHeader[c.Header] = c
	}

	m := &columnMapping{fields: make(map[int]Field, len(header))}
	seen := make(map[Field]bool, len(Columns))
	for i, h := range header {
		col, ok := byHeader[strings.TrimSpace(h)]
		if !ok || seen[col.Field] {
			continue
		}
		m.fields[i] = col.Field
		seen[col.Field] = true
	}

	var missing []string
	for _, c := range Columns {
		if c.Required && !seen[c.Field] {
			missing = append(missing, c.Header)
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{Reason: "missing required headers", Missing: missing}
	}
	return m, nil
}

// record builds a beneficiary from one data row. Cells beyond the row
// length count as blank. It returns the headers of required columns left
// blank, in Columns order, and false for a fully blank row.
func (m *columnMapping) record(row []string) (domain.Beneficiary, []string, bool) {
	var b domain.Beneficiary
	blank := true
	filled := make(map[Field]bool, len(m.fields))
	for idx, field := range m.fields {
		if idx >= len(row) {
			continue
		}
		val := strings.TrimSpace(row[idx])
		if val == "" {
			continue
		}
		filled[field] = true
		blank = false
		switch field {
		case FieldName:
			b.Name = val
		case FieldFirstName:
			b.FirstName = val
		case FieldEmail:
			b.Email = val
		case FieldGender:
			b.Gender = val
		case FieldCountry:
			b.Country = val
		case FieldLevel:
			b.Level = &val
		case FieldProfessionalSituation:
			b.ProfessionalSituation = &val
		case FieldRegion:
			b.Region = &val
		case FieldAgeRange:
			b.AgeRange = &val
		case FieldPhone:
			b.Phone = &val
		}
	}
	if blank {
		return b, nil, false
	}

	var missing []string
	for _, c := range Columns {
		if c.Required && !filled[c.Field] {
			missing = append(missing, c.Header)
		}
	}
	return b, missing, true
}
