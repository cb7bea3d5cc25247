package spreadsheet

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var fullHeader = []interface{}{
	"Nom", "Prénom", "Email", "Genre", "Pays",
	"Niveau", "Situation Professionnelle", "Région", "Tranche d'âge", "Téléphone",
}

func buildWorkbook(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type fakeWorkbook struct {
	sheets []string
	rows   map[string][][]string
	err    error
}

func (f *fakeWorkbook) GetSheetList() []string { return f.sheets }

func (f *fakeWorkbook) GetRows(sheet string, _ ...excelize.Options) ([][]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[sheet], nil
}

func TestParse_Workbook(t *testing.T) {
	content := buildWorkbook(t,
		fullHeader,
		[]interface{}{"Diallo", "Awa", "awa@example.org", "F", "Sénégal", "Bac+3", "Étudiante", "Dakar", "18-25", "+221770000000"},
		[]interface{}{"Martin", "Paul", "paul@example.org", "M", "France"},
	)

	got, err := Parse(content)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Diallo", got[0].Name)
	assert.Equal(t, "Awa", got[0].FirstName)
	assert.Equal(t, "awa@example.org", got[0].Email)
	assert.Equal(t, "F", got[0].Gender)
	assert.Equal(t, "Sénégal", got[0].Country)
	require.NotNil(t, got[0].Level)
	assert.Equal(t, "Bac+3", *got[0].Level)
	require.NotNil(t, got[0].Phone)
	assert.Equal(t, "+221770000000", *got[0].Phone)

	assert.Equal(t, "Martin", got[1].Name)
	assert.Nil(t, got[1].Level)
	assert.Nil(t, got[1].ProfessionalSituation)
	assert.Nil(t, got[1].Region)
	assert.Nil(t, got[1].AgeRange)
	assert.Nil(t, got[1].Phone)
	assert.Empty(t, got[1].ID)
	assert.Empty(t, got[1].Fingerprint)
}

func TestParse_HeaderOrderIndependent(t *testing.T) {
	content := buildWorkbook(t,
		[]interface{}{"Email", "Pays", "Extra", "Genre", "Prénom", "Nom"},
		[]interface{}{"awa@example.org", "Sénégal", "ignored", "F", "Awa", "Diallo"},
	)

	got, err := Parse(content)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Diallo", got[0].Name)
	assert.Equal(t, "Awa", got[0].FirstName)
	assert.Equal(t, "Sénégal", got[0].Country)
}

func TestParse_MissingRequiredHeaders(t *testing.T) {
	content := buildWorkbook(t,
		[]interface{}{"Nom", "Prénom", "Genre"},
		[]interface{}{"Diallo", "Awa", "F"},
	)

	_, err := Parse(content)
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, []string{"Email", "Pays"}, pe.Missing)
	assert.Contains(t, err.Error(), "Email")
}

func TestParse_SkipsBlankRowsAndTrimsCells(t *testing.T) {
	content := buildWorkbook(t,
		fullHeader,
		[]interface{}{"  Diallo ", "Awa", "awa@example.org", "F", "Sénégal", "  "},
		[]interface{}{"", "", ""},
		[]interface{}{"Martin", "Paul", "paul@example.org", "M", "France"},
	)

	got, err := Parse(content)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Diallo", got[0].Name)
	assert.Nil(t, got[0].Level, "whitespace-only optional cell is absent")
	assert.Equal(t, "Martin", got[1].Name)
}

func TestParse_HeaderOnly(t *testing.T) {
	content := buildWorkbook(t, fullHeader)

	_, err := Parse(content)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestParse_PreservesFileOrder(t *testing.T) {
	rows := [][]interface{}{fullHeader}
	for i := 0; i < 50; i++ {
		rows = append(rows, []interface{}{fmt.Sprintf("Nom%02d", i), "P", fmt.Sprintf("u%d@example.org", i), "F", "Mali"})
	}
	got, err := Parse(buildWorkbook(t, rows...))
	require.NoError(t, err)
	require.Len(t, got, 50)
	for i, b := range got {
		assert.Equal(t, fmt.Sprintf("Nom%02d", i), b.Name)
	}
}

func TestParseWorkbook_NoSheets(t *testing.T) {
	_, err := parseWorkbook(&fakeWorkbook{})
	assert.ErrorIs(t, err, ErrNoSheets)
}

func TestParseWorkbook_OnlyFirstSheetRead(t *testing.T) {
	wb := &fakeWorkbook{
		sheets: []string{"Inscrits", "Archive"},
		rows: map[string][][]string{
			"Inscrits": {
				{"Nom", "Prénom", "Email", "Genre", "Pays"},
				{"Diallo", "Awa", "awa@example.org", "F", "Sénégal"},
			},
			"Archive": {
				{"Nom", "Prénom", "Email", "Genre", "Pays"},
				{"Old", "Row", "old@example.org", "M", "Mali"},
			},
		},
	}

	got, err := parseWorkbook(wb)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Diallo", got[0].Name)
}

func TestParseWorkbook_SheetReadError(t *testing.T) {
	_, err := parseWorkbook(&fakeWorkbook{sheets: []string{"Sheet1"}, err: errors.New("corrupt xml")})

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Error(), "corrupt xml")
}

func TestParse_CSV(t *testing.T) {
	content := []byte("\xEF\xBB\xBFNom,Prénom,Email,Genre,Pays,Téléphone\n" +
		"Diallo,Awa,awa@example.org,F,Sénégal,+221770000000\n" +
		"Martin,Paul,paul@example.org,M,France,\n")

	got, err := Parse(content)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Diallo", got[0].Name, "BOM must not leak into the first header")
	require.NotNil(t, got[0].Phone)
	assert.Nil(t, got[1].Phone)
}

func TestParse_CSVSemicolon(t *testing.T) {
	content := []byte("Nom;Prénom;Email;Genre;Pays\nDiallo;Awa;awa@example.org;F;Sénégal\n")

	got, err := Parse(content)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "awa@example.org", got[0].Email)
}

func TestParse_UnsupportedContent(t *testing.T) {
	// PNG magic
	content := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}

	_, err := Parse(content)
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Reason, "unsupported file type")
}

func TestParse_RejectsRowsWithBlankRequiredCells(t *testing.T) {
	content := buildWorkbook(t,
		fullHeader,
		[]interface{}{"Diallo", "Awa", "awa@example.org", "F", "Sénégal"},
		[]interface{}{"Martin", "", "", "M", "France"},
		[]interface{}{"", "", ""},
		[]interface{}{"  ", "Fatou", "fatou@example.org", "F", ""},
	)

	got, err := Parse(content)
	require.Error(t, err)
	assert.Nil(t, got)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Empty(t, pe.Missing)
	assert.Equal(t, []IncompleteRow{
		{Row: 3, Columns: []string{"Prénom", "Email"}},
		{Row: 5, Columns: []string{"Nom", "Pays"}},
	}, pe.Incomplete)
	assert.Contains(t, err.Error(), "row 3 (Prénom, Email)")
	assert.Contains(t, err.Error(), "row 5 (Nom, Pays)")
}

func TestParse_IncompleteRowNumbersCountLeadingBlankLines(t *testing.T) {
	content := []byte("\n\nNom,Prénom,Email,Genre,Pays\n" +
		"Diallo,Awa,,F,Sénégal\n")

	_, err := Parse(content)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	require.Len(t, pe.Incomplete, 1)
	assert.Equal(t, 4, pe.Incomplete[0].Row)
	assert.Equal(t, []string{"Email"}, pe.Incomplete[0].Columns)
}

func TestParseError_CapsListedRows(t *testing.T) {
	pe := &ParseError{Reason: "rows missing required values"}
	for i := 0; i < 14; i++ {
		pe.Incomplete = append(pe.Incomplete, IncompleteRow{Row: i + 2, Columns: []string{"Email"}})
	}

	msg := pe.Error()
	assert.Contains(t, msg, "row 11 (Email)")
	assert.NotContains(t, msg, "row 12 (Email)")
	assert.Contains(t, msg, "and 4 more")
}
