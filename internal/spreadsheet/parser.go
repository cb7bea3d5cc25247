// Package spreadsheet turns an uploaded beneficiary file (xlsx workbook or
// CSV) into beneficiary candidates. Only the first sheet of a workbook is
// read; headers are matched against the declared Columns table.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/ignite/beneficiary-import/internal/domain"
)

var (
	// ErrNoSheets is returned when a workbook contains no sheets.
	ErrNoSheets = errors.New("spreadsheet has no sheets")
	// ErrNoRows is returned when the first sheet has no data rows below the header.
	ErrNoRows = errors.New("spreadsheet has no rows")
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeZip  = "application/zip"
	mimeCSV  = "text/csv"
	mimeText = "text/plain"
)

// maxReportedRows bounds how many incomplete rows a ParseError message lists.
const maxReportedRows = 10

// IncompleteRow is a data row with at least one required cell left blank.
// Row is the 1-based line number in the sheet, header included.
type IncompleteRow struct {
	Row     int
	Columns []string
}

// ParseError reports content that is readable as a file but not as a
// beneficiary table.
type ParseError struct {
	Reason     string
	Missing    []string
	Incomplete []IncompleteRow
	Err        error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if len(e.Missing) > 0 {
		msg += ": " + strings.Join(e.Missing, ", ")
	}
	if len(e.Incomplete) > 0 {
		parts := make([]string, 0, maxReportedRows+1)
		for i, r := range e.Incomplete {
			if i == maxReportedRows {
				parts = append(parts, fmt.Sprintf("and %d more", len(e.Incomplete)-maxReportedRows))
				break
			}
			parts = append(parts, fmt.Sprintf("row %d (%s)", r.Row, strings.Join(r.Columns, ", ")))
		}
		msg += ": " + strings.Join(parts, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// workbook is the part of *excelize.File the parser reads.
type workbook interface {
	GetSheetList() []string
	GetRows(sheet string, opts ...excelize.Options) ([][]string, error)
}

// Parse reads content and returns one candidate per non-blank data row, in
// file order.
func Parse(content []byte) ([]domain.Beneficiary, error) {
	if len(content) == 0 {
		return nil, ErrNoRows
	}

	mt := mimetype.Detect(content)
	switch {
	case inFamily(mt, mimeXLSX, mimeZip):
		f, err := excelize.OpenReader(bytes.NewReader(content))
		if err != nil {
			return nil, &ParseError{Reason: "unreadable workbook", Err: err}
		}
		defer f.Close()
		return parseWorkbook(f)
	case inFamily(mt, mimeCSV, mimeText):
		return parseCSV(bytes.NewReader(content))
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("unsupported file type %s", mt.String())}
	}
}

// inFamily reports whether mt or one of its parents is any of the given
// types. Workbooks written by some tools only sniff as a generic zip.
func inFamily(mt *mimetype.MIME, types ...string) bool {
	for m := mt; m != nil; m = m.Parent() {
		for _, t := range types {
			if m.Is(t) {
				return true
			}
		}
	}
	return false
}

func parseWorkbook(wb workbook) ([]domain.Beneficiary, error) {
	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Reason: "unreadable sheet " + sheets[0], Err: err}
	}
	return parseRows(rows, nil)
}

func parseCSV(r io.Reader) ([]domain.Beneficiary, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.Comma = detectDelimiter(r)

	var (
		rows  [][]string
		lines []int
	)
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Reason: "unreadable csv", Err: err}
		}
		// the reader drops empty lines, so positions come from the reader
		line, _ := reader.FieldPos(0)
		rows = append(rows, rec)
		lines = append(lines, line)
	}
	return parseRows(rows, lines)
}

// parseRows maps rows to candidates. lines[i] is the 1-based source line of
// rows[i]; a nil lines means rows[i] sits on line i+1.
func parseRows(rows [][]string, lines []int) ([]domain.Beneficiary, error) {
	lineOf := func(i int) int {
		if lines == nil {
			return i + 1
		}
		return lines[i]
	}

	// leading blank lines are not headers
	start := 0
	for start < len(rows) && isBlank(rows[start]) {
		start++
	}
	if len(rows)-start < 2 {
		return nil, ErrNoRows
	}

	mapping, err := mapHeader(rows[start])
	if err != nil {
		return nil, err
	}

	out := make([]domain.Beneficiary, 0, len(rows)-start-1)
	var incomplete []IncompleteRow
	for i := start + 1; i < len(rows); i++ {
		b, missing, ok := mapping.record(rows[i])
		if !ok {
			continue
		}
		if len(missing) > 0 {
			incomplete = append(incomplete, IncompleteRow{Row: lineOf(i), Columns: missing})
			continue
		}
		out = append(out, b)
	}
	if len(incomplete) > 0 {
		return nil, &ParseError{Reason: "rows missing required values", Incomplete: incomplete}
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// detectDelimiter peeks at the reader when it supports it; spreadsheet
// exports in French locales use ';'.
func detectDelimiter(r io.Reader) rune {
	br, ok := r.(*bytes.Reader)
	if !ok {
		return ','
	}
	buf := make([]byte, 1024)
	n, _ := br.ReadAt(buf, 0)
	line := string(buf[:n])
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil || n < 3 {
		return io.MultiReader(bytes.NewReader(buf[:n]), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(bytes.NewReader(buf[:n]), r)
}
