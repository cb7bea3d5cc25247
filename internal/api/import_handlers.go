package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/beneficiary-import/internal/pkg/httputil"
	"github.com/ignite/beneficiary-import/internal/service/importing"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temp files.
const multipartMemory = 8 << 20

// HandleImport imports a spreadsheet into one formation.
//
//	POST /api/beneficiaries/import  (multipart: file, formationId)
func (h *Handlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	out, err := h.imports.Import(r.Context(), req)
	if err != nil {
		h.respondImportError(w, err)
		return
	}
	httputil.OK(w, out.ImportResult)
}

// HandlePreview reports what an import would do without writing.
//
//	POST /api/beneficiaries/import/preview  (multipart: file, formationId)
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	p, err := h.imports.Preview(r.Context(), req)
	if err != nil {
		h.respondImportError(w, err)
		return
	}
	httputil.OK(w, p)
}

// HandleListImports returns import history, newest first.
//
//	GET /api/imports?formationId=&page=&limit=
func (h *Handlers) HandleListImports(w http.ResponseWriter, r *http.Request) {
	formationID := strings.TrimSpace(r.URL.Query().Get("formationId"))
	if formationID != "" {
		if _, err := uuid.Parse(formationID); err != nil {
			httputil.BadRequest(w, "formationId is not a valid identifier")
			return
		}
	}
	params := ParsePagination(r, 20, 100)

	logs, total, err := h.imports.ListImports(r.Context(), importing.ImportLogFilter{
		FormationID: formationID,
		Limit:       params.Limit,
		Offset:      params.Offset,
	})
	if err != nil {
		h.respondImportError(w, err)
		return
	}
	httputil.OK(w, NewPaginatedResponse(logs, params, total))
}

// readUpload extracts the multipart fields. A missing file is passed on as
// empty content so the service reports it after checking formationId.
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request) (importing.ImportRequest, bool) {
	var req importing.ImportRequest
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, string(importing.KindValidation), "uploaded file is too large")
			return req, false
		}
		httputil.BadRequest(w, "expected a multipart form with file and formationId")
		return req, false
	}

	req.FormationID = strings.TrimSpace(r.FormValue("formationId"))

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req, true
	case err != nil:
		httputil.BadRequest(w, "unreadable file field")
		return req, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		httputil.BadRequest(w, "unreadable file field")
		return req, false
	}
	req.FileName = header.Filename
	req.Content = content
	return req, true
}
