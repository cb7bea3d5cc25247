package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/beneficiary-import/internal/domain"
	"github.com/ignite/beneficiary-import/internal/pkg/httputil"
	"github.com/ignite/beneficiary-import/internal/service/importing"
)

const testFormationID = "3b9e8f4c-1d2a-4e6b-8c7d-5a4f3e2d1c0b"

type fakeImports struct {
	lastReq    importing.ImportRequest
	lastFilter importing.ImportLogFilter
	outcome    *importing.ImportOutcome
	preview    *importing.Preview
	logs       []domain.ImportLog
	total      int
	err        error
}

func (f *fakeImports) Import(_ context.Context, req importing.ImportRequest) (*importing.ImportOutcome, error) {
	f.lastReq = req
	return f.outcome, f.err
}

func (f *fakeImports) Preview(_ context.Context, req importing.ImportRequest) (*importing.Preview, error) {
	f.lastReq = req
	return f.preview, f.err
}

func (f *fakeImports) ListImports(_ context.Context, filter importing.ImportLogFilter) ([]domain.ImportLog, int, error) {
	f.lastFilter = filter
	return f.logs, f.total, f.err
}

func newTestRouter(svc ImportService, hideDetails bool) http.Handler {
	return SetupRoutes(NewHandlers(svc, 1<<20, hideDetails), nil, RouteOptions{
		AllowedOrigins: []string{"http://localhost:3000"},
	})
}

func uploadRequest(t *testing.T, path string, fields map[string]string, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleImport_Success(t *testing.T) {
	svc := &fakeImports{outcome: &importing.ImportOutcome{
		ImportResult: domain.ImportResult{NewBeneficiariesInserted: 2, NewLinksCreated: 3},
		TotalRows:    3,
	}}
	rec := httptest.NewRecorder()
	req := uploadRequest(t, "/api/beneficiaries/import",
		map[string]string{"formationId": " " + testFormationID + " "}, "inscrits.xlsx", []byte("PK-bytes"))

	newTestRouter(svc, false).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"newBeneficiariesInserted":2,"newLinksCreated":3}`, rec.Body.String())
	assert.Equal(t, testFormationID, svc.lastReq.FormationID)
	assert.Equal(t, "inscrits.xlsx", svc.lastReq.FileName)
	assert.Equal(t, []byte("PK-bytes"), svc.lastReq.Content)
}

func TestHandleImport_MissingFilePassesEmptyContent(t *testing.T) {
	svc := &fakeImports{err: &importing.Error{Kind: importing.KindValidation, Message: "no file uploaded"}}
	rec := httptest.NewRecorder()
	req := uploadRequest(t, "/api/beneficiaries/import", map[string]string{"formationId": testFormationID}, "", nil)

	newTestRouter(svc, false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.lastReq.Content)
	resp := decodeError(t, rec)
	assert.Equal(t, "validation", resp.Code)
	assert.Equal(t, "no file uploaded", resp.Message)
}

func TestHandleImport_NotMultipart(t *testing.T) {
	svc := &fakeImports{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/beneficiaries/import", bytes.NewBufferString(`{"formationId":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	newTestRouter(svc, false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeError(t, rec).Code)
}

func TestHandleImport_TooLarge(t *testing.T) {
	svc := &fakeImports{}
	h := NewHandlers(svc, 512, false)
	router := SetupRoutes(h, nil, RouteOptions{})
	rec := httptest.NewRecorder()
	req := uploadRequest(t, "/api/beneficiaries/import",
		map[string]string{"formationId": testFormationID}, "big.csv", bytes.Repeat([]byte("a"), 4096))

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleImport_ErrorKindsMapToStatus(t *testing.T) {
	cases := []struct {
		kind   importing.Kind
		status int
	}{
		{importing.KindValidation, http.StatusBadRequest},
		{importing.KindParse, http.StatusUnprocessableEntity},
		{importing.KindConflict, http.StatusConflict},
		{importing.KindStoreRead, http.StatusServiceUnavailable},
		{importing.KindTransaction, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			svc := &fakeImports{err: &importing.Error{Kind: tc.kind, Message: "it failed", Err: errors.New("pq: deadlock detected")}}
			rec := httptest.NewRecorder()
			req := uploadRequest(t, "/api/beneficiaries/import",
				map[string]string{"formationId": testFormationID}, "a.csv", []byte("Nom\n"))

			newTestRouter(svc, false).ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, string(tc.kind), resp.Code)
			assert.Equal(t, "it failed", resp.Message)
			assert.Equal(t, "pq: deadlock detected", resp.Detail)
		})
	}
}

func TestHandleImport_HidesDetailsInProduction(t *testing.T) {
	svc := &fakeImports{err: &importing.Error{
		Kind: importing.KindTransaction, Message: "import failed and was rolled back; resubmit the file",
		Err: errors.New(`pq: duplicate key value violates unique constraint "beneficiaries_fingerprint_key"`),
	}}
	rec := httptest.NewRecorder()
	req := uploadRequest(t, "/api/beneficiaries/import",
		map[string]string{"formationId": testFormationID}, "a.csv", []byte("Nom\n"))

	newTestRouter(svc, true).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "beneficiaries_fingerprint_key")
	assert.Empty(t, decodeError(t, rec).Detail)
}

func TestHandleImport_UnclassifiedErrorIsGeneric(t *testing.T) {
	svc := &fakeImports{err: errors.New("something odd")}
	rec := httptest.NewRecorder()
	req := uploadRequest(t, "/api/beneficiaries/import",
		map[string]string{"formationId": testFormationID}, "a.csv", []byte("Nom\n"))

	newTestRouter(svc, false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", decodeError(t, rec).Code)
	assert.NotContains(t, rec.Body.String(), "something odd")
}

func TestHandlePreview(t *testing.T) {
	svc := &fakeImports{preview: &importing.Preview{TotalRows: 4, NewBeneficiaries: 1, ExistingMatched: 2, LinksToCreate: 2, DuplicateRows: 1}}
	rec := httptest.NewRecorder()
	req := uploadRequest(t, "/api/beneficiaries/import/preview",
		map[string]string{"formationId": testFormationID}, "a.csv", []byte("Nom\n"))

	newTestRouter(svc, false).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"totalRows":4,"newBeneficiaries":1,"existingMatched":2,"linksToCreate":2,"duplicateRows":1}`, rec.Body.String())
}

func TestHandleListImports(t *testing.T) {
	svc := &fakeImports{
		logs:  []domain.ImportLog{{ID: "imp-1", FormationID: testFormationID, Status: domain.ImportCompleted}},
		total: 41,
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/imports?formationId="+testFormationID+"&page=2&limit=20", nil)

	newTestRouter(svc, false).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, importing.ImportLogFilter{FormationID: testFormationID, Limit: 20, Offset: 20}, svc.lastFilter)

	var resp struct {
		Data       []domain.ImportLog `json:"data"`
		Pagination PaginationMeta     `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, 3, resp.Pagination.TotalPages)
	assert.True(t, resp.Pagination.HasMore)
}

func TestHandleListImports_InvalidFormation(t *testing.T) {
	svc := &fakeImports{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/imports?formationId=not-a-uuid", nil)

	newTestRouter(svc, false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "validation", resp.Code)
	assert.Equal(t, "formationId is not a valid identifier", resp.Message)
}

func TestParsePagination_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=-1&limit=5000", nil)
	p := ParsePagination(req, 20, 100)
	assert.Equal(t, PaginationParams{Page: 1, Limit: 100, Offset: 0}, p)
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/beneficiaries/import", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	newTestRouter(&fakeImports{}, false).ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
