package api

import (
	"errors"
	"net/http"

	"github.com/ignite/beneficiary-import/internal/pkg/httputil"
	"github.com/ignite/beneficiary-import/internal/pkg/logger"
	"github.com/ignite/beneficiary-import/internal/service/importing"
)

// statusForKind maps pipeline failure kinds to HTTP statuses.
var statusForKind = map[importing.Kind]int{
	importing.KindValidation:  http.StatusBadRequest,
	importing.KindParse:       http.StatusUnprocessableEntity,
	importing.KindConflict:    http.StatusConflict,
	importing.KindStoreRead:   http.StatusServiceUnavailable,
	importing.KindTransaction: http.StatusInternalServerError,
}

// respondImportError writes the error envelope for a service failure. The
// message is always the service's public message; the underlying error is
// only exposed outside production. Unclassified errors become a generic 500.
func (h *Handlers) respondImportError(w http.ResponseWriter, err error) {
	var e *importing.Error
	if !errors.As(err, &e) {
		httputil.InternalError(w, err)
		return
	}

	status, ok := statusForKind[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		logger.Error("import request failed", "kind", string(e.Kind), "error", err)
	}

	if h.hideDetails || e.Err == nil {
		httputil.Error(w, status, string(e.Kind), e.Message)
		return
	}
	httputil.ErrorWithDetail(w, status, string(e.Kind), e.Message, e.Err.Error())
}
