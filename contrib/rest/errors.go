package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/privacy"
)

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Status returns the HTTP status and error code for err.
func Status(err error) (int, string) {
	switch {
	case dbrest.IsTableNotFound(err):
		return http.StatusNotFound, "table_not_found"
	case dbrest.IsColumnNotFound(err):
		return http.StatusNotFound, "column_not_found"
	case dbrest.IsRecordNotFound(err):
		return http.StatusNotFound, "record_not_found"
	case dbrest.IsArgumentCountMismatch(err):
		return http.StatusUnprocessableEntity, "argument_count_mismatch"
	case dbrest.IsDuplicateKey(err):
		return http.StatusConflict, "duplicate_key"
	case dbrest.IsDataIntegrity(err):
		return http.StatusConflict, "data_integrity_violation"
	case dbrest.IsUnsupportedOperation(err):
		return http.StatusMethodNotAllowed, "unsupported_operation"
	case errors.Is(err, privacy.Deny):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, errBody):
		return http.StatusBadRequest, "malformed_body"
	default:
		return http.StatusInternalServerError, "database_error"
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code := Status(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(c.Request.Context(), "request failed", "id", RequestIDFrom(c), "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: err.Error()})
}
