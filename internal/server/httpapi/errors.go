package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/server/answer"
	"github.com/dmitrijs2005/gophchat/internal/server/export"
	"github.com/dmitrijs2005/gophchat/internal/server/lease"
	"github.com/dmitrijs2005/gophchat/internal/server/services"
)

// Error codes carried in the "error" field of failure responses.
const (
	CodeBadRequest         = "bad_request"
	CodeValidation         = "validation_error"
	CodeDuplicateEmail     = "duplicate_email"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUnauthorized       = "unauthorized"
	CodeNotFound           = "not_found"
	CodeExportDisabled     = "export_disabled"
	CodeBusy               = "conversation_busy"
	CodeAITimeout          = "ai_timeout"
	CodeAIUnavailable      = "ai_unavailable"
	CodeAIRejected         = "ai_rejected"
	CodeStorage            = "storage_error"
	CodeInternal           = "internal_error"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error          string   `json:"error"`
	Message        string   `json:"message"`
	Details        []string `json:"details,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
}

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func codedErrorf(code int, format string, args ...any) error {
	return &codedError{err: fmt.Errorf(format, args...), code: code}
}

// classify maps an error returned by the services to a status and code.
func classify(err error) (int, string) {
	var cerr *codedError
	switch {
	case errors.As(err, &cerr):
		if cerr.code == http.StatusUnauthorized {
			return cerr.code, CodeUnauthorized
		}
		return cerr.code, CodeBadRequest
	case errors.Is(err, common.ErrDuplicateEmail):
		return http.StatusConflict, CodeDuplicateEmail
	case common.IsValidation(err):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, CodeInvalidCredentials
	case common.IsAuth(err):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, export.ErrDisabled):
		return http.StatusNotFound, CodeExportDisabled
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, lease.ErrBusy):
		return http.StatusConflict, CodeBusy
	case errors.Is(err, answer.ErrTimeout):
		return http.StatusGatewayTimeout, CodeAITimeout
	case errors.Is(err, answer.ErrUnavailable):
		return http.StatusServiceUnavailable, CodeAIUnavailable
	case errors.Is(err, answer.ErrRejected):
		return http.StatusBadGateway, CodeAIRejected
	case errors.Is(err, common.ErrStorage):
		return http.StatusInternalServerError, CodeStorage
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func errorResponse(err error) (int, ErrorResponse) {
	status, code := classify(err)

	body := ErrorResponse{Error: code, Message: err.Error()}
	if status == http.StatusInternalServerError {
		body.Message = "internal error"
	}
	if code == CodeValidation {
		body.Details = common.Details(err)
	}

	var qe *services.QueryError
	if errors.As(err, &qe) {
		body.ConversationID = qe.ConversationID
	}
	return status, body
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
