package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kennethnrk/fasttext-services/internal/dataset"
	"github.com/kennethnrk/fasttext-services/internal/host"
	"github.com/kennethnrk/fasttext-services/internal/service"
)

// Error codes of the envelope.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeNotReady       = "NOT_READY"
	CodeTimeout        = "TIMEOUT"
	CodeInternal       = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	StatusCode int
	Code       string
	Message    string
}

// MapError maps host and service errors to HTTP error responses. Caller
// mistakes keep their message; internal failures are reported generically.
func MapError(err error) ErrorResponse {
	switch {
	case errors.Is(err, host.ErrUnknownService):
		return ErrorResponse{StatusCode: http.StatusNotFound, Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, host.ErrNotReady):
		return ErrorResponse{StatusCode: http.StatusServiceUnavailable, Code: CodeNotReady, Message: err.Error()}
	case service.IsInvalidInput(err), errors.Is(err, dataset.ErrFormat):
		return ErrorResponse{StatusCode: http.StatusBadRequest, Code: CodeInvalidRequest, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse{StatusCode: http.StatusGatewayTimeout, Code: CodeTimeout, Message: "request timed out"}
	default:
		return ErrorResponse{StatusCode: http.StatusInternalServerError, Code: CodeInternal, Message: "internal server error"}
	}
}

// HandleError sends the envelope for err and attaches err to the context for
// the access log.
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	resp := MapError(err)
	respondError(c, resp.StatusCode, resp.Code, resp.Message)
}
