package response

import (
	"errors"
	"net/http"

	xerrors "billing-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response defines the standard API response format.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized error response. Structured billing errors
// surface their code and details so clients can branch programmatically.
func Error(c *gin.Context, status int, message string, err error) {
	c.Abort()

	resp := Response{
		Success: false,
		Message: message,
	}

	var billingErr *xerrors.Error
	if errors.As(err, &billingErr) {
		resp.Error = billingErr.Message
		resp.Code = string(billingErr.Code)
		if billingErr.Details != nil {
			resp.Data = billingErr.Details
		}
	} else if err != nil {
		resp.Error = err.Error()
	}

	c.JSON(status, resp)
}

// FromError maps a billing error code onto an HTTP status and sends it.
func FromError(c *gin.Context, err error) {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidArgument, xerrors.CodeMalformedPayload:
		Error(c, http.StatusBadRequest, "invalid request", err)
	case xerrors.CodeNotFound:
		Error(c, http.StatusNotFound, "not found", err)
	case xerrors.CodeIllegalState, xerrors.CodeUnimplemented:
		Error(c, http.StatusConflict, "operation not allowed", err)
	case xerrors.CodeVerification:
		Error(c, http.StatusUnprocessableEntity, "verification failed", err)
	default:
		switch {
		case errors.Is(err, xerrors.ErrNotFound):
			Error(c, http.StatusNotFound, "not found", err)
		case errors.Is(err, xerrors.ErrRateLimited):
			Error(c, http.StatusTooManyRequests, "too many requests", err)
		case errors.Is(err, xerrors.ErrPurchaseCancelled):
			Error(c, http.StatusUnprocessableEntity, "purchase cancelled", err)
		case errors.Is(err, xerrors.ErrVerificationFailed):
			Error(c, http.StatusUnprocessableEntity, "verification failed", err)
		default:
			Error(c, http.StatusInternalServerError, "internal server error", err)
		}
	}
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}
