package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	platformerrors "asr-webservice-go/internal/platform/errors"
)

// APIResponse is the envelope for JSON error and status payloads.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

// RespondSuccess writes a success envelope.
func RespondSuccess(c *gin.Context, httpStatus int, data interface{}, message string) {
	if message == "" {
		message = "ok"
	}

	resp := APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	}

	c.JSON(httpStatus, resp)
}

// RespondError writes a failure envelope.
func RespondError(c *gin.Context, httpStatus int, message string, data interface{}) {
	resp := APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	}

	c.JSON(httpStatus, resp)
}

// StatusForError maps a domain error to its HTTP status. Internal invariant
// violations are reported as a plain 500 without leaking detail.
func StatusForError(err error) (status int, message string) {
	switch platformerrors.KindOf(err) {
	case platformerrors.KindInvalidAudio, platformerrors.KindInvalidOption:
		return http.StatusBadRequest, err.Error()
	case platformerrors.KindEngineTimeout:
		return http.StatusGatewayTimeout, "transcription exceeded the inference time budget"
	case platformerrors.KindInvalidSegment:
		return http.StatusInternalServerError, "internal transcription error"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondDomainError maps and writes a domain error in one step.
func RespondDomainError(c *gin.Context, err error) {
	status, message := StatusForError(err)
	RespondError(c, status, message, gin.H{})
}
