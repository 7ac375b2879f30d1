// Package httperr maps service errors onto HTTP responses.
package httperr

import (
	"errors"
	"net/http"

	"auctionengine/internal/domain"
	"auctionengine/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"    example:"BidTooLow"`
	Retryable bool   `json:"retryable,omitempty"`
} // @name ErrorResponse

// Map returns the status and body for err. Internal failures get a generic
// message; the cause is only logged.
func Map(err error) (int, ErrorResponse) {
	var rej *domain.Rejection
	switch {
	case errors.As(err, &rej):
		return http.StatusBadRequest, ErrorResponse{Error: rej.Error(), Reason: string(rej.Reason)}
	case errors.Is(err, domain.ErrAuctionNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrTryAgain), store.IsTransient(err):
		return http.StatusConflict, ErrorResponse{Error: domain.ErrTryAgain.Error(), Retryable: true}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal error"}
	}
}

func Write(c *gin.Context, err error) {
	status, body := Map(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("http_internal_error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

// Abort answers with a plain message, typically a binding or auth failure.
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}
