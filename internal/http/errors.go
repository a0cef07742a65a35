package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumenbrowser/lumen/backend/internal/shared/errs"
)

// statusFor maps the error taxonomy to HTTP status codes. Anything
// unclassified is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrInvalidKeyFormat):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrInvalidPassword), errors.Is(err, errs.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrNotConnected), errors.Is(err, errs.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNoWallet):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, errs.ErrWalletExists):
		return http.StatusConflict
	case errors.Is(err, errs.ErrWalletLocked):
		return http.StatusLocked
	case errors.Is(err, errs.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
