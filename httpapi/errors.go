package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-integrations/core"
)

// errorResponse renders err as {"detail", "text_code"} using the rich error
// envelope when present. Internal failures never leak their message.
func errorResponse(err error) (int, gin.H) {
	if core.IsProviderNotFound(err) {
		return http.StatusNotFound, gin.H{"detail": notFoundDetail, "text_code": core.ErrorProviderNotFound}
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		status := rich.Code
		if status < http.StatusBadRequest || status > 599 {
			status = http.StatusInternalServerError
		}
		detail := rich.Message
		if status >= http.StatusInternalServerError && rich.TextCode == core.ErrorInternal {
			detail = internalErrorDetail
		}
		return status, gin.H{"detail": detail, "text_code": rich.TextCode}
	}
	return http.StatusInternalServerError, gin.H{"detail": internalErrorDetail, "text_code": core.ErrorInternal}
}
