package handler

import (
	"errors"
	"net/http"

	"gomonate/internal/auth"
	"gomonate/internal/model"
	"gomonate/internal/repository"
	"gomonate/internal/service"
	"gomonate/pkg/response"

	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	target  error
	status  int
	code    int
	message string
}

// first match wins; message "" means the error text is shown
var errorMappings = []errorMapping{
	{service.ErrInvalidCode, http.StatusNotFound, response.CodeInvalidCode, ""},
	{service.ErrInactiveCode, http.StatusConflict, response.CodeInactiveCode, ""},
	{service.ErrEmployeeNotFound, http.StatusInternalServerError, response.CodeEmployeeNotFound, "employee record for this code is missing"},
	{service.ErrTransientConflict, http.StatusConflict, response.CodeTransientConflict, "concurrent update, please retry"},
	{service.ErrUnavailable, http.StatusServiceUnavailable, response.CodeUnavailable, "service temporarily unavailable, please retry"},
	{model.ErrDataIntegrity, http.StatusInternalServerError, response.CodeDataIntegrity, "stored data failed validation"},
	{service.ErrScannerRequired, http.StatusUnauthorized, response.CodeUnauthorized, ""},

	{repository.ErrEmployeeNotFound, http.StatusNotFound, response.CodeNotFound, "employee not found"},
	{repository.ErrCodeNotFound, http.StatusNotFound, response.CodeNotFound, "code not found"},
	{service.ErrUserNotFound, http.StatusNotFound, response.CodeNotFound, ""},
	{service.ErrEmployeeExists, http.StatusConflict, response.CodeEmployeeExists, ""},
	{service.ErrUserExists, http.StatusConflict, response.CodeUserExists, ""},
	{service.ErrInvalidInput, http.StatusBadRequest, response.CodeParamError, ""},
	{service.ErrInvalidRole, http.StatusBadRequest, response.CodeParamError, ""},
	{service.ErrInvalidCSV, http.StatusBadRequest, response.CodeInvalidCSV, ""},
	{service.ErrBusy, http.StatusConflict, response.CodeBusy, "another update for this employee is in progress"},
	{service.ErrShortCodeExhausted, http.StatusServiceUnavailable, response.CodeServerError, ""},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.CodeInvalidCredentials, ""},
	{service.ErrUserInactive, http.StatusForbidden, response.CodeUserInactive, ""},
	{auth.ErrInvalidToken, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token"},
	{service.ErrArchiveDisabled, http.StatusNotImplemented, response.CodeArchiveDisabled, ""},
}

// writeError turns a service error into the JSON envelope. Unknown errors
// are logged and reported without detail.
func (h *Handler) writeError(c *gin.Context, err error) {
	var insufficient *service.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		response.ErrorWithData(c, http.StatusConflict, response.CodeInsufficientBalance,
			"no tokens remaining", gin.H{"balance": insufficient.Balance})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			response.Error(c, m.status, m.code, msg)
			return
		}
	}

	h.log.Error(c.Request.Context(), "unhandled error", "path", c.FullPath(), "error", err)
	response.ServerError(c, "internal error")
}
