package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeConflict      = 409
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// redemption outcomes
const (
	CodeInvalidCode         = 2001
	CodeInactiveCode        = 2002
	CodeEmployeeNotFound    = 2003
	CodeInsufficientBalance = 2004
	CodeTransientConflict   = 2005
	CodeUnavailable         = 2006
	CodeDataIntegrity       = 2007
)

const (
	CodeEmployeeExists     = 3001
	CodeInvalidCSV         = 3002
	CodeBusy               = 3003
	CodeInvalidCredentials = 3004
	CodeUserInactive       = 3005
	CodeUserExists         = 3006
	CodeArchiveDisabled    = 3007
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: "created",
		Data:    data,
	})
}

// Error writes a failure envelope and aborts the rest of the chain.
func Error(c *gin.Context, status, code int, message string) {
	ErrorWithData(c, status, code, message, nil)
}

func ErrorWithData(c *gin.Context, status, code int, message string, data interface{}) {
	c.AbortWithStatusJSON(status, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, CodeForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}

func BusinessError(c *gin.Context, status, code int, message string) {
	Error(c, status, code, message)
}
