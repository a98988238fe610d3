package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"railcat/internal/client"
	"railcat/internal/session"
	"railcat/internal/templates"
	"railcat/internal/wizard"
)

// statusOf 错误类别对应的 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, wizard.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, templates.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, wizard.ErrBusy),
		errors.Is(err, wizard.ErrImportCompleted),
		errors.Is(err, wizard.ErrCannotProceed),
		errors.Is(err, wizard.ErrStale),
		errors.Is(err, wizard.ErrClosed),
		errors.Is(err, templates.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrWrongStep),
		errors.Is(err, wizard.ErrOptionTaken),
		errors.Is(err, wizard.ErrUnknownOption),
		errors.Is(err, wizard.ErrRowOutOfRange),
		errors.Is(err, wizard.ErrUnknownTable),
		errors.Is(err, wizard.ErrUnsupportedFile),
		errors.Is(err, templates.ErrNameRequired),
		errors.Is(err, templates.ErrConfigRequired):
		return http.StatusBadRequest
	case errors.Is(err, client.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, client.ErrBusiness),
		errors.Is(err, client.ErrTransport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// fail 返回错误响应；校验错误附带问题列表
func fail(c *gin.Context, err error) {
	status := statusOf(err)
	_ = c.Error(err)
	body := gin.H{"success": false, "error": err.Error()}
	if v := wizard.Violations(err); v != nil {
		body["violations"] = v
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message})
}
