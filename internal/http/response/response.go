package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yungbote/coursehub-backend/internal/platform/apierr"
)

// ErrorEnvelope is the body of every failed request.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func RespondError(c *gin.Context, status int, message string, err error) {
	env := ErrorEnvelope{Error: message}
	if err != nil {
		env.Details = err.Error()
	}
	c.AbortWithStatusJSON(status, env)
}

// RespondErr picks the status from an apierr.Error. Anything else is a 500 with the error
// text as details.
func RespondErr(c *gin.Context, err error) {
	status := apierr.StatusOf(err)
	var ae *apierr.Error
	if errors.As(err, &ae) && status < http.StatusInternalServerError {
		msg := err.Error()
		c.AbortWithStatusJSON(status, ErrorEnvelope{Error: msg, Code: ae.Code})
		return
	}
	RespondError(c, status, "Internal server error", err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
