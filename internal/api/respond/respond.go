// Package respond writes the uniform JSON envelope every endpoint returns.
package respond

import (
	"net/http"

	"tariconnect/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// OK writes {"success":true} merged with body.
func OK(c *gin.Context, status int, body gin.H) {
	out := gin.H{"success": true}
	for k, v := range body {
		out[k] = v
	}
	c.JSON(status, out)
}

// Error maps err onto its HTTP status and user-facing message.
func Error(c *gin.Context, err error) {
	status := apperr.HTTPStatus(apperr.KindOf(err))
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"success": false, "error": apperr.Message(err)})
}

func Fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// UserID returns the authenticated caller, writing 401 when absent.
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString("user_id")
	if id == "" {
		Fail(c, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return id, true
}
