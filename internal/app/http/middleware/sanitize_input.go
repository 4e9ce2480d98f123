package middleware

import (
	"bytes"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	// plainText restores only the escapes the policy applies to ordinary text.
	plainText = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`)
)

// SanitizeAndCleanInputMiddleware strips markup from every string in a JSON
// request body, including nested objects and arrays. Empty bodies pass through.
func SanitizeAndCleanInputMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}
		if ct := c.ContentType(); ct != "" && ct != gin.MIMEJSON {
			c.Next()
			return
		}

		buf, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid body"})
			return
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			c.Request.Body = io.NopCloser(bytes.NewReader(buf))
			c.Next()
			return
		}

		var body interface{}
		if err := json.Unmarshal(buf, &body); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "Malformed JSON"})
			return
		}

		newBody, _ := json.Marshal(sanitizeValue(body))
		c.Request.Body = io.NopCloser(bytes.NewBuffer(newBody))
		c.Request.ContentLength = int64(len(newBody))

		c.Next()
	}
}

func sanitizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return SanitizeString(t)
	case map[string]interface{}:
		for k, val := range t {
			t[k] = sanitizeValue(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = sanitizeValue(val)
		}
		return t
	default:
		return v
	}
}

// SanitizeString removes markup, including markup hidden behind HTML
// entities. Plain text such as "A & B" survives unchanged.
func SanitizeString(s string) string {
	return strings.TrimSpace(plainText.Replace(strictPolicy.Sanitize(html.UnescapeString(s))))
}
