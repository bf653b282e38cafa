package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"socialchat/tools/errs"
)

// CtxCredentialKey holds the raw bearer credential in the gin context.
const CtxCredentialKey = "authorization"

type Options struct {
	// QueryParam is checked first; browsers cannot set headers on a WebSocket handshake.
	QueryParam                string // "token"
	EnableAuthorizationBearer bool   // true
	// Required aborts with 401 when no credential is present. The WebSocket
	// route leaves it off and reports the failure over the socket.
	Required bool
}

func DefaultOptions() *Options {
	return &Options{
		QueryParam:                "token",
		EnableAuthorizationBearer: true,
		Required:                  true,
	}
}

// Middleware extracts the bearer credential into the context. It does not
// verify it.
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := ""
		if opts.QueryParam != "" {
			token = strings.TrimSpace(c.Query(opts.QueryParam))
		}
		if token == "" && opts.EnableAuthorizationBearer {
			token = BearerToken(c.GetHeader("Authorization"))
		}
		if token != "" {
			c.Set(CtxCredentialKey, token)
		}

		if token == "" && opts.Required {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   errs.ErrUnauthorized.Msg,
				"code":    errs.Name(errs.UnauthorizedError),
			})
			return
		}
		c.Next()
	}
}

// BearerToken strips a case-insensitive "Bearer " prefix; other schemes yield "".
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("bearer "):])
}

// Credential returns what Middleware stored, or "".
func Credential(c *gin.Context) string {
	return c.GetString(CtxCredentialKey)
}
