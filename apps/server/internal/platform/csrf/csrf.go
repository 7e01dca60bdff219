// Package csrf implements double-submit cookie protection. The server hands
// the browser a random token in a readable cookie; every mutating request
// must echo it back in a header, which a cross-site attacker cannot do.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// CookieName is the readable cookie carrying the token.
	CookieName = "scribe_csrf"
	// HeaderName is the header mutating requests must echo the token in.
	HeaderName = "X-CSRF-Token"

	tokenBytes = 32
)

// NewToken returns a fresh random token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Middleware rejects mutating requests whose header token does not match the
// cookie token. Safe methods pass through untouched.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		cookie, err := c.Cookie(CookieName)
		if err != nil || cookie == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing csrf cookie"})
			return
		}
		header := c.GetHeader(HeaderName)
		if subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "csrf token mismatch"})
			return
		}
		c.Next()
	}
}
