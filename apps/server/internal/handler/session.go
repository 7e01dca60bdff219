package handler

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openscribe/scribe/apps/server/internal/platform/csrf"
	"github.com/openscribe/scribe/pkg/api"
)

const (
	// SessionCookie carries the opaque session ID.
	SessionCookie = "scribe_session"

	// Identity headers set by the fronting auth proxy. Absent in local
	// development, where the anonymous fallback applies.
	loginHeader  = "X-Auth-Login"
	userIDHeader = "X-Auth-User-Id"

	sessionKey = "scribe.session"
)

// Session identifies one browser's editing session.
type Session struct {
	ID           string
	Login        string
	GitHubUserID int64
	CSRFToken    string
}

// Sessions tracks live sessions in memory. Losing them on restart only costs
// the client one re-handshake; workspace drafts survive in Redis.
type Sessions struct {
	mu sync.RWMutex
	m  map[string]Session
}

// NewSessions creates an empty session table.
func NewSessions() *Sessions {
	return &Sessions{m: map[string]Session{}}
}

func (s *Sessions) get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.m[id]
	return sess, ok
}

func (s *Sessions) put(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sess.ID] = sess
}

// Middleware resolves or creates the caller's session and stashes it on the
// Gin context. New sessions get both the session cookie and the CSRF cookie.
func (s *Sessions) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := c.Cookie(SessionCookie); err == nil {
			if sess, ok := s.get(id); ok {
				c.Set(sessionKey, sess)
				c.Next()
				return
			}
		}

		token, err := csrf.NewToken()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session setup failed"})
			return
		}
		sess := Session{
			ID:        uuid.NewString(),
			Login:     c.GetHeader(loginHeader),
			CSRFToken: token,
		}
		if sess.Login == "" {
			sess.Login = "anonymous"
		}
		if raw := c.GetHeader(userIDHeader); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				sess.GitHubUserID = id
			}
		}
		s.put(sess)

		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(SessionCookie, sess.ID, 0, "/", "", false, true)
		// Readable on purpose: the client echoes it back per double-submit.
		c.SetCookie(csrf.CookieName, sess.CSRFToken, 0, "/", "", false, false)

		c.Set(sessionKey, sess)
		c.Next()
	}
}

func currentSession(c *gin.Context) Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return Session{}
	}
	sess, _ := v.(Session)
	return sess
}

// GetSession handles GET /session.
func (h *Handler) GetSession(c *gin.Context) {
	sess := currentSession(c)
	login := sess.Login
	if login == "anonymous" {
		login = ""
	}
	c.JSON(http.StatusOK, api.SessionResponse{SessionID: sess.ID, Login: login})
}
