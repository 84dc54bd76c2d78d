package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mr1hm/school-finance/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger tags the request context with a request id and writes one
// access log line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = logging.NewRequestID()
		}
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		if strings.HasPrefix(c.Request.URL.Path, "/static/") {
			return
		}
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// Recovery turns a panic into the 500 page or a JSON error.
func (h *Handler) Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err any) {
		slog.ErrorContext(c.Request.Context(), "panic recovered", "path", c.Request.URL.Path, "error", err)
		if c.Writer.Written() {
			c.Abort()
			return
		}
		if wantsJSON(c) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
			return
		}
		h.html(c, http.StatusInternalServerError, pageServerError, nil)
		c.Abort()
	})
}

func (h *Handler) requireAuth(c *gin.Context) {
	if user, ok := h.sessionUser(c); ok {
		if err := h.sessions.Touch(c.Writer, c.Request); err != nil {
			slog.WarnContext(c.Request.Context(), "error refreshing session", "user_id", user.ID, "error", err)
		}
		c.Set(userKey, user)
		c.Next()
		return
	}
	if wantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
		return
	}
	h.flash(c, "info", "Please log in to access this page.")
	c.Redirect(http.StatusFound, "/auth/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
	c.Abort()
}

// safeNext only allows redirects to paths on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return ""
	}
	return next
}
