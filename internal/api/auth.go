package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mr1hm/school-finance/internal/models"
	"github.com/mr1hm/school-finance/internal/repository"
)

func (h *Handler) loginPage(c *gin.Context) {
	if _, ok := h.sessionUser(c); ok {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	h.html(c, http.StatusOK, pageLogin, gin.H{"Next": safeNext(c.Query("next"))})
}

func (h *Handler) login(c *gin.Context) {
	if _, ok := h.sessionUser(c); ok {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	ctx := c.Request.Context()
	next := safeNext(c.Query("next"))
	username := strings.TrimSpace(c.PostForm("username"))
	page := gin.H{"Next": next, "Username": username}

	if !h.logins.Allow(c.ClientIP()) {
		h.metrics.LoginAttempts.WithLabelValues("throttled").Inc()
		h.flash(c, "error", "Too many login attempts. Please wait a minute and try again.")
		h.html(c, http.StatusTooManyRequests, pageLogin, page)
		return
	}

	user, err := h.store.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.serverError(c, err)
		return
	}
	if err != nil || !user.CheckPassword(c.PostForm("password")) {
		h.metrics.LoginAttempts.WithLabelValues("failed").Inc()
		h.flash(c, "error", "Invalid username or password")
		h.html(c, http.StatusOK, pageLogin, page)
		return
	}
	if !user.IsActive {
		h.metrics.LoginAttempts.WithLabelValues("inactive").Inc()
		h.flashRedirect(c, "error", "Your account has been deactivated. Please contact administrator.", "/auth/login")
		return
	}

	if err := h.sessions.Login(c.Writer, c.Request, user.ID, c.PostForm("remember") != ""); err != nil {
		h.serverError(c, err)
		return
	}
	c.Set(userKey, user)
	h.metrics.LoginAttempts.WithLabelValues("success").Inc()
	h.logAction(c, "login", "user", user.ID, fmt.Sprintf("User %s logged in", user.Username))

	if next == "" {
		next = "/dashboard"
	}
	c.Redirect(http.StatusFound, next)
}

func (h *Handler) logout(c *gin.Context) {
	user := currentUser(c)
	h.logAction(c, "logout", "user", user.ID, fmt.Sprintf("User %s logged out", user.Username))
	if err := h.sessions.Logout(c.Writer, c.Request); err != nil {
		h.serverError(c, err)
		return
	}
	h.flashRedirect(c, "info", "You have been logged out successfully.", "/auth/login")
}

func (h *Handler) changePasswordPage(c *gin.Context) {
	h.html(c, http.StatusOK, pageChangePassword, nil)
}

func (h *Handler) changePassword(c *gin.Context) {
	user := currentUser(c)
	current := c.PostForm("current_password")
	newPassword := c.PostForm("new_password")

	var problem string
	switch {
	case !user.CheckPassword(current):
		problem = "Current password is incorrect"
	case newPassword != c.PostForm("confirm_password"):
		problem = "New passwords do not match"
	case len(newPassword) < models.MinPasswordLength:
		problem = fmt.Sprintf("Password must be at least %d characters long", models.MinPasswordLength)
	}
	if problem != "" {
		h.flashRedirect(c, "error", problem, "/auth/change-password")
		return
	}

	if err := user.SetPassword(newPassword); err != nil {
		h.serverError(c, err)
		return
	}
	if err := h.store.UpdatePassword(c.Request.Context(), user.ID, user.PasswordHash); err != nil {
		h.serverError(c, err)
		return
	}
	h.logAction(c, "change_password", "user", user.ID, fmt.Sprintf("User %s changed password", user.Username))
	h.flashRedirect(c, "success", "Password changed successfully", "/dashboard")
}
