package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/mr1hm/school-finance/internal/broadcast"
	"github.com/mr1hm/school-finance/internal/config"
	"github.com/mr1hm/school-finance/internal/metrics"
	"github.com/mr1hm/school-finance/internal/models"
	"github.com/mr1hm/school-finance/internal/repository"
	"github.com/mr1hm/school-finance/internal/session"
	"github.com/mr1hm/school-finance/web"
)

const userKey = "user"

// Grades offered in student and fee forms.
var grades = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"}

// Auditor accepts system log entries; writes happen off the request path.
type Auditor interface {
	Record(ctx context.Context, entry *models.SystemLog)
}

type Settings struct {
	School         config.SchoolConfig
	ItemsPerPage   int
	LoginRateLimit int
}

type Deps struct {
	Store    repository.Store
	Sessions *session.Manager
	Audit    Auditor
	Payments *broadcast.Broadcaster[models.PaymentEvent]
	Metrics  *metrics.Finance
	Clock    clockwork.Clock
	Settings Settings
}

type Handler struct {
	store    repository.Store
	sessions *session.Manager
	audit    Auditor
	payments *broadcast.Broadcaster[models.PaymentEvent]
	metrics  *metrics.Finance
	clock    clockwork.Clock
	settings Settings
	views    *views
	logins   *clientLimiter
}

func NewHandler(d Deps) (*Handler, error) {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Settings.ItemsPerPage <= 0 {
		d.Settings.ItemsPerPage = 50
	}
	h := &Handler{
		store:    d.Store,
		sessions: d.Sessions,
		audit:    d.Audit,
		payments: d.Payments,
		metrics:  d.Metrics,
		clock:    d.Clock,
		settings: d.Settings,
		logins:   newClientLimiter(d.Settings.LoginRateLimit, d.Clock),
	}
	v, err := newViews(web.TemplateFiles, h.templateFuncs())
	if err != nil {
		return nil, fmt.Errorf("error parsing templates: %w", err)
	}
	h.views = v
	return h, nil
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.HTMLRender = h.views
	r.NoRoute(h.notFound)

	r.GET("/", h.index)
	r.GET("/health", h.health)
	r.GET("/auth/login", h.loginPage)
	r.POST("/auth/login", h.login)

	app := r.Group("", h.requireAuth)
	app.GET("/auth/logout", h.logout)
	app.GET("/auth/change-password", h.changePasswordPage)
	app.POST("/auth/change-password", h.changePassword)

	app.GET("/dashboard", h.dashboard)

	students := app.Group("/students")
	students.GET("", h.listStudents)
	students.GET("/create", h.createStudentPage)
	students.POST("/create", h.createStudent)
	students.GET("/edit/:id", h.editStudentPage)
	students.POST("/edit/:id", h.editStudent)
	students.POST("/delete/:id", h.deleteStudent)
	students.POST("/apply-fees/:id", h.applyFees)
	students.GET("/api/list", h.apiStudents)
	students.GET("/api/:id", h.apiStudent)
	students.GET("/api/:id/history", h.apiStudentHistory)

	fees := app.Group("/fees")
	fees.GET("", h.listFees)
	fees.GET("/create", h.createFeePage)
	fees.POST("/create", h.createFee)
	fees.GET("/edit/:id", h.editFeePage)
	fees.POST("/edit/:id", h.editFee)
	fees.POST("/delete/:id", h.deleteFee)
	fees.GET("/api/list", h.apiFees)

	payments := app.Group("/payments")
	payments.GET("", h.listPayments)
	payments.GET("/create", h.createPaymentPage)
	payments.POST("/create", h.createPayment)
	payments.POST("/delete/:id", h.deletePayment)
	payments.GET("/receipt/:id", h.receipt)
	payments.GET("/api/list", h.apiPayments)
	payments.GET("/api/receipt/:id", h.apiReceipt)

	reports := app.Group("/reports")
	reports.GET("", h.reportsIndex)
	reports.GET("/api/payment-by-grade", h.paymentsByGrade)
	reports.GET("/api/payment-by-method", h.paymentsByMethod)
	reports.GET("/api/summary", h.summary)
	reports.GET("/api/defaulters", h.defaulters)
	reports.GET("/api/activity", h.activity)
	reports.GET("/export/defaulters.xlsx", h.exportDefaulters)

	dash := app.Group("/api/dashboard")
	dash.GET("/stats", h.dashboardStats)
	dash.GET("/payment-trends", h.paymentTrends)
	dash.GET("/payment-calendar/:year/:month", h.paymentCalendar)
	dash.GET("/stream", h.dashboardStream)
}

func (h *Handler) health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) index(c *gin.Context) {
	if _, ok := h.sessionUser(c); ok {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	c.Redirect(http.StatusFound, "/auth/login")
}

func currentUser(c *gin.Context) *models.User {
	u, _ := c.Get(userKey)
	user, _ := u.(*models.User)
	return user
}

// sessionUser resolves the session cookie to an active user.
func (h *Handler) sessionUser(c *gin.Context) (*models.User, bool) {
	id, ok := h.sessions.UserID(c.Request)
	if !ok {
		return nil, false
	}
	user, err := h.store.GetUser(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.ErrorContext(c.Request.Context(), "error loading session user", "user_id", id, "error", err)
		}
		return nil, false
	}
	if !user.IsActive {
		return nil, false
	}
	return user, true
}

// wantsJSON reports whether the caller is a script rather than a browser
// navigation.
func wantsJSON(c *gin.Context) bool {
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	if strings.Contains(c.FullPath(), "/api/") {
		return true
	}
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

func (h *Handler) html(c *gin.Context, status int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["School"] = h.settings.School
	data["CurrentUser"] = currentUser(c)
	data["Flashes"] = h.sessions.Flashes(c.Writer, c.Request)
	c.HTML(status, page, data)
}

func (h *Handler) flash(c *gin.Context, category, text string) {
	if err := h.sessions.Flash(c.Writer, c.Request, category, text); err != nil {
		slog.ErrorContext(c.Request.Context(), "error saving flash", "error", err)
	}
}

func (h *Handler) flashRedirect(c *gin.Context, category, text, location string) {
	h.flash(c, category, text)
	c.Redirect(http.StatusFound, location)
}

func jsonError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

func (h *Handler) serverError(c *gin.Context, err error) {
	slog.ErrorContext(c.Request.Context(), "request failed",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err,
	)
	if wantsJSON(c) {
		jsonError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.html(c, http.StatusInternalServerError, pageServerError, nil)
}

func (h *Handler) notFound(c *gin.Context) {
	if wantsJSON(c) {
		jsonError(c, http.StatusNotFound, "Not found")
		return
	}
	h.html(c, http.StatusNotFound, pageNotFound, nil)
}

// requirePermission answers with a JSON 403 when the current user lacks p.
func requirePermission(c *gin.Context, p models.Permission) bool {
	if currentUser(c).HasPermission(p) {
		return true
	}
	jsonError(c, http.StatusForbidden, "Permission denied")
	return false
}

// logAction queues a system log entry attributed to the current user.
func (h *Handler) logAction(c *gin.Context, action, entityType string, entityID int64, details string) {
	entry := &models.SystemLog{
		Action:     action,
		EntityType: entityType,
		Details:    details,
		IPAddress:  c.ClientIP(),
	}
	if entityID != 0 {
		entry.EntityID = &entityID
	}
	if u := currentUser(c); u != nil {
		uid := u.ID
		entry.UserID = &uid
	}
	h.audit.Record(c.Request.Context(), entry)
}

func userID(c *gin.Context) *int64 {
	u := currentUser(c)
	if u == nil {
		return nil
	}
	id := u.ID
	return &id
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// queryDate parses an optional YYYY-MM-DD query parameter. Malformed dates
// are ignored.
func queryDate(c *gin.Context, key string) *models.Date {
	s := c.Query(key)
	if s == "" {
		return nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

func dateRange(c *gin.Context) repository.DateRange {
	return repository.DateRange{From: queryDate(c, "date_from"), To: queryDate(c, "date_to")}
}
