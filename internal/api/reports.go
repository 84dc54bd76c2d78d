package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mr1hm/school-finance/internal/export"
	"github.com/mr1hm/school-finance/internal/models"
)

const (
	activityLimit = 50
	xlsxMIME      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (h *Handler) reportsIndex(c *gin.Context) {
	ctx := c.Request.Context()
	r := dateRange(c)

	summary, err := h.store.Summary(ctx, r)
	if err != nil {
		h.serverError(c, err)
		return
	}
	byGrade, err := h.store.PaymentsByGrade(ctx, r)
	if err != nil {
		h.serverError(c, err)
		return
	}
	byMethod, err := h.store.PaymentsByMethod(ctx, r)
	if err != nil {
		h.serverError(c, err)
		return
	}
	defaulters, err := h.store.Defaulters(ctx, 0)
	if err != nil {
		h.serverError(c, err)
		return
	}

	data := gin.H{
		"Summary":    summary,
		"ByGrade":    byGrade,
		"ByMethod":   byMethod,
		"Defaulters": defaulters,
		"DateFrom":   c.Query("date_from"),
		"DateTo":     c.Query("date_to"),
	}
	if currentUser(c).HasPermission(models.PermManageUsers) {
		logs, err := h.store.ListLogs(ctx, activityLimit)
		if err != nil {
			h.serverError(c, err)
			return
		}
		data["Activity"] = logs
	}
	h.html(c, http.StatusOK, pageReports, data)
}

func (h *Handler) paymentsByGrade(c *gin.Context) {
	rows, err := h.store.PaymentsByGrade(c.Request.Context(), dateRange(c))
	if err != nil {
		h.serverError(c, err)
		return
	}
	labels := make([]string, 0, len(rows))
	amounts := make([]models.Money, 0, len(rows))
	for _, r := range rows {
		labels = append(labels, "Grade "+r.Grade)
		amounts = append(amounts, r.Total)
	}
	c.JSON(http.StatusOK, gin.H{"labels": labels, "amounts": amounts})
}

func (h *Handler) paymentsByMethod(c *gin.Context) {
	rows, err := h.store.PaymentsByMethod(c.Request.Context(), dateRange(c))
	if err != nil {
		h.serverError(c, err)
		return
	}
	labels := make([]models.PaymentMethod, 0, len(rows))
	counts := make([]int, 0, len(rows))
	amounts := make([]models.Money, 0, len(rows))
	for _, r := range rows {
		labels = append(labels, r.Method)
		counts = append(counts, r.Count)
		amounts = append(amounts, r.Total)
	}
	c.JSON(http.StatusOK, gin.H{"labels": labels, "counts": counts, "amounts": amounts})
}

func (h *Handler) summary(c *gin.Context) {
	s, err := h.store.Summary(c.Request.Context(), dateRange(c))
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// threshold reads the optional ?threshold= amount; bad input means 0.
func threshold(c *gin.Context) models.Money {
	raw := c.Query("threshold")
	if raw == "" {
		return 0
	}
	m, err := models.ParseMoney(raw)
	if err != nil {
		return 0
	}
	return m
}

func (h *Handler) defaulters(c *gin.Context) {
	students, err := h.store.Defaulters(c.Request.Context(), threshold(c))
	if err != nil {
		h.serverError(c, err)
		return
	}
	out := make([]gin.H, 0, len(students))
	for _, s := range students {
		out = append(out, gin.H{
			"id":               s.ID,
			"student_number":   s.StudentNumber,
			"full_name":        s.FullName,
			"grade":            s.Grade,
			"balance":          s.Balance,
			"guardian_contact": s.GuardianContact,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) activity(c *gin.Context) {
	if !requirePermission(c, models.PermManageUsers) {
		return
	}
	logs, err := h.store.ListLogs(c.Request.Context(), queryInt(c, "limit", activityLimit))
	if err != nil {
		h.serverError(c, err)
		return
	}
	if logs == nil {
		logs = []models.SystemLog{}
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) exportDefaulters(c *gin.Context) {
	students, err := h.store.Defaulters(c.Request.Context(), threshold(c))
	if err != nil {
		h.serverError(c, err)
		return
	}
	now := h.clock.Now()
	var buf bytes.Buffer
	if err := export.DefaultersXLSX(&buf, h.settings.School.Currency, students, now); err != nil {
		h.serverError(c, err)
		return
	}
	h.logAction(c, "export_defaulters", "report", 0, fmt.Sprintf("Exported %d defaulters", len(students)))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="defaulters-%s.xlsx"`, now.Format("20060102")))
	c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
}
