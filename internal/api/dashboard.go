package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mr1hm/school-finance/internal/models"
	"github.com/mr1hm/school-finance/internal/repository"
)

const (
	trendMonths         = 6
	recentPaymentsShown = 10
	streamHeartbeat     = 30 * time.Second
)

func (h *Handler) monthStart() models.Date {
	now := h.clock.Now()
	return models.NewDate(time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()))
}

func (h *Handler) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.store.DashboardStats(ctx, h.monthStart())
	if err != nil {
		h.serverError(c, err)
		return
	}
	trends, err := h.store.MonthlyTotals(ctx, repository.LastMonths(h.clock.Now(), trendMonths))
	if err != nil {
		h.serverError(c, err)
		return
	}
	recent, err := h.store.RecentPayments(ctx, recentPaymentsShown)
	if err != nil {
		h.serverError(c, err)
		return
	}
	h.html(c, http.StatusOK, pageDashboard, gin.H{
		"Stats":  stats,
		"Trends": trends,
		"Recent": recent,
	})
}

func (h *Handler) dashboardStats(c *gin.Context) {
	stats, err := h.store.DashboardStats(c.Request.Context(), h.monthStart())
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) paymentTrends(c *gin.Context) {
	trends, err := h.store.MonthlyTotals(c.Request.Context(), repository.LastMonths(h.clock.Now(), trendMonths))
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, trends)
}

func (h *Handler) paymentCalendar(c *gin.Context) {
	year, yerr := strconv.Atoi(c.Param("year"))
	month, merr := strconv.Atoi(c.Param("month"))
	if yerr != nil || merr != nil {
		jsonError(c, http.StatusNotFound, "Not found")
		return
	}
	days, err := h.store.PaymentCalendar(c.Request.Context(), year, month)
	if errors.Is(err, repository.ErrInvalidArgument) {
		jsonError(c, http.StatusBadRequest, "Month must be between 1 and 12")
		return
	}
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

// dashboardStream pushes every recorded payment to the browser as a
// server-sent "payment" event until the client goes away.
func (h *Handler) dashboardStream(c *gin.Context) {
	id, events := h.payments.Subscribe()
	defer h.payments.Unsubscribe(id)

	h.metrics.StreamClients.Inc()
	defer h.metrics.StreamClients.Dec()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := h.clock.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent("payment", ev)
			c.Writer.Flush()
		case <-heartbeat.Chan():
			c.SSEvent("ping", h.clock.Now().Unix())
			c.Writer.Flush()
		}
	}
}
