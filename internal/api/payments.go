package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mr1hm/school-finance/internal/models"
	"github.com/mr1hm/school-finance/internal/repository"
)

const apiPaymentsLimit = 100

func paymentJSON(p models.Payment) gin.H {
	return gin.H{
		"id":                    p.ID,
		"student_id":            p.StudentID,
		"student_name":          p.StudentName(),
		"amount":                p.Amount,
		"fee_type":              p.FeeType,
		"payment_method":        p.Method,
		"payment_date":          p.PaymentDate,
		"receipt_number":        p.ReceiptNumber,
		"transaction_reference": p.TransactionReference,
	}
}

func (h *Handler) listPayments(c *gin.Context) {
	search := strings.TrimSpace(c.Query("search"))
	filter := repository.PaymentFilter{
		Search:     search,
		DateFrom:   queryDate(c, "date_from"),
		DateTo:     queryDate(c, "date_to"),
		Pagination: repository.Pagination{Page: queryInt(c, "page", 1), PerPage: h.settings.ItemsPerPage},
	}
	if m, err := models.ParsePaymentMethod(c.Query("method")); err == nil {
		filter.Method = m
	}
	result, err := h.store.ListPayments(c.Request.Context(), filter)
	if err != nil {
		h.serverError(c, err)
		return
	}
	h.html(c, http.StatusOK, pagePayments, gin.H{
		"Payments":     result,
		"Pager":        newPager(c, result),
		"Search":       search,
		"MethodFilter": string(filter.Method),
		"DateFrom":     c.Query("date_from"),
		"DateTo":       c.Query("date_to"),
		"Methods":      models.PaymentMethods,
	})
}

func (h *Handler) apiPayments(c *gin.Context) {
	payments, err := h.store.RecentPayments(c.Request.Context(), apiPaymentsLimit)
	if err != nil {
		h.serverError(c, err)
		return
	}
	out := make([]gin.H, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentJSON(p))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) createPaymentPage(c *gin.Context) {
	if !currentUser(c).HasPermission(models.PermCreate) {
		h.flashRedirect(c, "error", "You do not have permission to create payments", "/payments")
		return
	}
	students, err := h.store.ListActiveStudents(c.Request.Context())
	if err != nil {
		h.serverError(c, err)
		return
	}
	selected, _ := strconv.ParseInt(c.Query("student_id"), 10, 64)
	h.html(c, http.StatusOK, pagePaymentForm, gin.H{
		"Students":        students,
		"SelectedStudent": selected,
		"Methods":         models.PaymentMethods,
		"Today":           models.NewDate(h.clock.Now()),
	})
}

func (h *Handler) createPayment(c *gin.Context) {
	if !currentUser(c).HasPermission(models.PermCreate) {
		if wantsJSON(c) {
			jsonError(c, http.StatusForbidden, "Permission denied")
			return
		}
		h.flashRedirect(c, "error", "You do not have permission to create payments", "/payments")
		return
	}

	p, problem := h.bindPayment(c)
	if problem != "" {
		h.paymentRejected(c, http.StatusBadRequest, problem)
		return
	}
	p.CreatedBy = userID(c)

	student, err := h.store.RecordPayment(c.Request.Context(), p)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.paymentRejected(c, http.StatusNotFound, "Student not found")
		return
	case errors.Is(err, repository.ErrInvalidArgument):
		h.paymentRejected(c, http.StatusBadRequest, "Payment amount must be greater than 0")
		return
	case err != nil:
		h.serverError(c, err)
		return
	}

	h.metrics.PaymentsRecorded.WithLabelValues(string(p.Method)).Inc()
	h.metrics.AmountCollected.Add(p.Amount.Float())
	h.payments.Broadcast(models.PaymentEvent{
		PaymentID:     p.ID,
		ReceiptNumber: p.ReceiptNumber,
		StudentName:   student.FullName,
		Amount:        p.Amount,
		Method:        p.Method,
		PaymentDate:   p.PaymentDate,
	})
	h.logAction(c, "create_payment", "payment", p.ID, fmt.Sprintf("Payment of %s from %s", p.Amount, student.FullName))

	h.flash(c, "success", fmt.Sprintf("Payment recorded successfully. Receipt #: %s", p.ReceiptNumber))
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"payment_id":     p.ID,
			"receipt_number": p.ReceiptNumber,
		})
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("/payments/receipt/%d", p.ID))
}

func (h *Handler) paymentRejected(c *gin.Context, status int, message string) {
	if wantsJSON(c) {
		jsonError(c, status, message)
		return
	}
	h.flashRedirect(c, "error", message, "/payments/create")
}

func (h *Handler) bindPayment(c *gin.Context) (*models.Payment, string) {
	studentID, err := strconv.ParseInt(c.PostForm("student_id"), 10, 64)
	if err != nil || studentID <= 0 {
		return nil, "Please choose a student"
	}
	amount, err := models.ParseMoney(c.PostForm("amount"))
	if err != nil {
		return nil, "Payment amount must be a valid number"
	}
	if amount <= 0 {
		return nil, "Payment amount must be greater than 0"
	}
	method, err := models.ParsePaymentMethod(c.PostForm("payment_method"))
	if err != nil {
		return nil, "Please choose a valid payment method"
	}
	feeType := strings.TrimSpace(c.PostForm("fee_type"))
	if feeType == "" {
		return nil, "Fee type is required"
	}

	date := models.NewDate(h.clock.Now())
	if raw := c.PostForm("payment_date"); raw != "" {
		date, err = models.ParseDate(raw)
		if err != nil {
			return nil, "Payment date must be in YYYY-MM-DD format"
		}
	}

	return &models.Payment{
		StudentID:            studentID,
		Amount:               amount,
		FeeType:              feeType,
		Method:               method,
		PaymentDate:          date,
		TransactionReference: strings.TrimSpace(c.PostForm("transaction_reference")),
		Notes:                strings.TrimSpace(c.PostForm("notes")),
	}, ""
}

func (h *Handler) deletePayment(c *gin.Context) {
	if !requirePermission(c, models.PermDelete) {
		return
	}
	id, _ := paramID(c)
	p, err := h.store.DeletePayment(c.Request.Context(), id, userID(c))
	if errors.Is(err, repository.ErrNotFound) {
		jsonError(c, http.StatusNotFound, "Payment not found")
		return
	}
	if err != nil {
		h.serverError(c, err)
		return
	}
	h.metrics.PaymentsDeleted.Inc()
	h.logAction(c, "delete_payment", "payment", p.ID, fmt.Sprintf("Deleted payment %s, restored balance", p.ReceiptNumber))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment deleted and balance restored"})
}

func (h *Handler) loadPayment(c *gin.Context) (*models.Payment, bool) {
	id, _ := paramID(c)
	p, err := h.store.GetPayment(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		h.notFound(c)
		return nil, false
	}
	if err != nil {
		h.serverError(c, err)
		return nil, false
	}
	return p, true
}

func (h *Handler) receipt(c *gin.Context) {
	p, ok := h.loadPayment(c)
	if !ok {
		return
	}
	h.html(c, http.StatusOK, pageReceipt, gin.H{"Payment": p, "Student": p.Student})
}

func (h *Handler) apiReceipt(c *gin.Context) {
	p, ok := h.loadPayment(c)
	if !ok {
		return
	}
	st := p.Student
	c.JSON(http.StatusOK, gin.H{
		"receipt_number": p.ReceiptNumber,
		"payment_date":   p.PaymentDate,
		"student": gin.H{
			"id":               st.ID,
			"student_number":   st.StudentNumber,
			"full_name":        st.FullName,
			"grade":            st.Grade,
			"guardian_contact": st.GuardianContact,
			"current_balance":  st.Balance,
		},
		"payment": gin.H{
			"amount":                p.Amount,
			"fee_type":              p.FeeType,
			"payment_method":        p.Method,
			"transaction_reference": p.TransactionReference,
		},
	})
}
