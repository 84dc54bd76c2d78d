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

func feeFilter(c *gin.Context) repository.FeeFilter {
	f := repository.FeeFilter{Grade: c.Query("grade")}
	if t, err := models.ParseTerm(c.Query("term")); err == nil {
		f.Term = t
	}
	return f
}

func (h *Handler) listFees(c *gin.Context) {
	filter := feeFilter(c)
	fees, err := h.store.ListFees(c.Request.Context(), filter)
	if err != nil {
		h.serverError(c, err)
		return
	}
	h.html(c, http.StatusOK, pageFees, gin.H{
		"Fees":        fees,
		"GradeFilter": filter.Grade,
		"TermFilter":  string(filter.Term),
		"Grades":      grades,
		"Terms":       models.Terms,
	})
}

func (h *Handler) apiFees(c *gin.Context) {
	fees, err := h.store.ListFees(c.Request.Context(), feeFilter(c))
	if err != nil {
		h.serverError(c, err)
		return
	}
	if fees == nil {
		fees = []models.FeeStructure{}
	}
	c.JSON(http.StatusOK, fees)
}

func (h *Handler) createFeePage(c *gin.Context) {
	if !currentUser(c).HasPermission(models.PermCreate) {
		h.flashRedirect(c, "error", "You do not have permission to create fee structures", "/fees")
		return
	}
	h.feeForm(c, &models.FeeStructure{Term: models.Term1})
}

func (h *Handler) createFee(c *gin.Context) {
	if !currentUser(c).HasPermission(models.PermCreate) {
		h.flashRedirect(c, "error", "You do not have permission to create fee structures", "/fees")
		return
	}
	fee := &models.FeeStructure{}
	if problem := bindFee(c, fee); problem != "" {
		h.flash(c, "error", problem)
		h.feeForm(c, fee)
		return
	}
	if err := h.store.CreateFee(c.Request.Context(), fee); err != nil {
		h.flash(c, "error", feeSaveError("creating", err))
		h.feeForm(c, fee)
		return
	}
	h.logAction(c, "create_fee", "fee_structure", fee.ID, fmt.Sprintf("Created fee: Grade %s - %s", fee.Grade, fee.FeeType))
	h.flashRedirect(c, "success", "Fee structure created successfully", "/fees")
}

func (h *Handler) editFeePage(c *gin.Context) {
	if !currentUser(c).HasPermission(models.PermEdit) {
		h.flashRedirect(c, "error", "You do not have permission to edit fee structures", "/fees")
		return
	}
	fee, ok := h.loadFee(c)
	if !ok {
		return
	}
	h.feeForm(c, fee)
}

func (h *Handler) editFee(c *gin.Context) {
	if !currentUser(c).HasPermission(models.PermEdit) {
		h.flashRedirect(c, "error", "You do not have permission to edit fee structures", "/fees")
		return
	}
	fee, ok := h.loadFee(c)
	if !ok {
		return
	}
	if problem := bindFee(c, fee); problem != "" {
		h.flash(c, "error", problem)
		h.feeForm(c, fee)
		return
	}
	if err := h.store.UpdateFee(c.Request.Context(), fee); err != nil {
		h.flash(c, "error", feeSaveError("updating", err))
		h.feeForm(c, fee)
		return
	}
	h.logAction(c, "edit_fee", "fee_structure", fee.ID, fmt.Sprintf("Updated fee: Grade %s - %s", fee.Grade, fee.FeeType))
	h.flashRedirect(c, "success", "Fee structure updated successfully", "/fees")
}

func (h *Handler) deleteFee(c *gin.Context) {
	if !requirePermission(c, models.PermDelete) {
		return
	}
	id, _ := paramID(c)
	fee, err := h.store.DeactivateFee(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		jsonError(c, http.StatusNotFound, "Fee structure not found")
		return
	}
	if err != nil {
		h.serverError(c, err)
		return
	}
	h.logAction(c, "delete_fee", "fee_structure", fee.ID, fmt.Sprintf("Deleted fee: Grade %s - %s", fee.Grade, fee.FeeType))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Fee structure deleted successfully"})
}

func (h *Handler) loadFee(c *gin.Context) (*models.FeeStructure, bool) {
	id, _ := paramID(c)
	fee, err := h.store.GetFee(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		h.notFound(c)
		return nil, false
	}
	if err != nil {
		h.serverError(c, err)
		return nil, false
	}
	return fee, true
}

func bindFee(c *gin.Context, fee *models.FeeStructure) string {
	fee.Grade = strings.TrimSpace(c.PostForm("grade"))
	fee.FeeType = strings.TrimSpace(c.PostForm("fee_type"))
	fee.Description = strings.TrimSpace(c.PostForm("description"))
	fee.AcademicYear = strings.TrimSpace(c.PostForm("academic_year"))

	term, err := models.ParseTerm(c.PostForm("term"))
	if err != nil {
		return "Please choose a valid term"
	}
	fee.Term = term

	amount, err := models.ParseMoney(c.PostForm("amount"))
	if err != nil || amount <= 0 {
		return "Fee amount must be a positive number"
	}
	fee.Amount = amount

	if fee.Grade == "" || fee.FeeType == "" || fee.AcademicYear == "" {
		return "Grade, fee type and academic year are required"
	}
	return ""
}

func feeSaveError(verb string, err error) string {
	if errors.Is(err, repository.ErrDuplicate) {
		return "A fee of this type already exists for that grade, term and academic year"
	}
	return fmt.Sprintf("Error %s fee structure: %v", verb, err)
}

func (h *Handler) feeForm(c *gin.Context, fee *models.FeeStructure) {
	action := "/fees/create"
	if fee.ID != 0 {
		action = fmt.Sprintf("/fees/edit/%d", fee.ID)
	}
	h.html(c, http.StatusOK, pageFeeForm, gin.H{
		"Fee":    fee,
		"Action": action,
		"Grades": grades,
		"Terms":  models.Terms,
	})
}
