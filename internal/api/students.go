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

func (h *Handler) listStudents(c *gin.Context) {
	search := strings.TrimSpace(c.Query("search"))
	grade := c.Query("grade")
	result, err := h.store.ListStudents(c.Request.Context(), repository.StudentFilter{
		Search:     search,
		Grade:      grade,
		Pagination: repository.Pagination{Page: queryInt(c, "page", 1), PerPage: h.settings.ItemsPerPage},
	})
	if err != nil {
		h.serverError(c, err)
		return
	}
	h.html(c, http.StatusOK, pageStudents, gin.H{
		"Students":    result,
		"Pager":       newPager(c, result),
		"Search":      search,
		"GradeFilter": grade,
		"Grades":      grades,
	})
}

func (h *Handler) apiStudents(c *gin.Context) {
	students, err := h.store.ListActiveStudents(c.Request.Context())
	if err != nil {
		h.serverError(c, err)
		return
	}
	if students == nil {
		students = []models.Student{}
	}
	c.JSON(http.StatusOK, students)
}

func (h *Handler) apiStudent(c *gin.Context) {
	st, ok := h.loadStudent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) apiStudentHistory(c *gin.Context) {
	st, ok := h.loadStudent(c)
	if !ok {
		return
	}
	history, err := h.store.BalanceHistory(c.Request.Context(), st.ID)
	if err != nil {
		h.serverError(c, err)
		return
	}
	if history == nil {
		history = []models.BalanceHistory{}
	}
	c.JSON(http.StatusOK, history)
}

// loadStudent fetches the :id student, answering 404 itself when missing.
func (h *Handler) loadStudent(c *gin.Context) (*models.Student, bool) {
	id, ok := paramID(c)
	if !ok {
		h.notFound(c)
		return nil, false
	}
	st, err := h.store.GetStudent(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		h.notFound(c)
		return nil, false
	}
	if err != nil {
		h.serverError(c, err)
		return nil, false
	}
	return st, true
}

func (h *Handler) createStudentPage(c *gin.Context) {
	if !currentUser(c).HasPermission(models.PermCreate) {
		h.flashRedirect(c, "error", "You do not have permission to create students", "/students")
		return
	}
	h.studentForm(c, &models.Student{EnrollmentDate: models.NewDate(h.clock.Now())}, nil)
}

func (h *Handler) createStudent(c *gin.Context) {
	if !currentUser(c).HasPermission(models.PermCreate) {
		h.flashRedirect(c, "error", "You do not have permission to create students", "/students")
		return
	}
	ctx := c.Request.Context()

	st := &models.Student{}
	if problem := h.bindStudent(c, st); problem != "" {
		h.flash(c, "error", problem)
		h.studentForm(c, st, nil)
		return
	}

	if raw := strings.TrimSpace(c.PostForm("balance")); raw != "" {
		balance, err := models.ParseMoney(raw)
		if err != nil {
			h.flash(c, "error", "Opening balance must be a valid amount")
			h.studentForm(c, st, nil)
			return
		}
		st.Balance = balance
	}
	if st.Balance == 0 {
		total, err := h.store.TotalFeesForGrade(ctx, st.Grade, "", "")
		if err != nil {
			h.serverError(c, err)
			return
		}
		st.Balance = total
	}

	if err := h.store.CreateStudent(ctx, st); err != nil {
		h.flash(c, "error", fmt.Sprintf("Error creating student: %v", err))
		h.studentForm(c, st, nil)
		return
	}
	h.logAction(c, "create_student", "student", st.ID, fmt.Sprintf("Created student: %s", st.FullName))
	h.flashRedirect(c, "success", fmt.Sprintf("Student %s created successfully", st.FullName), "/students")
}

func (h *Handler) editStudentPage(c *gin.Context) {
	if !currentUser(c).HasPermission(models.PermEdit) {
		h.flashRedirect(c, "error", "You do not have permission to edit students", "/students")
		return
	}
	st, ok := h.loadStudent(c)
	if !ok {
		return
	}
	history, err := h.store.BalanceHistory(c.Request.Context(), st.ID)
	if err != nil {
		h.serverError(c, err)
		return
	}
	h.studentForm(c, st, history)
}

func (h *Handler) editStudent(c *gin.Context) {
	if !currentUser(c).HasPermission(models.PermEdit) {
		h.flashRedirect(c, "error", "You do not have permission to edit students", "/students")
		return
	}
	st, ok := h.loadStudent(c)
	if !ok {
		return
	}
	if problem := h.bindStudent(c, st); problem != "" {
		h.flash(c, "error", problem)
		h.studentForm(c, st, nil)
		return
	}
	if err := h.store.UpdateStudent(c.Request.Context(), st); err != nil {
		h.flash(c, "error", fmt.Sprintf("Error updating student: %v", err))
		h.studentForm(c, st, nil)
		return
	}
	h.logAction(c, "edit_student", "student", st.ID, fmt.Sprintf("Updated student: %s", st.FullName))
	h.flashRedirect(c, "success", fmt.Sprintf("Student %s updated successfully", st.FullName), "/students")
}

func (h *Handler) deleteStudent(c *gin.Context) {
	if !requirePermission(c, models.PermDelete) {
		return
	}
	id, ok := paramID(c)
	if !ok {
		jsonError(c, http.StatusNotFound, "Student not found")
		return
	}
	st, err := h.store.DeactivateStudent(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		jsonError(c, http.StatusNotFound, "Student not found")
		return
	}
	if err != nil {
		h.serverError(c, err)
		return
	}
	h.logAction(c, "delete_student", "student", st.ID, fmt.Sprintf("Deleted student: %s", st.FullName))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("Student %s deleted successfully", st.FullName)})
}

func (h *Handler) applyFees(c *gin.Context) {
	if !requirePermission(c, models.PermEdit) {
		return
	}
	ctx := c.Request.Context()
	id, _ := paramID(c)
	st, err := h.store.GetStudent(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		jsonError(c, http.StatusNotFound, "Student not found")
		return
	}
	if err != nil {
		h.serverError(c, err)
		return
	}

	applied, balance, err := h.store.ApplyFees(ctx, st.ID, userID(c))
	if errors.Is(err, repository.ErrNoFeeStructure) {
		jsonError(c, http.StatusBadRequest, fmt.Sprintf("No fee structure defined for Grade %s", st.Grade))
		return
	}
	if err != nil {
		h.serverError(c, err)
		return
	}

	h.metrics.FeesApplied.Inc()
	h.logAction(c, "apply_fees", "student", st.ID, fmt.Sprintf("Applied fees of %s to %s", applied, st.FullName))
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Fee structure applied successfully",
		"new_balance":    balance,
		"amount_applied": applied,
	})
}

// bindStudent copies the profile fields from the form into st and returns a
// user-facing problem, if any.
func (h *Handler) bindStudent(c *gin.Context, st *models.Student) string {
	st.FullName = strings.TrimSpace(c.PostForm("full_name"))
	st.Grade = strings.TrimSpace(c.PostForm("grade"))
	st.GuardianName = strings.TrimSpace(c.PostForm("guardian_name"))
	st.GuardianContact = strings.TrimSpace(c.PostForm("guardian_contact"))
	st.GuardianEmail = strings.TrimSpace(c.PostForm("guardian_email"))
	st.Address = strings.TrimSpace(c.PostForm("address"))

	if raw := c.PostForm("enrollment_date"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			return "Enrollment date must be in YYYY-MM-DD format"
		}
		st.EnrollmentDate = d
	} else if st.EnrollmentDate.IsZero() {
		st.EnrollmentDate = models.NewDate(h.clock.Now())
	}

	if st.FullName == "" || st.Grade == "" || st.GuardianContact == "" {
		return "Full name, grade and guardian contact are required"
	}
	return ""
}

func (h *Handler) studentForm(c *gin.Context, st *models.Student, history []models.BalanceHistory) {
	action := "/students/create"
	if st.ID != 0 {
		action = fmt.Sprintf("/students/edit/%d", st.ID)
	}
	h.html(c, http.StatusOK, pageStudentForm, gin.H{
		"Student": st,
		"History": history,
		"Action":  action,
		"Grades":  grades,
	})
}
