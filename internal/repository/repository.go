package repository

import (
	"context"
	"errors"

	"github.com/mr1hm/school-finance/internal/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("record already exists")
	ErrNoFeeStructure  = errors.New("no fee structure defined for grade")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Page is one page of an ordered listing.
type Page[T any] struct {
	Items   []T
	Page    int
	PerPage int
	Total   int
}

func (p Page[T]) Pages() int {
	if p.PerPage <= 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

func (p Page[T]) HasPrev() bool { return p.Page > 1 }
func (p Page[T]) HasNext() bool { return p.Page < p.Pages() }
func (p Page[T]) PrevNum() int  { return p.Page - 1 }
func (p Page[T]) NextNum() int  { return p.Page + 1 }

type Pagination struct {
	Page    int
	PerPage int
}

func (p Pagination) normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 50
	}
	return p
}

type StudentFilter struct {
	Search string // matches name, student number or guardian contact
	Grade  string
	Pagination
}

type FeeFilter struct {
	Grade string
	Term  models.Term
}

type PaymentFilter struct {
	Search   string // matches student name, receipt number or transaction reference
	Method   models.PaymentMethod
	DateFrom *models.Date
	DateTo   *models.Date
	Pagination
}

type DateRange struct {
	From *models.Date
	To   *models.Date
}

// BalanceChange describes one movement on a student's balance.
type BalanceChange struct {
	Amount      models.Money
	Type        models.ChangeType
	Description string
	CreatedBy   *int64
	ReferenceID *int64
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	SetUserActive(ctx context.Context, id int64, active bool) error
	CountUsers(ctx context.Context) (int, error)
}

type StudentRepository interface {
	CreateStudent(ctx context.Context, s *models.Student) error
	GetStudent(ctx context.Context, id int64) (*models.Student, error)
	UpdateStudent(ctx context.Context, s *models.Student) error
	DeactivateStudent(ctx context.Context, id int64) (*models.Student, error)
	ListStudents(ctx context.Context, f StudentFilter) (Page[models.Student], error)
	ListActiveStudents(ctx context.Context) ([]models.Student, error)
	ApplyFees(ctx context.Context, studentID int64, createdBy *int64) (applied, newBalance models.Money, err error)
	BalanceHistory(ctx context.Context, studentID int64) ([]models.BalanceHistory, error)
}

type FeeRepository interface {
	CreateFee(ctx context.Context, f *models.FeeStructure) error
	GetFee(ctx context.Context, id int64) (*models.FeeStructure, error)
	UpdateFee(ctx context.Context, f *models.FeeStructure) error
	DeactivateFee(ctx context.Context, id int64) (*models.FeeStructure, error)
	ListFees(ctx context.Context, f FeeFilter) ([]models.FeeStructure, error)
	TotalFeesForGrade(ctx context.Context, grade string, term models.Term, academicYear string) (models.Money, error)
}

type PaymentRepository interface {
	RecordPayment(ctx context.Context, p *models.Payment) (*models.Student, error)
	DeletePayment(ctx context.Context, id int64, deletedBy *int64) (*models.Payment, error)
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	ListPayments(ctx context.Context, f PaymentFilter) (Page[models.Payment], error)
	RecentPayments(ctx context.Context, limit int) ([]models.Payment, error)
}

type ReportRepository interface {
	PaymentsByGrade(ctx context.Context, r DateRange) ([]GradeTotal, error)
	PaymentsByMethod(ctx context.Context, r DateRange) ([]MethodTotal, error)
	Summary(ctx context.Context, r DateRange) (Summary, error)
	Defaulters(ctx context.Context, threshold models.Money) ([]models.Student, error)
	DashboardStats(ctx context.Context, monthStart models.Date) (DashboardStats, error)
	MonthlyTotals(ctx context.Context, months []MonthWindow) ([]MonthTotal, error)
	PaymentCalendar(ctx context.Context, year, month int) (map[string]DayTotal, error)
}

type AuditRepository interface {
	AddLog(ctx context.Context, l *models.SystemLog) error
	ListLogs(ctx context.Context, limit int) ([]models.SystemLog, error)
}

// Store is everything the web application needs from persistence.
type Store interface {
	UserRepository
	StudentRepository
	FeeRepository
	PaymentRepository
	ReportRepository
	AuditRepository
	Ping(ctx context.Context) error
}
