package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const studentNumberPrefix = "STU"

type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID              int64     `bun:"id,pk,autoincrement" json:"id"`
	StudentNumber   string    `bun:"student_number,notnull,unique,type:varchar(20)" json:"student_number"`
	FullName        string    `bun:"full_name,notnull,type:varchar(150)" json:"full_name"`
	Grade           string    `bun:"grade,notnull,type:varchar(10)" json:"grade"`
	GuardianName    string    `bun:"guardian_name,type:varchar(150)" json:"guardian_name"`
	GuardianContact string    `bun:"guardian_contact,notnull,type:varchar(20)" json:"guardian_contact"`
	GuardianEmail   string    `bun:"guardian_email,type:varchar(120)" json:"guardian_email"`
	Address         string    `bun:"address,type:text" json:"-"`
	Balance         Money     `bun:"balance,notnull,default:0" json:"balance"`
	IsActive        bool      `bun:"is_active,notnull,default:true" json:"is_active"`
	EnrollmentDate  Date      `bun:"enrollment_date,nullzero,type:varchar(10)" json:"enrollment_date"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"-"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"-"`
}

// NextStudentNumber returns the number following last: STU007 -> STU008.
// Anything that is not a STU number restarts the sequence at STU001.
func NextStudentNumber(last string) string {
	rest, ok := strings.CutPrefix(last, studentNumberPrefix)
	if !ok {
		return studentNumberPrefix + "001"
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return studentNumberPrefix + "001"
	}
	return fmt.Sprintf("%s%03d", studentNumberPrefix, n+1)
}

type ChangeType string

const (
	ChangePayment    ChangeType = "payment"
	ChangeFeeApplied ChangeType = "fee_applied"
	ChangeAdjustment ChangeType = "adjustment"
	ChangeRefund     ChangeType = "refund"
)

type BalanceHistory struct {
	bun.BaseModel `bun:"table:balance_history,alias:bh"`

	ID              int64      `bun:"id,pk,autoincrement" json:"id"`
	StudentID       int64      `bun:"student_id,notnull" json:"student_id"`
	PreviousBalance Money      `bun:"previous_balance,notnull" json:"previous_balance"`
	NewBalance      Money      `bun:"new_balance,notnull" json:"new_balance"`
	ChangeAmount    Money      `bun:"change_amount,notnull" json:"change_amount"`
	ChangeType      ChangeType `bun:"change_type,notnull,type:varchar(20)" json:"change_type"`
	ReferenceID     *int64     `bun:"reference_id" json:"reference_id,omitempty"`
	Description     string     `bun:"description,type:text" json:"description"`
	CreatedBy       *int64     `bun:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
