package models

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type Term string

const (
	Term1      Term = "Term 1"
	Term2      Term = "Term 2"
	Term3      Term = "Term 3"
	TermAnnual Term = "Annual"
)

var Terms = []Term{Term1, Term2, Term3, TermAnnual}

func ParseTerm(s string) (Term, error) {
	for _, t := range Terms {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown term %q", s)
}

type FeeStructure struct {
	bun.BaseModel `bun:"table:fee_structures,alias:f"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Grade        string    `bun:"grade,notnull,type:varchar(10),unique:fee_scope" json:"grade"`
	Term         Term      `bun:"term,notnull,type:varchar(10),unique:fee_scope" json:"term"`
	FeeType      string    `bun:"fee_type,notnull,type:varchar(50),unique:fee_scope" json:"fee_type"`
	Amount       Money     `bun:"amount,notnull" json:"amount"`
	Description  string    `bun:"description,type:text" json:"description"`
	AcademicYear string    `bun:"academic_year,notnull,type:varchar(10),unique:fee_scope" json:"academic_year"`
	IsActive     bool      `bun:"is_active,notnull,default:true" json:"is_active"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"-"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"-"`
}
