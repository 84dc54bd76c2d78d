package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "Cash"
	MethodMPesa        PaymentMethod = "M-Pesa"
	MethodBankTransfer PaymentMethod = "Bank Transfer"
	MethodCheque       PaymentMethod = "Cheque"
	MethodCard         PaymentMethod = "Card"
)

var PaymentMethods = []PaymentMethod{MethodCash, MethodMPesa, MethodBankTransfer, MethodCheque, MethodCard}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	for _, m := range PaymentMethods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:p"`

	ID                   int64         `bun:"id,pk,autoincrement" json:"id"`
	StudentID            int64         `bun:"student_id,notnull" json:"student_id"`
	Amount               Money         `bun:"amount,notnull" json:"amount"`
	FeeType              string        `bun:"fee_type,notnull,type:varchar(50)" json:"fee_type"`
	Method               PaymentMethod `bun:"payment_method,notnull,type:varchar(20)" json:"payment_method"`
	PaymentDate          Date          `bun:"payment_date,notnull,type:varchar(10)" json:"payment_date"`
	TransactionReference string        `bun:"transaction_reference,type:varchar(100)" json:"transaction_reference"`
	ReceiptNumber        string        `bun:"receipt_number,notnull,unique,type:varchar(50)" json:"receipt_number"`
	Notes                string        `bun:"notes,type:text" json:"-"`
	CreatedBy            *int64        `bun:"created_by" json:"-"`
	CreatedAt            time.Time     `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"-"`
	UpdatedAt            time.Time     `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"-"`

	Student *Student `bun:"rel:belongs-to,join:student_id=id" json:"-"`
}

// StudentName is empty when the student relation was not loaded.
func (p *Payment) StudentName() string {
	if p.Student == nil {
		return ""
	}
	return p.Student.FullName
}

// NewReceiptNumber returns RCP-<yyyymmdd>-<6 upper-case hex digits>.
func NewReceiptNumber(now time.Time) (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error generating receipt suffix: %w", err)
	}
	return fmt.Sprintf("RCP-%s-%s", now.Format("20060102"), strings.ToUpper(hex.EncodeToString(b))), nil
}

// PaymentEvent is what live dashboard subscribers receive for each recorded payment.
type PaymentEvent struct {
	PaymentID     int64         `json:"payment_id"`
	ReceiptNumber string        `json:"receipt_number"`
	StudentName   string        `json:"student_name"`
	Amount        Money         `json:"amount"`
	Method        PaymentMethod `json:"payment_method"`
	PaymentDate   Date          `json:"payment_date"`
}
