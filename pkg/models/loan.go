package models

import (
	"time"

	"github.com/shelfwise/circulation/pkg/policy"
	"github.com/uptrace/bun"
)

const (
	LoanStatusActive   = "active"
	LoanStatusReturned = "returned"
	// LoanStatusOverdue is never stored. It's what DisplayStatus reports for
	// an active loan past its due date.
	LoanStatusOverdue = "overdue"
)

type Loan struct {
	bun.BaseModel `bun:"table:loans,alias:l"`

	ID           int        `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	UserID       int        `bun:",nullzero" json:"user_id"`
	User         *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	BookID       int        `bun:",nullzero" json:"book_id"`
	Book         *Book      `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty"`
	DueAt        time.Time  `json:"due_at"`
	ReturnedAt   *time.Time `json:"returned_at"`
	Status       string     `bun:",nullzero" json:"status"`
	RenewalCount int        `json:"renewal_count"`
}

func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusActive && l.ReturnedAt == nil
}

func (l *Loan) IsOverdue(now time.Time) bool {
	return l.IsActive() && now.After(l.DueAt)
}

func (l *Loan) DaysOverdue(now time.Time) int {
	if !l.IsActive() {
		return 0
	}
	return policy.DaysOverdue(l.DueAt, now)
}

func (l *Loan) RenewalsRemaining(maxRenewals int) int {
	return max(0, maxRenewals-l.RenewalCount)
}

func (l *Loan) DisplayStatus(now time.Time) string {
	if l.IsOverdue(now) {
		return LoanStatusOverdue
	}
	return l.Status
}
