// Package policy decides whether a borrower may take out a loan, place a
// reservation or renew a loan. Decisions are pure functions over plain
// inputs; callers gather the facts inside their transaction and translate
// a Violation into an error.
package policy

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shelfwise/circulation/pkg/config"
	"github.com/shelfwise/circulation/pkg/errcodes"
)

const day = 24 * time.Hour

type Role int

const (
	RoleMember Role = iota
	RoleAdministrator
)

type Actor struct {
	ID   int
	Role Role
}

// CanManage reports whether actor may act on a loan or reservation that
// belongs to ownerID.
func CanManage(actor Actor, ownerID int) bool {
	return actor.Role == RoleAdministrator || actor.ID == ownerID
}

type Kind string

const (
	KindPolicyViolation   Kind = "policy_violation"
	KindDuplicateActive   Kind = "duplicate_active"
	KindRenewalNotAllowed Kind = "renewal_not_allowed"
)

const (
	ReasonBorrowerInactive        = "borrower_inactive"
	ReasonBookUnavailable         = "book_unavailable"
	ReasonLoanLimitReached        = "loan_limit_reached"
	ReasonDuplicateLoan           = "duplicate_active_loan"
	ReasonReservationLimitReached = "reservation_limit_reached"
	ReasonDuplicateReservation    = "duplicate_active_reservation"
	ReasonLoanNotActive           = "loan_not_active"
	ReasonRenewalLimitReached     = "renewal_limit_reached"
	ReasonOverdueBeyondGrace      = "overdue_beyond_grace"
)

type Violation struct {
	Kind    Kind
	Reason  string
	Message string
}

// Err converts the violation into the error code returned to callers.
func (v *Violation) Err() error {
	switch v.Kind {
	case KindDuplicateActive:
		return errcodes.DuplicateActive(v.Reason, v.Message)
	case KindRenewalNotAllowed:
		return errcodes.RenewalNotAllowed(v.Reason, v.Message)
	default:
		return errcodes.PolicyViolation(v.Reason, v.Message)
	}
}

type RenewalCheck int

const (
	CheckActive RenewalCheck = iota
	CheckCap
	CheckGrace
)

type Policy struct {
	MaxActiveLoans        int
	MaxActiveReservations int
	LoanDuration          time.Duration
	ReservationHold       time.Duration
	MaxRenewals           int
	OverdueGrace          time.Duration
	// RenewalChecks is the order DecideRenewal evaluates its checks in. The
	// first failing check decides the reason.
	RenewalChecks []RenewalCheck
}

func Default() Policy {
	return Policy{
		MaxActiveLoans:        3,
		MaxActiveReservations: 3,
		LoanDuration:          15 * day,
		ReservationHold:       7 * day,
		MaxRenewals:           2,
		OverdueGrace:          7 * day,
		RenewalChecks:         []RenewalCheck{CheckActive, CheckCap, CheckGrace},
	}
}

func FromConfig(cfg *config.Config) (Policy, error) {
	p := Policy{
		MaxActiveLoans:        cfg.MaxActiveLoans,
		MaxActiveReservations: cfg.MaxActiveReservations,
		LoanDuration:          time.Duration(cfg.LoanDurationDays) * day,
		ReservationHold:       time.Duration(cfg.ReservationHoldDays) * day,
		MaxRenewals:           cfg.MaxRenewals,
		OverdueGrace:          time.Duration(cfg.OverdueGraceDays) * day,
	}
	switch cfg.RenewalCheckOrder {
	case config.RenewalOrderCapFirst, "":
		p.RenewalChecks = []RenewalCheck{CheckActive, CheckCap, CheckGrace}
	case config.RenewalOrderOverdueFirst:
		p.RenewalChecks = []RenewalCheck{CheckActive, CheckGrace, CheckCap}
	default:
		return Policy{}, errors.Errorf("unknown renewal check order %q", cfg.RenewalCheckOrder)
	}
	return p, nil
}

func (p Policy) DueAt(from time.Time) time.Time {
	return from.Add(p.LoanDuration)
}

func (p Policy) HoldExpiresAt(from time.Time) time.Time {
	return from.Add(p.ReservationHold)
}

// DaysOverdue is the number of whole days now is past dueAt, or 0 if it
// isn't past due.
func DaysOverdue(dueAt, now time.Time) int {
	if !now.After(dueAt) {
		return 0
	}
	return int(now.Sub(dueAt) / day)
}

type LoanRequest struct {
	BorrowerActive       bool
	ActiveLoans          int
	HasActiveLoanForBook bool
	// HoldsReservation means the borrower has an active reservation for the
	// book, which already set a copy aside for them.
	HoldsReservation bool
	AvailableCopies  int
}

func (p Policy) DecideLoan(r LoanRequest) *Violation {
	if !r.BorrowerActive {
		return &Violation{KindPolicyViolation, ReasonBorrowerInactive, "Borrower account is inactive."}
	}
	if r.HasActiveLoanForBook {
		return &Violation{KindPolicyViolation, ReasonDuplicateLoan, "Borrower already has an active loan for this book."}
	}
	if r.ActiveLoans >= p.MaxActiveLoans {
		return &Violation{KindPolicyViolation, ReasonLoanLimitReached, "Borrower has reached the active loan limit."}
	}
	if r.AvailableCopies <= 0 && !r.HoldsReservation {
		return &Violation{KindPolicyViolation, ReasonBookUnavailable, "No copies of this book are available."}
	}
	return nil
}

type ReservationRequest struct {
	BorrowerActive              bool
	ActiveReservations          int
	HasActiveReservationForBook bool
	AvailableCopies             int
}

func (p Policy) DecideReservation(r ReservationRequest) *Violation {
	if !r.BorrowerActive {
		return &Violation{KindPolicyViolation, ReasonBorrowerInactive, "Borrower account is inactive."}
	}
	if r.HasActiveReservationForBook {
		return &Violation{KindDuplicateActive, ReasonDuplicateReservation, "Borrower already has an active reservation for this book."}
	}
	if r.ActiveReservations >= p.MaxActiveReservations {
		return &Violation{KindPolicyViolation, ReasonReservationLimitReached, "Borrower has reached the active reservation limit."}
	}
	if r.AvailableCopies <= 0 {
		return &Violation{KindPolicyViolation, ReasonBookUnavailable, "No copies of this book are available."}
	}
	return nil
}

type RenewalRequest struct {
	Active       bool
	RenewalCount int
	DueAt        time.Time
	Now          time.Time
}

func (p Policy) DecideRenewal(r RenewalRequest) *Violation {
	checks := p.RenewalChecks
	if len(checks) == 0 {
		checks = Default().RenewalChecks
	}
	for _, check := range checks {
		switch check {
		case CheckActive:
			if !r.Active {
				return &Violation{KindRenewalNotAllowed, ReasonLoanNotActive, "Only active loans can be renewed."}
			}
		case CheckCap:
			if r.RenewalCount >= p.MaxRenewals {
				return &Violation{KindRenewalNotAllowed, ReasonRenewalLimitReached, "Loan has reached the renewal limit."}
			}
		case CheckGrace:
			if DaysOverdue(r.DueAt, r.Now) > int(p.OverdueGrace/day) {
				return &Violation{KindRenewalNotAllowed, ReasonOverdueBeyondGrace, "Loan is too far overdue to be renewed."}
			}
		}
	}
	return nil
}

// RenewalsRemaining never goes below zero.
func (p Policy) RenewalsRemaining(renewalCount int) int {
	return max(0, p.MaxRenewals-renewalCount)
}
