package policy

import (
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shelfwise/circulation/pkg/config"
	"github.com/shelfwise/circulation/pkg/errcodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideLoan(t *testing.T) {
	t.Parallel()
	p := Default()

	tests := []struct {
		name   string
		req    LoanRequest
		reason string
	}{
		{
			name: "allowed",
			req:  LoanRequest{BorrowerActive: true, ActiveLoans: 2, AvailableCopies: 1},
		},
		{
			name:   "inactive borrower",
			req:    LoanRequest{BorrowerActive: false, AvailableCopies: 1},
			reason: ReasonBorrowerInactive,
		},
		{
			name:   "duplicate loan wins over availability",
			req:    LoanRequest{BorrowerActive: true, HasActiveLoanForBook: true, AvailableCopies: 0},
			reason: ReasonDuplicateLoan,
		},
		{
			name:   "loan cap",
			req:    LoanRequest{BorrowerActive: true, ActiveLoans: 3, AvailableCopies: 5},
			reason: ReasonLoanLimitReached,
		},
		{
			name:   "no copies",
			req:    LoanRequest{BorrowerActive: true, AvailableCopies: 0},
			reason: ReasonBookUnavailable,
		},
		{
			name: "no copies but holds a reservation",
			req:  LoanRequest{BorrowerActive: true, AvailableCopies: 0, HoldsReservation: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := p.DecideLoan(tt.req)
			if tt.reason == "" {
				assert.Nil(t, v)
				return
			}
			require.NotNil(t, v)
			assert.Equal(t, KindPolicyViolation, v.Kind)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestDecideReservation(t *testing.T) {
	t.Parallel()
	p := Default()

	tests := []struct {
		name   string
		req    ReservationRequest
		kind   Kind
		reason string
	}{
		{
			name: "allowed",
			req:  ReservationRequest{BorrowerActive: true, ActiveReservations: 2, AvailableCopies: 1},
		},
		{
			name:   "inactive borrower",
			req:    ReservationRequest{AvailableCopies: 1},
			kind:   KindPolicyViolation,
			reason: ReasonBorrowerInactive,
		},
		{
			name:   "duplicate is reported before availability",
			req:    ReservationRequest{BorrowerActive: true, HasActiveReservationForBook: true, AvailableCopies: 0},
			kind:   KindDuplicateActive,
			reason: ReasonDuplicateReservation,
		},
		{
			name:   "reservation cap",
			req:    ReservationRequest{BorrowerActive: true, ActiveReservations: 3, AvailableCopies: 1},
			kind:   KindPolicyViolation,
			reason: ReasonReservationLimitReached,
		},
		{
			name:   "no copies",
			req:    ReservationRequest{BorrowerActive: true},
			kind:   KindPolicyViolation,
			reason: ReasonBookUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := p.DecideReservation(tt.req)
			if tt.reason == "" {
				assert.Nil(t, v)
				return
			}
			require.NotNil(t, v)
			assert.Equal(t, tt.kind, v.Kind)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestDecideRenewal(t *testing.T) {
	t.Parallel()
	due := time.Date(2025, 1, 16, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		order  string
		req    RenewalRequest
		reason string
	}{
		{
			name: "on time",
			req:  RenewalRequest{Active: true, DueAt: due, Now: due.Add(-time.Hour)},
		},
		{
			name: "seven days late is within grace",
			req:  RenewalRequest{Active: true, DueAt: due, Now: due.Add(7*day + 23*time.Hour)},
		},
		{
			name:   "eight days late",
			req:    RenewalRequest{Active: true, DueAt: due, Now: due.Add(8 * day)},
			reason: ReasonOverdueBeyondGrace,
		},
		{
			name:   "returned loan",
			req:    RenewalRequest{Active: false, RenewalCount: 2, DueAt: due, Now: due.Add(30 * day)},
			reason: ReasonLoanNotActive,
		},
		{
			name:   "cap reached",
			req:    RenewalRequest{Active: true, RenewalCount: 2, DueAt: due, Now: due},
			reason: ReasonRenewalLimitReached,
		},
		{
			name:   "cap and overdue with cap_first",
			order:  config.RenewalOrderCapFirst,
			req:    RenewalRequest{Active: true, RenewalCount: 2, DueAt: due, Now: due.Add(10 * day)},
			reason: ReasonRenewalLimitReached,
		},
		{
			name:   "cap and overdue with overdue_first",
			order:  config.RenewalOrderOverdueFirst,
			req:    RenewalRequest{Active: true, RenewalCount: 2, DueAt: due, Now: due.Add(10 * day)},
			reason: ReasonOverdueBeyondGrace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.NewForTest()
			if tt.order != "" {
				cfg.RenewalCheckOrder = tt.order
			}
			p, err := FromConfig(cfg)
			require.NoError(t, err)

			v := p.DecideRenewal(tt.req)
			if tt.reason == "" {
				assert.Nil(t, v)
				return
			}
			require.NotNil(t, v)
			assert.Equal(t, KindRenewalNotAllowed, v.Kind)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestDaysOverdue(t *testing.T) {
	t.Parallel()
	due := time.Date(2025, 1, 16, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysOverdue(due, due))
	assert.Equal(t, 0, DaysOverdue(due, due.Add(-48*time.Hour)))
	assert.Equal(t, 0, DaysOverdue(due, due.Add(23*time.Hour)))
	assert.Equal(t, 1, DaysOverdue(due, due.Add(24*time.Hour)))
	assert.Equal(t, 5, DaysOverdue(due, due.Add(5*day+time.Minute)))
}

func TestDueDates(t *testing.T) {
	t.Parallel()
	p := Default()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), p.DueAt(now))
	assert.Equal(t, time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), p.HoldExpiresAt(now))
	assert.Equal(t, 2, p.RenewalsRemaining(0))
	assert.Equal(t, 0, p.RenewalsRemaining(2))
	assert.Equal(t, 0, p.RenewalsRemaining(5))
}

func TestCanManage(t *testing.T) {
	t.Parallel()
	member := Actor{ID: 1, Role: RoleMember}
	admin := Actor{ID: 2, Role: RoleAdministrator}

	assert.True(t, CanManage(member, 1))
	assert.False(t, CanManage(member, 3))
	assert.True(t, CanManage(admin, 3))
}

func TestViolationErr(t *testing.T) {
	t.Parallel()

	err := (&Violation{KindPolicyViolation, ReasonBookUnavailable, "none left"}).Err()
	var e *errcodes.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, http.StatusUnprocessableEntity, e.HTTPCode)
	assert.Equal(t, "policy_violation", e.Code)
	assert.Equal(t, ReasonBookUnavailable, e.Reason)

	err = (&Violation{KindDuplicateActive, ReasonDuplicateReservation, "again"}).Err()
	require.True(t, errors.As(err, &e))
	assert.Equal(t, http.StatusConflict, e.HTTPCode)
	assert.Equal(t, "duplicate_active", e.Code)

	err = (&Violation{KindRenewalNotAllowed, ReasonRenewalLimitReached, "done"}).Err()
	assert.True(t, errcodes.HasCode(err, "renewal_not_allowed"))
}

func TestFromConfig(t *testing.T) {
	t.Parallel()
	cfg := config.NewForTest()
	cfg.LoanDurationDays = 21
	cfg.OverdueGraceDays = 3

	p, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 21*day, p.LoanDuration)
	assert.Equal(t, 3*day, p.OverdueGrace)
	assert.Equal(t, []RenewalCheck{CheckActive, CheckCap, CheckGrace}, p.RenewalChecks)

	cfg.RenewalCheckOrder = "bogus"
	_, err = FromConfig(cfg)
	assert.Error(t, err)
}
