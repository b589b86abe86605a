package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/shelfwise/circulation/pkg/clock"
	"github.com/shelfwise/circulation/pkg/errcodes"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/shelfwise/circulation/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

var start = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func TestDerive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		total        int
		loans        int
		reservations int
		expected     int
	}{
		{"all on the shelf", 3, 0, 0, 3},
		{"some out on loan", 3, 1, 0, 2},
		{"loans and holds", 3, 1, 1, 1},
		{"fully committed", 2, 1, 1, 0},
		{"over committed clamps at zero", 1, 2, 1, 0},
		{"no copies", 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Derive(tt.total, tt.loans, tt.reservations))
		})
	}
}

func newTestLedger(t *testing.T) (*Ledger, *bun.DB) {
	t.Helper()
	db := testutils.NewTestDB(t)
	return NewLedger(db, clock.NewMock(start)), db
}

func insertLoan(t *testing.T, db bun.IDB, book *models.Book, status string) {
	t.Helper()
	member := testutils.CreateMember(t, db)
	loan := &models.Loan{
		CreatedAt: start,
		UpdatedAt: start,
		UserID:    member.ID,
		BookID:    book.ID,
		DueAt:     start.Add(14 * 24 * time.Hour),
		Status:    status,
	}
	if status == models.LoanStatusReturned {
		loan.ReturnedAt = &start
	}
	_, err := db.NewInsert().Model(loan).Exec(context.Background())
	require.NoError(t, err)
}

func insertReservation(t *testing.T, db bun.IDB, book *models.Book, status string) {
	t.Helper()
	member := testutils.CreateMember(t, db)
	r := &models.Reservation{
		CreatedAt: start,
		UpdatedAt: start,
		UserID:    member.ID,
		BookID:    book.ID,
		ExpiresAt: start.Add(72 * time.Hour),
		Status:    status,
	}
	_, err := db.NewInsert().Model(r).Exec(context.Background())
	require.NoError(t, err)
}

func TestRecompute(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, db := newTestLedger(t)

	book := testutils.CreateBook(t, db, "Middlemarch", 4)
	insertLoan(t, db, book, models.LoanStatusActive)
	insertLoan(t, db, book, models.LoanStatusReturned)
	insertReservation(t, db, book, models.ReservationStatusActive)
	insertReservation(t, db, book, models.ReservationStatusCancelled)

	available, err := ledger.Recompute(ctx, db, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, available)
	assert.Equal(t, 2, testutils.Reload(t, db, book).AvailableCopies)

	// Nothing changed, so a second pass is a no-op.
	available, err = ledger.Recompute(ctx, db, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, available)
}

func TestRecompute_MissingBook(t *testing.T) {
	t.Parallel()
	ledger, db := newTestLedger(t)

	_, err := ledger.Recompute(context.Background(), db, 999)
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, "not_found"))
}

func TestSetTotal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, db := newTestLedger(t)

	book := testutils.CreateBook(t, db, "Ivanhoe", 3)
	insertLoan(t, db, book, models.LoanStatusActive)
	insertLoan(t, db, book, models.LoanStatusActive)
	_, err := ledger.Recompute(ctx, db, book.ID)
	require.NoError(t, err)

	available, err := ledger.SetTotal(ctx, db, book.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, available)

	// Shrinking below the copies out on loan clamps availability at zero.
	available, err = ledger.SetTotal(ctx, db, book.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, available)

	fresh := testutils.Reload(t, db, book)
	assert.Equal(t, 1, fresh.TotalCopies)
	assert.Equal(t, 0, fresh.AvailableCopies)
}

func TestAvailability(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, db := newTestLedger(t)

	book := testutils.CreateBook(t, db, "Persuasion", 2)
	insertLoan(t, db, book, models.LoanStatusActive)
	_, err := ledger.Recompute(ctx, db, book.ID)
	require.NoError(t, err)

	a, err := ledger.Availability(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, &Availability{
		BookID:             book.ID,
		Available:          1,
		Total:              2,
		ActiveLoans:        1,
		ActiveReservations: 0,
	}, a)

	_, err = ledger.Availability(ctx, book.ID+100)
	assert.True(t, errcodes.HasCode(err, "not_found"))
}

func TestReconcile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, db := newTestLedger(t)

	clean := testutils.CreateBook(t, db, "Walden", 2)
	drifted := testutils.CreateBook(t, db, "Kidnapped", 2)
	insertLoan(t, db, drifted, models.LoanStatusActive)

	report, err := ledger.Reconcile(ctx, ReconcileOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 0, report.Corrected)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, &Drift{BookID: drifted.ID, Title: "Kidnapped", Stored: 2, Derived: 1}, report.Drifts[0])
	assert.Equal(t, 2, testutils.Reload(t, db, drifted).AvailableCopies)

	report, err = ledger.Reconcile(ctx, ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Corrected)
	assert.Equal(t, 1, testutils.Reload(t, db, drifted).AvailableCopies)
	assert.Equal(t, 2, testutils.Reload(t, db, clean).AvailableCopies)

	report, err = ledger.Reconcile(ctx, ReconcileOptions{})
	require.NoError(t, err)
	assert.Empty(t, report.Drifts)
}
