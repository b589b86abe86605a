package stats

import (
	"context"
	"testing"
	"time"

	"github.com/shelfwise/circulation/pkg/clock"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/shelfwise/circulation/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieveStats_Empty(t *testing.T) {
	t.Parallel()
	db := testutils.NewTestDB(t)
	svc := NewService(db, clock.New())

	stats, err := svc.RetrieveStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, stats)
}

func TestRetrieveStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testutils.NewTestDB(t)
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	svc := NewService(db, clock.NewMock(now))

	dune := testutils.CreateBook(t, db, "Dune", 3)
	testutils.CreateBook(t, db, "Emma", 2)
	a := testutils.CreateMember(t, db)
	b := testutils.CreateMember(t, db)
	_, err := db.NewUpdate().Model((*models.User)(nil)).Set("is_active = ?", false).Where("id = ?", b.ID).Exec(ctx)
	require.NoError(t, err)

	loans := []*models.Loan{
		{CreatedAt: now, UpdatedAt: now, UserID: a.ID, BookID: dune.ID, DueAt: now.Add(-48 * time.Hour), Status: models.LoanStatusActive},
		{CreatedAt: now, UpdatedAt: now, UserID: b.ID, BookID: dune.ID, DueAt: now.Add(48 * time.Hour), Status: models.LoanStatusActive},
	}
	_, err = db.NewInsert().Model(&loans).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewUpdate().Model((*models.Book)(nil)).Set("available_copies = 1").Where("id = ?", dune.ID).Exec(ctx)
	require.NoError(t, err)

	stats, err := svc.RetrieveStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{
		Books:              2,
		Authors:            2,
		TotalCopies:        5,
		AvailableCopies:    3,
		ActiveLoans:        2,
		OverdueLoans:       1,
		ActiveReservations: 0,
		Users:              2,
		ActiveUsers:        1,
	}, stats)
}

func TestRetrieveReport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testutils.NewTestDB(t)
	svc := NewService(db, clock.New())

	day := func(d int) time.Time { return time.Date(2026, 3, d, 10, 0, 0, 0, time.UTC) }
	returnedAt := func(at time.Time) *time.Time { return &at }

	dune := testutils.CreateBook(t, db, "Dune", 5)
	emma := testutils.CreateBook(t, db, "Emma", 5)
	ulysses := testutils.CreateBook(t, db, "Ulysses", 5)
	a := testutils.CreateMember(t, db)
	b := testutils.CreateMember(t, db)

	loans := []*models.Loan{
		// before the window
		{CreatedAt: day(1), UpdatedAt: day(1), UserID: a.ID, BookID: ulysses.ID, DueAt: day(15), ReturnedAt: returnedAt(day(20)), Status: models.LoanStatusReturned},
		// returned on time, one of them on the due date itself
		{CreatedAt: day(5), UpdatedAt: day(5), UserID: a.ID, BookID: dune.ID, DueAt: day(19), ReturnedAt: returnedAt(day(10)), Status: models.LoanStatusReturned},
		{CreatedAt: day(6), UpdatedAt: day(6), UserID: b.ID, BookID: dune.ID, DueAt: day(20), ReturnedAt: returnedAt(day(20)), Status: models.LoanStatusReturned},
		// returned late
		{CreatedAt: day(7), UpdatedAt: day(7), UserID: b.ID, BookID: emma.ID, DueAt: day(21), ReturnedAt: returnedAt(day(25)), Status: models.LoanStatusReturned},
		// still out
		{CreatedAt: day(8), UpdatedAt: day(8), UserID: a.ID, BookID: dune.ID, DueAt: day(22), Status: models.LoanStatusActive},
		// after the window
		{CreatedAt: day(12), UpdatedAt: day(12), UserID: b.ID, BookID: emma.ID, DueAt: day(26), Status: models.LoanStatusActive},
	}
	_, err := db.NewInsert().Model(&loans).Exec(ctx)
	require.NoError(t, err)

	from := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	report, err := svc.RetrieveReport(ctx, ReportOptions{From: &from, To: &to})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Loans)
	assert.Equal(t, 1, report.ActiveBorrowers)
	assert.Equal(t, 3, report.Returned)
	assert.Equal(t, 2, report.ReturnedOnTime)
	assert.InDelta(t, 66.67, report.OnTimeRate, 0.001)
	require.Len(t, report.PopularBooks, 2)
	assert.Equal(t, PopularBook{BookID: dune.ID, Title: "Dune", Loans: 3}, *report.PopularBooks[0])
	assert.Equal(t, PopularBook{BookID: emma.ID, Title: "Emma", Loans: 1}, *report.PopularBooks[1])

	report, err = svc.RetrieveReport(ctx, ReportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 6, report.Loans)
	assert.Equal(t, 2, report.ActiveBorrowers)
	assert.Equal(t, 4, report.Returned)
	assert.InDelta(t, 50.0, report.OnTimeRate, 0.001)
	require.Len(t, report.PopularBooks, 3)
	assert.Equal(t, dune.ID, report.PopularBooks[0].BookID)
}

func TestRetrieveReport_NothingReturned(t *testing.T) {
	t.Parallel()
	db := testutils.NewTestDB(t)
	svc := NewService(db, clock.New())

	report, err := svc.RetrieveReport(context.Background(), ReportOptions{})
	require.NoError(t, err)
	assert.Zero(t, report.Loans)
	assert.Zero(t, report.OnTimeRate)
	assert.Empty(t, report.PopularBooks)
}
