// Package stats reports the counts shown on the admin dashboard and the
// loan reports for a date range.
package stats

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/shelfwise/circulation/pkg/clock"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/uptrace/bun"
)

type Stats struct {
	Books              int `json:"books" bun:"books"`
	Authors            int `json:"authors" bun:"authors"`
	TotalCopies        int `json:"total_copies" bun:"total_copies"`
	AvailableCopies    int `json:"available_copies" bun:"available_copies"`
	ActiveLoans        int `json:"active_loans" bun:"active_loans"`
	OverdueLoans       int `json:"overdue_loans" bun:"overdue_loans"`
	ActiveReservations int `json:"active_reservations" bun:"active_reservations"`
	Users              int `json:"users" bun:"users"`
	ActiveUsers        int `json:"active_users" bun:"active_users"`
}

type Service struct {
	db    *bun.DB
	clock clock.Clock
}

func NewService(db *bun.DB, clk clock.Clock) *Service {
	return &Service{db: db, clock: clk}
}

// RetrieveStats gathers every count in a single query. Overdue is judged
// against the service clock.
func (svc *Service) RetrieveStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := svc.db.NewSelect().
		ColumnExpr("(SELECT COUNT(*) FROM books) AS books").
		ColumnExpr("(SELECT COUNT(*) FROM authors) AS authors").
		ColumnExpr("(SELECT COALESCE(SUM(total_copies), 0) FROM books) AS total_copies").
		ColumnExpr("(SELECT COALESCE(SUM(available_copies), 0) FROM books) AS available_copies").
		ColumnExpr("(SELECT COUNT(*) FROM loans WHERE status = ?) AS active_loans", models.LoanStatusActive).
		ColumnExpr("(SELECT COUNT(*) FROM loans WHERE status = ? AND due_at < ?) AS overdue_loans", models.LoanStatusActive, svc.clock.Now()).
		ColumnExpr("(SELECT COUNT(*) FROM reservations WHERE status = ?) AS active_reservations", models.ReservationStatusActive).
		ColumnExpr("(SELECT COUNT(*) FROM users) AS users").
		ColumnExpr("(SELECT COUNT(*) FROM users WHERE is_active = ?) AS active_users", true).
		Scan(ctx, stats)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return stats, nil
}

// ReportOptions bounds a report by loan creation time. From is inclusive,
// To is exclusive. Either may be nil.
type ReportOptions struct {
	From *time.Time
	To   *time.Time
}

type PopularBook struct {
	BookID int    `json:"book_id" bun:"book_id"`
	Title  string `json:"title" bun:"title"`
	Loans  int    `json:"loans" bun:"loans"`
}

type Report struct {
	From            *time.Time `json:"from" bun:"-"`
	To              *time.Time `json:"to" bun:"-"`
	Loans           int        `json:"loans" bun:"loans"`
	ActiveBorrowers int        `json:"active_borrowers" bun:"active_borrowers"`
	Returned        int        `json:"returned" bun:"returned"`
	ReturnedOnTime  int        `json:"returned_on_time" bun:"returned_on_time"`
	// OnTimeRate is the percentage of returned loans that came back by their
	// due date, rounded to two decimals. Zero when nothing was returned.
	OnTimeRate   float64        `json:"on_time_rate" bun:"-"`
	PopularBooks []*PopularBook `json:"popular_books" bun:"-"`
}

const popularBooksLimit = 10

func (opts ReportOptions) apply(q *bun.SelectQuery) *bun.SelectQuery {
	if opts.From != nil {
		q = q.Where("l.created_at >= ?", opts.From.UTC())
	}
	if opts.To != nil {
		q = q.Where("l.created_at < ?", opts.To.UTC())
	}
	return q
}

// RetrieveReport summarizes the loans made inside the window: how many, how
// many borrowers still hold one, the on-time return rate and the most
// borrowed books.
func (svc *Service) RetrieveReport(ctx context.Context, opts ReportOptions) (*Report, error) {
	report := &Report{
		From:         opts.From,
		To:           opts.To,
		PopularBooks: []*PopularBook{},
	}

	q := svc.db.NewSelect().
		TableExpr("loans AS l").
		ColumnExpr("COUNT(*) AS loans").
		ColumnExpr("COUNT(DISTINCT CASE WHEN l.status = ? THEN l.user_id END) AS active_borrowers", models.LoanStatusActive).
		ColumnExpr("COALESCE(SUM(CASE WHEN l.status = ? THEN 1 ELSE 0 END), 0) AS returned", models.LoanStatusReturned).
		ColumnExpr("COALESCE(SUM(CASE WHEN l.status = ? AND l.returned_at <= l.due_at THEN 1 ELSE 0 END), 0) AS returned_on_time", models.LoanStatusReturned)
	if err := opts.apply(q).Scan(ctx, report); err != nil {
		return nil, errors.WithStack(err)
	}

	if report.Returned > 0 {
		rate := float64(report.ReturnedOnTime) / float64(report.Returned) * 100
		report.OnTimeRate = math.Round(rate*100) / 100
	}

	q = svc.db.NewSelect().
		TableExpr("loans AS l").
		Join("JOIN books AS b ON b.id = l.book_id").
		ColumnExpr("l.book_id AS book_id").
		ColumnExpr("b.title AS title").
		ColumnExpr("COUNT(*) AS loans").
		GroupExpr("l.book_id, b.title").
		OrderExpr("loans DESC, b.title ASC").
		Limit(popularBooksLimit)
	if err := opts.apply(q).Scan(ctx, &report.PopularBooks); err != nil {
		return nil, errors.WithStack(err)
	}

	return report, nil
}
