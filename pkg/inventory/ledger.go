// Package inventory keeps each book's available_copies consistent with its
// active loans and reservations. The Ledger is the only code that writes the
// column.
package inventory

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shelfwise/circulation/pkg/clock"
	"github.com/shelfwise/circulation/pkg/errcodes"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/uptrace/bun"
)

type Availability struct {
	BookID             int `json:"book_id"`
	Available          int `json:"available"`
	Total              int `json:"total"`
	ActiveLoans        int `json:"active_loans"`
	ActiveReservations int `json:"active_reservations"`
}

type ReconcileOptions struct {
	DryRun bool
}

type Drift struct {
	BookID  int    `json:"book_id"`
	Title   string `json:"title"`
	Stored  int    `json:"stored"`
	Derived int    `json:"derived"`
}

type ReconcileReport struct {
	DryRun    bool     `json:"dry_run"`
	Checked   int      `json:"checked"`
	Corrected int      `json:"corrected"`
	Drifts    []*Drift `json:"drifts"`
}

type Ledger struct {
	db    *bun.DB
	clock clock.Clock
}

func NewLedger(db *bun.DB, clk clock.Clock) *Ledger {
	return &Ledger{db: db, clock: clk}
}

// Derive is the availability rule: copies not out on loan or held by a
// reservation, never below zero and never above the total.
func Derive(total, activeLoans, activeReservations int) int {
	return min(total, max(0, total-activeLoans-activeReservations))
}

// bookCounts is a book row with its active loan and reservation counts.
type bookCounts struct {
	ID                 int    `bun:"id"`
	Title              string `bun:"title"`
	TotalCopies        int    `bun:"total_copies"`
	AvailableCopies    int    `bun:"available_copies"`
	ActiveLoans        int    `bun:"active_loans"`
	ActiveReservations int    `bun:"active_reservations"`
}

func (bc *bookCounts) derived() int {
	return Derive(bc.TotalCopies, bc.ActiveLoans, bc.ActiveReservations)
}

func selectBookCounts(db bun.IDB) *bun.SelectQuery {
	return db.NewSelect().
		Model((*models.Book)(nil)).
		Column("b.id", "b.title", "b.total_copies", "b.available_copies").
		ColumnExpr("(SELECT COUNT(*) FROM loans AS l WHERE l.book_id = b.id AND l.status = ?) AS active_loans", models.LoanStatusActive).
		ColumnExpr("(SELECT COUNT(*) FROM reservations AS rv WHERE rv.book_id = b.id AND rv.status = ?) AS active_reservations", models.ReservationStatusActive)
}

func loadBookCounts(ctx context.Context, db bun.IDB, bookID int) (*bookCounts, error) {
	bc := &bookCounts{}
	err := selectBookCounts(db).Where("b.id = ?", bookID).Scan(ctx, bc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}
	return bc, nil
}

// Recompute derives the book's availability from its active loans and
// reservations and stores it. Callers pass their transaction so the count
// sees their own writes; the only errors are storage faults and a missing
// book.
func (l *Ledger) Recompute(ctx context.Context, db bun.IDB, bookID int) (int, error) {
	bc, err := loadBookCounts(ctx, db, bookID)
	if err != nil {
		return 0, err
	}

	available := bc.derived()
	if available == bc.AvailableCopies {
		return available, nil
	}

	_, err = db.NewUpdate().
		Model((*models.Book)(nil)).
		Set("available_copies = ?", available).
		Set("updated_at = ?", l.clock.Now()).
		Where("id = ?", bookID).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return available, nil
}

// SetTotal changes the book's total copies and rederives availability in
// the same statement, so the row never violates available <= total.
func (l *Ledger) SetTotal(ctx context.Context, db bun.IDB, bookID, total int) (int, error) {
	bc, err := loadBookCounts(ctx, db, bookID)
	if err != nil {
		return 0, err
	}

	available := Derive(total, bc.ActiveLoans, bc.ActiveReservations)
	_, err = db.NewUpdate().
		Model((*models.Book)(nil)).
		Set("total_copies = ?", total).
		Set("available_copies = ?", available).
		Set("updated_at = ?", l.clock.Now()).
		Where("id = ?", bookID).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return available, nil
}

func (l *Ledger) Availability(ctx context.Context, bookID int) (*Availability, error) {
	bc, err := loadBookCounts(ctx, l.db, bookID)
	if err != nil {
		return nil, err
	}

	return &Availability{
		BookID:             bc.ID,
		Available:          bc.AvailableCopies,
		Total:              bc.TotalCopies,
		ActiveLoans:        bc.ActiveLoans,
		ActiveReservations: bc.ActiveReservations,
	}, nil
}

// Reconcile compares every book's stored availability with the derived one
// and, unless it's a dry run, fixes the ones that drifted.
func (l *Ledger) Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileReport, error) {
	log := logger.FromContext(ctx)
	report := &ReconcileReport{DryRun: opts.DryRun, Drifts: []*Drift{}}

	err := l.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		rows := []*bookCounts{}
		if err := selectBookCounts(tx).Order("b.id ASC").Scan(ctx, &rows); err != nil {
			return errors.WithStack(err)
		}

		for _, bc := range rows {
			report.Checked++
			if bc.derived() == bc.AvailableCopies {
				continue
			}
			report.Drifts = append(report.Drifts, &Drift{
				BookID:  bc.ID,
				Title:   bc.Title,
				Stored:  bc.AvailableCopies,
				Derived: bc.derived(),
			})
			if opts.DryRun {
				continue
			}
			if _, err := l.Recompute(ctx, tx, bc.ID); err != nil {
				return err
			}
			report.Corrected++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("availability reconciled", logger.Data{
		"dry_run":   report.DryRun,
		"checked":   report.Checked,
		"drifted":   len(report.Drifts),
		"corrected": report.Corrected,
	})

	return report, nil
}
