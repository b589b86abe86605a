package loans

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shelfwise/circulation/pkg/clock"
	"github.com/shelfwise/circulation/pkg/database"
	"github.com/shelfwise/circulation/pkg/errcodes"
	"github.com/shelfwise/circulation/pkg/inventory"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/shelfwise/circulation/pkg/policy"
	"github.com/uptrace/bun"
)

type CreateLoanOptions struct {
	UserID int
	BookID int
}

type RetrieveLoanOptions struct {
	ID *int
}

type ListLoansOptions struct {
	Limit  *int
	Offset *int
	UserID *int
	BookID *int
	// Status is active, returned or overdue. Overdue matches active loans
	// past their due date.
	Status *string
	// DueBefore matches loans due strictly before the time.
	DueBefore *time.Time

	includeTotal bool
}

type Service struct {
	db     *bun.DB
	ledger *inventory.Ledger
	policy policy.Policy
	clock  clock.Clock
}

func NewService(db *bun.DB, ledger *inventory.Ledger, p policy.Policy, clk clock.Clock) *Service {
	return &Service{db: db, ledger: ledger, policy: p, clock: clk}
}

func (svc *Service) Policy() policy.Policy {
	return svc.policy
}

func (svc *Service) Now() time.Time {
	return svc.clock.Now()
}

// CreateLoan checks the borrower against the lending policy and, if allowed,
// lends them a copy. A borrower with an active reservation for the book
// borrows the copy it set aside, which fulfils the reservation.
func (svc *Service) CreateLoan(ctx context.Context, opts CreateLoanOptions) (*models.Loan, error) {
	now := svc.clock.Now()
	loan := &models.Loan{
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    opts.UserID,
		BookID:    opts.BookID,
		DueAt:     svc.policy.DueAt(now),
		Status:    models.LoanStatusActive,
	}
	var fulfilled *models.Reservation
	var available int

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		borrower, err := retrieveBorrower(ctx, tx, opts.UserID)
		if err != nil {
			return err
		}
		book, err := retrieveBook(ctx, tx, opts.BookID)
		if err != nil {
			return err
		}

		swept, err := expireLapsedHolds(ctx, tx, book.ID, now)
		if err != nil {
			return err
		}
		if swept > 0 {
			book.AvailableCopies, err = svc.ledger.Recompute(ctx, tx, book.ID)
			if err != nil {
				return err
			}
		}

		activeLoans, err := tx.NewSelect().
			Model((*models.Loan)(nil)).
			Where("l.user_id = ?", borrower.ID).
			Where("l.status = ?", models.LoanStatusActive).
			Count(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		hasLoanForBook, err := tx.NewSelect().
			Model((*models.Loan)(nil)).
			Where("l.user_id = ?", borrower.ID).
			Where("l.book_id = ?", book.ID).
			Where("l.status = ?", models.LoanStatusActive).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		held := &models.Reservation{}
		err = tx.NewSelect().
			Model(held).
			Where("rv.user_id = ?", borrower.ID).
			Where("rv.book_id = ?", book.ID).
			Where("rv.status = ?", models.ReservationStatusActive).
			Where("rv.expires_at > ?", now).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return errors.WithStack(err)
		}
		if err == nil {
			fulfilled = held
		}

		v := svc.policy.DecideLoan(policy.LoanRequest{
			BorrowerActive:       borrower.IsActive,
			ActiveLoans:          activeLoans,
			HasActiveLoanForBook: hasLoanForBook,
			HoldsReservation:     fulfilled != nil,
			AvailableCopies:      book.AvailableCopies,
		})
		if v != nil {
			return v.Err()
		}

		if fulfilled != nil {
			fulfilled.Status = models.ReservationStatusFulfilled
			fulfilled.UpdatedAt = now
			_, err := tx.NewUpdate().
				Model(fulfilled).
				Column("status", "updated_at").
				WherePK().
				Where("status = ?", models.ReservationStatusActive).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		if err := insertLoan(ctx, tx, loan); err != nil {
			return err
		}

		available, err = svc.ledger.Recompute(ctx, tx, book.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	data := logger.Data{
		"loan_id":   loan.ID,
		"user_id":   loan.UserID,
		"book_id":   loan.BookID,
		"due_at":    loan.DueAt,
		"available": available,
	}
	if fulfilled != nil {
		data["reservation_id"] = fulfilled.ID
	}
	logger.FromContext(ctx).Info("loan created", data)

	return loan, nil
}

// ReturnLoan closes an active loan. The update only matches active loans, so
// of two concurrent returns only one gets through.
func (svc *Service) ReturnLoan(ctx context.Context, loanID int) (*models.Loan, error) {
	now := svc.clock.Now()
	loan := &models.Loan{}
	var available int

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := scanLoan(ctx, tx, loan, loanID); err != nil {
			return err
		}
		if !loan.IsActive() {
			return errcodes.AlreadyReturned()
		}

		loan.Status = models.LoanStatusReturned
		loan.ReturnedAt = &now
		loan.UpdatedAt = now
		res, err := tx.NewUpdate().
			Model(loan).
			Column("status", "returned_at", "updated_at").
			WherePK().
			Where("status = ?", models.LoanStatusActive).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.WithStack(err)
		} else if n == 0 {
			return errcodes.AlreadyReturned()
		}

		available, err = svc.ledger.Recompute(ctx, tx, loan.BookID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("loan returned", logger.Data{
		"loan_id":      loan.ID,
		"book_id":      loan.BookID,
		"days_overdue": policy.DaysOverdue(loan.DueAt, now),
		"available":    available,
	})

	return loan, nil
}

// RenewLoan pushes the due date out by a full loan period from now. It
// doesn't touch availability.
func (svc *Service) RenewLoan(ctx context.Context, loanID int) (*models.Loan, error) {
	now := svc.clock.Now()
	loan := &models.Loan{}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := scanLoan(ctx, tx, loan, loanID); err != nil {
			return err
		}

		v := svc.policy.DecideRenewal(policy.RenewalRequest{
			Active:       loan.IsActive(),
			RenewalCount: loan.RenewalCount,
			DueAt:        loan.DueAt,
			Now:          now,
		})
		if v != nil {
			return v.Err()
		}

		previousCount := loan.RenewalCount
		loan.RenewalCount++
		loan.DueAt = svc.policy.DueAt(now)
		loan.UpdatedAt = now
		res, err := tx.NewUpdate().
			Model(loan).
			Column("due_at", "renewal_count", "updated_at").
			WherePK().
			Where("status = ?", models.LoanStatusActive).
			Where("renewal_count = ?", previousCount).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.WithStack(err)
		} else if n == 0 {
			return errcodes.InvalidState("Loan changed while it was being renewed.")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("loan renewed", logger.Data{
		"loan_id":       loan.ID,
		"renewal_count": loan.RenewalCount,
		"due_at":        loan.DueAt,
	})

	return loan, nil
}

func (svc *Service) RetrieveLoan(ctx context.Context, opts RetrieveLoanOptions) (*models.Loan, error) {
	loan := &models.Loan{}

	q := svc.db.
		NewSelect().
		Model(loan).
		Relation("Book").
		Relation("Book.Author").
		Relation("User")

	if opts.ID != nil {
		q = q.Where("l.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Loan")
		}
		return nil, errors.WithStack(err)
	}

	return loan, nil
}

func (svc *Service) ListLoans(ctx context.Context, opts ListLoansOptions) ([]*models.Loan, error) {
	l, _, err := svc.listLoansWithTotal(ctx, opts)
	return l, errors.WithStack(err)
}

func (svc *Service) ListLoansWithTotal(ctx context.Context, opts ListLoansOptions) ([]*models.Loan, int, error) {
	opts.includeTotal = true
	return svc.listLoansWithTotal(ctx, opts)
}

func (svc *Service) listLoansWithTotal(ctx context.Context, opts ListLoansOptions) ([]*models.Loan, int, error) {
	loans := []*models.Loan{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&loans).
		Relation("Book").
		Relation("User").
		Order("l.created_at DESC", "l.id DESC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.UserID != nil {
		q = q.Where("l.user_id = ?", *opts.UserID)
	}
	if opts.BookID != nil {
		q = q.Where("l.book_id = ?", *opts.BookID)
	}
	if opts.DueBefore != nil {
		q = q.Where("l.due_at < ?", *opts.DueBefore)
	}
	if opts.Status != nil {
		switch *opts.Status {
		case models.LoanStatusOverdue:
			q = q.Where("l.status = ?", models.LoanStatusActive).
				Where("l.due_at < ?", svc.clock.Now())
		default:
			q = q.Where("l.status = ?", *opts.Status)
		}
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return loans, total, nil
}

// expireLapsedHolds expires the book's active reservations whose hold has run
// out, so their copies can be lent before the next scheduled sweep.
func expireLapsedHolds(ctx context.Context, db bun.IDB, bookID int, now time.Time) (int64, error) {
	res, err := db.NewUpdate().
		Model((*models.Reservation)(nil)).
		Set("status = ?", models.ReservationStatusExpired).
		Set("updated_at = ?", now).
		Where("book_id = ?", bookID).
		Where("status = ?", models.ReservationStatusActive).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	return n, errors.WithStack(err)
}

// insertLoan relies on the partial unique index over active loans to catch a
// duplicate that slipped past the policy check.
func insertLoan(ctx context.Context, db bun.IDB, loan *models.Loan) error {
	_, err := db.NewInsert().
		Model(loan).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errcodes.PolicyViolation(policy.ReasonDuplicateLoan, "Borrower already has an active loan for this book.")
		}
		return errors.WithStack(err)
	}
	return nil
}

func scanLoan(ctx context.Context, db bun.IDB, loan *models.Loan, id int) error {
	err := db.NewSelect().Model(loan).Where("l.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Loan")
		}
		return errors.WithStack(err)
	}
	return nil
}

func retrieveBorrower(ctx context.Context, db bun.IDB, id int) (*models.User, error) {
	user := &models.User{}
	err := db.NewSelect().Model(user).Where("u.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("User")
		}
		return nil, errors.WithStack(err)
	}
	return user, nil
}

func retrieveBook(ctx context.Context, db bun.IDB, id int) (*models.Book, error) {
	book := &models.Book{}
	err := db.NewSelect().Model(book).Where("b.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}
	return book, nil
}
