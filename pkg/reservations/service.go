package reservations

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

type CreateReservationOptions struct {
	UserID int
	BookID int
}

type RetrieveReservationOptions struct {
	ID *int
}

type ListReservationsOptions struct {
	Limit  *int
	Offset *int
	UserID *int
	BookID *int
	Status *string

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

func (svc *Service) Now() time.Time {
	return svc.clock.Now()
}

// CreateReservation sets a copy aside for the borrower until the hold
// expires.
func (svc *Service) CreateReservation(ctx context.Context, opts CreateReservationOptions) (*models.Reservation, error) {
	now := svc.clock.Now()
	reservation := &models.Reservation{
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    opts.UserID,
		BookID:    opts.BookID,
		ExpiresAt: svc.policy.HoldExpiresAt(now),
		Status:    models.ReservationStatusActive,
	}
	var available int

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		borrower := &models.User{}
		err := tx.NewSelect().Model(borrower).Where("u.id = ?", opts.UserID).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("User")
			}
			return errors.WithStack(err)
		}
		book := &models.Book{}
		err = tx.NewSelect().Model(book).Where("b.id = ?", opts.BookID).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Book")
			}
			return errors.WithStack(err)
		}

		activeReservations, err := tx.NewSelect().
			Model((*models.Reservation)(nil)).
			Where("rv.user_id = ?", borrower.ID).
			Where("rv.status = ?", models.ReservationStatusActive).
			Count(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		hasReservationForBook, err := tx.NewSelect().
			Model((*models.Reservation)(nil)).
			Where("rv.user_id = ?", borrower.ID).
			Where("rv.book_id = ?", book.ID).
			Where("rv.status = ?", models.ReservationStatusActive).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		v := svc.policy.DecideReservation(policy.ReservationRequest{
			BorrowerActive:              borrower.IsActive,
			ActiveReservations:          activeReservations,
			HasActiveReservationForBook: hasReservationForBook,
			AvailableCopies:             book.AvailableCopies,
		})
		if v != nil {
			return v.Err()
		}

		if err := insertReservation(ctx, tx, reservation); err != nil {
			return err
		}

		available, err = svc.ledger.Recompute(ctx, tx, book.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("reservation created", logger.Data{
		"reservation_id": reservation.ID,
		"user_id":        reservation.UserID,
		"book_id":        reservation.BookID,
		"expires_at":     reservation.ExpiresAt,
		"available":      available,
	})

	return reservation, nil
}

// insertReservation relies on the partial unique index over active
// reservations to catch a duplicate that slipped past the policy check.
func insertReservation(ctx context.Context, db bun.IDB, reservation *models.Reservation) error {
	_, err := db.NewInsert().
		Model(reservation).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errcodes.DuplicateActive(policy.ReasonDuplicateReservation, "Borrower already has an active reservation for this book.")
		}
		return errors.WithStack(err)
	}
	return nil
}

// CancelReservation releases the held copy. Only the borrower who placed it
// or an administrator may cancel.
func (svc *Service) CancelReservation(ctx context.Context, reservationID int, actor policy.Actor) (*models.Reservation, error) {
	now := svc.clock.Now()
	reservation := &models.Reservation{}
	var available int

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(reservation).Where("rv.id = ?", reservationID).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Reservation")
			}
			return errors.WithStack(err)
		}
		if !policy.CanManage(actor, reservation.UserID) {
			return errcodes.Forbidden("Cancelling another borrower's reservation")
		}
		if !reservation.IsActive() {
			return errcodes.InvalidState("Only active reservations can be cancelled.")
		}

		reservation.Status = models.ReservationStatusCancelled
		reservation.UpdatedAt = now
		res, err := tx.NewUpdate().
			Model(reservation).
			Column("status", "updated_at").
			WherePK().
			Where("status = ?", models.ReservationStatusActive).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.WithStack(err)
		} else if n == 0 {
			return errcodes.InvalidState("Only active reservations can be cancelled.")
		}

		available, err = svc.ledger.Recompute(ctx, tx, reservation.BookID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("reservation cancelled", logger.Data{
		"reservation_id": reservation.ID,
		"book_id":        reservation.BookID,
		"cancelled_by":   actor.ID,
		"available":      available,
	})

	return reservation, nil
}

// ExpireReservations moves every active reservation whose hold ended at or
// before now to expired and returns how many it changed. Running it again
// with the same time changes nothing.
func (svc *Service) ExpireReservations(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	updatedAt := svc.clock.Now()
	expired := 0
	books := map[int]struct{}{}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		due := []*models.Reservation{}
		err := tx.NewSelect().
			Model(&due).
			Where("rv.status = ?", models.ReservationStatusActive).
			Where("rv.expires_at <= ?", now).
			Order("rv.expires_at ASC", "rv.id ASC").
			Scan(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		for _, reservation := range due {
			reservation.Status = models.ReservationStatusExpired
			reservation.UpdatedAt = updatedAt
			res, err := tx.NewUpdate().
				Model(reservation).
				Column("status", "updated_at").
				WherePK().
				Where("status = ?", models.ReservationStatusActive).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return errors.WithStack(err)
			}
			if n == 0 {
				continue
			}
			expired++
			books[reservation.BookID] = struct{}{}
		}

		for bookID := range books {
			if _, err := svc.ledger.Recompute(ctx, tx, bookID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.FromContext(ctx).Info("reservations expired", logger.Data{
		"at":      now,
		"expired": expired,
		"books":   len(books),
	})

	return expired, nil
}

func (svc *Service) RetrieveReservation(ctx context.Context, opts RetrieveReservationOptions) (*models.Reservation, error) {
	reservation := &models.Reservation{}

	q := svc.db.
		NewSelect().
		Model(reservation).
		Relation("Book").
		Relation("Book.Author").
		Relation("User")

	if opts.ID != nil {
		q = q.Where("rv.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Reservation")
		}
		return nil, errors.WithStack(err)
	}

	return reservation, nil
}

func (svc *Service) ListReservations(ctx context.Context, opts ListReservationsOptions) ([]*models.Reservation, error) {
	r, _, err := svc.listReservationsWithTotal(ctx, opts)
	return r, errors.WithStack(err)
}

func (svc *Service) ListReservationsWithTotal(ctx context.Context, opts ListReservationsOptions) ([]*models.Reservation, int, error) {
	opts.includeTotal = true
	return svc.listReservationsWithTotal(ctx, opts)
}

func (svc *Service) listReservationsWithTotal(ctx context.Context, opts ListReservationsOptions) ([]*models.Reservation, int, error) {
	reservations := []*models.Reservation{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&reservations).
		Relation("Book").
		Relation("User").
		Order("rv.created_at DESC", "rv.id DESC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.UserID != nil {
		q = q.Where("rv.user_id = ?", *opts.UserID)
	}
	if opts.BookID != nil {
		q = q.Where("rv.book_id = ?", *opts.BookID)
	}
	if opts.Status != nil {
		q = q.Where("rv.status = ?", *opts.Status)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return reservations, total, nil
}
