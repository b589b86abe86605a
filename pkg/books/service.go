package books

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shelfwise/circulation/pkg/clock"
	"github.com/shelfwise/circulation/pkg/errcodes"
	"github.com/shelfwise/circulation/pkg/inventory"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/uptrace/bun"
)

type RetrieveBookOptions struct {
	ID *int
}

type ListBooksOptions struct {
	Limit         *int
	Offset        *int
	AuthorID      *int
	CategoryID    *int
	Genre         *string
	Search        *string
	AvailableOnly bool

	includeTotal bool
}

type UpdateBookOptions struct {
	Columns []string
	// TotalCopies is applied through the ledger, which rederives
	// availability with it.
	TotalCopies *int
}

type Service struct {
	db     *bun.DB
	ledger *inventory.Ledger
	clock  clock.Clock
}

func NewService(db *bun.DB, ledger *inventory.Ledger, clk clock.Clock) *Service {
	return &Service{db, ledger, clk}
}

// CreateBook inserts the book and lets the ledger fill in its availability.
// Whatever AvailableCopies the caller set is ignored.
func (svc *Service) CreateBook(ctx context.Context, book *models.Book) error {
	now := svc.clock.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = book.CreatedAt
	book.AvailableCopies = 0

	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := checkReferences(ctx, tx, book); err != nil {
			return err
		}

		_, err := tx.
			NewInsert().
			Model(book).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		book.AvailableCopies, err = svc.ledger.Recompute(ctx, tx, book.ID)
		return err
	})
}

func (svc *Service) RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.
		NewSelect().
		Model(book).
		Relation("Author").
		Relation("Category")

	if opts.ID != nil {
		q = q.Where("b.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	return book, nil
}

func (svc *Service) ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, error) {
	b, _, err := svc.listBooksWithTotal(ctx, opts)
	return b, errors.WithStack(err)
}

func (svc *Service) ListBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	opts.includeTotal = true
	return svc.listBooksWithTotal(ctx, opts)
}

func (svc *Service) listBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	books := []*models.Book{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&books).
		Relation("Author").
		Relation("Category").
		Order("b.title ASC", "b.id ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.AuthorID != nil {
		q = q.Where("b.author_id = ?", *opts.AuthorID)
	}
	if opts.CategoryID != nil {
		q = q.Where("b.category_id = ?", *opts.CategoryID)
	}
	if opts.Genre != nil {
		q = q.Where("b.genre = ?", *opts.Genre)
	}
	if opts.Search != nil {
		if search := strings.TrimSpace(*opts.Search); search != "" {
			q = q.Where("b.title LIKE ? ESCAPE '\\'", "%"+escapeLike(search)+"%")
		}
	}
	if opts.AvailableOnly {
		q = q.Where("b.available_copies > 0")
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return books, total, nil
}

// UpdateBook writes the listed columns. available_copies can't be one of
// them.
func (svc *Service) UpdateBook(ctx context.Context, book *models.Book, opts UpdateBookOptions) error {
	for _, col := range opts.Columns {
		if col == "available_copies" || col == "total_copies" {
			return errors.Errorf("%s can't be updated directly", col)
		}
	}
	if len(opts.Columns) == 0 && opts.TotalCopies == nil {
		return nil
	}

	now := svc.clock.Now()
	book.UpdatedAt = now

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if len(opts.Columns) > 0 {
			if err := checkReferences(ctx, tx, book); err != nil {
				return err
			}
			columns := append(opts.Columns, "updated_at")
			_, err := tx.
				NewUpdate().
				Model(book).
				Column(columns...).
				WherePK().
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		if opts.TotalCopies != nil {
			available, err := svc.ledger.SetTotal(ctx, tx, book.ID, *opts.TotalCopies)
			if err != nil {
				return err
			}
			book.TotalCopies = *opts.TotalCopies
			book.AvailableCopies = available
		}
		return nil
	})
	if err != nil {
		return err
	}

	if opts.TotalCopies != nil {
		logger.FromContext(ctx).Info("book stock changed", logger.Data{
			"book_id":   book.ID,
			"total":     book.TotalCopies,
			"available": book.AvailableCopies,
		})
	}

	return nil
}

// DeleteBook refuses while the book is out on loan or held by a
// reservation. Its closed loans and reservations go with it.
func (svc *Service) DeleteBook(ctx context.Context, bookID int) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.Book)(nil)).Where("b.id = ?", bookID).Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return errcodes.NotFound("Book")
		}

		activeLoans, err := tx.NewSelect().
			Model((*models.Loan)(nil)).
			Where("l.book_id = ?", bookID).
			Where("l.status = ?", models.LoanStatusActive).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		activeReservations, err := tx.NewSelect().
			Model((*models.Reservation)(nil)).
			Where("rv.book_id = ?", bookID).
			Where("rv.status = ?", models.ReservationStatusActive).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if activeLoans || activeReservations {
			return errcodes.Conflict("Book has active loans or reservations.")
		}

		if _, err := tx.NewDelete().Model((*models.Loan)(nil)).Where("book_id = ?", bookID).Exec(ctx); err != nil {
			return errors.WithStack(err)
		}
		if _, err := tx.NewDelete().Model((*models.Reservation)(nil)).Where("book_id = ?", bookID).Exec(ctx); err != nil {
			return errors.WithStack(err)
		}
		_, err = tx.NewDelete().Model((*models.Book)(nil)).Where("id = ?", bookID).Exec(ctx)
		return errors.WithStack(err)
	})
}

func checkReferences(ctx context.Context, db bun.IDB, book *models.Book) error {
	exists, err := db.NewSelect().Model((*models.Author)(nil)).Where("a.id = ?", book.AuthorID).Exists(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if !exists {
		return errcodes.NotFound("Author")
	}

	if book.CategoryID == nil {
		return nil
	}
	exists, err = db.NewSelect().Model((*models.Category)(nil)).Where("c.id = ?", *book.CategoryID).Exists(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if !exists {
		return errcodes.NotFound("Category")
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
