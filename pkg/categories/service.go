package categories

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/shelfwise/circulation/pkg/clock"
	"github.com/shelfwise/circulation/pkg/database"
	"github.com/shelfwise/circulation/pkg/errcodes"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/uptrace/bun"
)

type RetrieveCategoryOptions struct {
	ID   *int
	Name *string
}

type Service struct {
	db    *bun.DB
	clock clock.Clock
}

func NewService(db *bun.DB, clk clock.Clock) *Service {
	return &Service{db, clk}
}

func (svc *Service) CreateCategory(ctx context.Context, category *models.Category) error {
	now := svc.clock.Now()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = category.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(category).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errcodes.Conflict("A category with that name already exists.")
		}
		return errors.WithStack(err)
	}
	return nil
}

func (svc *Service) RetrieveCategory(ctx context.Context, opts RetrieveCategoryOptions) (*models.Category, error) {
	category := &models.Category{}

	q := svc.db.NewSelect().Model(category)

	if opts.ID != nil {
		q = q.Where("c.id = ?", *opts.ID)
	}
	if opts.Name != nil {
		q = q.Where("c.name = ? COLLATE NOCASE", *opts.Name)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Category")
		}
		return nil, errors.WithStack(err)
	}

	return category, nil
}

// ListCategories returns every category by name. There are few enough that
// it doesn't paginate.
func (svc *Service) ListCategories(ctx context.Context) ([]*models.Category, error) {
	categories := []*models.Category{}

	err := svc.db.
		NewSelect().
		Model(&categories).
		ColumnExpr("c.*").
		ColumnExpr("(SELECT COUNT(*) FROM books AS b WHERE b.category_id = c.id) AS book_count").
		Order("c.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return categories, nil
}

// DeleteCategory leaves the category's books uncategorized.
func (svc *Service) DeleteCategory(ctx context.Context, categoryID int) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model((*models.Book)(nil)).
			Set("category_id = NULL").
			Set("updated_at = ?", svc.clock.Now()).
			Where("category_id = ?", categoryID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		res, err := tx.NewDelete().
			Model((*models.Category)(nil)).
			Where("id = ?", categoryID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.WithStack(err)
		}
		if n == 0 {
			return errcodes.NotFound("Category")
		}
		return nil
	})
}
