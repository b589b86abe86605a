// Package roles exposes the seeded roles and their permissions. Roles are
// created by migration; only the admin role manages other borrowers' loans
// and reservations.
package roles

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/shelfwise/circulation/pkg/errcodes"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/uptrace/bun"
)

type RetrieveRoleOptions struct {
	ID   *int
	Name *string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

func (s *Service) RetrieveRole(ctx context.Context, opts RetrieveRoleOptions) (*models.Role, error) {
	role := &models.Role{}

	q := s.db.NewSelect().
		Model(role).
		Relation("Permissions", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("p.resource ASC", "p.operation ASC")
		})

	if opts.ID != nil {
		q = q.Where("r.id = ?", *opts.ID)
	}
	if opts.Name != nil {
		q = q.Where("r.name = ?", *opts.Name)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Role")
		}
		return nil, errors.WithStack(err)
	}

	return role, nil
}

// RoleWithUsers is a role with the number of users holding it.
type RoleWithUsers struct {
	*models.Role
	UserCount int `json:"user_count"`
}

func (s *Service) ListRoles(ctx context.Context) ([]*RoleWithUsers, error) {
	roles := []*models.Role{}

	err := s.db.NewSelect().
		Model(&roles).
		Relation("Permissions", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("p.resource ASC", "p.operation ASC")
		}).
		Order("r.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	counts := []struct {
		RoleID int `bun:"role_id"`
		Count  int `bun:"count"`
	}{}
	err = s.db.NewSelect().
		Model((*models.User)(nil)).
		Column("role_id").
		ColumnExpr("COUNT(*) AS count").
		Group("role_id").
		Scan(ctx, &counts)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	byRole := map[int]int{}
	for _, c := range counts {
		byRole[c.RoleID] = c.Count
	}

	result := make([]*RoleWithUsers, 0, len(roles))
	for _, role := range roles {
		result = append(result, &RoleWithUsers{Role: role, UserCount: byRole[role.ID]})
	}

	return result, nil
}
