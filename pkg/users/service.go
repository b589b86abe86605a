package users

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/shelfwise/circulation/pkg/auth"
	"github.com/shelfwise/circulation/pkg/clock"
	"github.com/shelfwise/circulation/pkg/database"
	"github.com/shelfwise/circulation/pkg/errcodes"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/shelfwise/circulation/pkg/policy"
	"github.com/uptrace/bun"
)

// Service handles borrower accounts.
type Service struct {
	db     *bun.DB
	clock  clock.Clock
	policy policy.Policy
}

func NewService(db *bun.DB, clk clock.Clock, p policy.Policy) *Service {
	return &Service{db: db, clock: clk, policy: p}
}

type CreateUserOptions struct {
	Username string
	Email    *string
	Password string
	RoleID   int
	// RoleName is used when RoleID is zero.
	RoleName string
}

// Summary is a borrower's standing against the lending limits.
type Summary struct {
	UserID                int  `json:"user_id"`
	IsActive              bool `json:"is_active"`
	ActiveLoans           int  `json:"active_loans"`
	OverdueLoans          int  `json:"overdue_loans"`
	ActiveReservations    int  `json:"active_reservations"`
	LoansRemaining        int  `json:"loans_remaining"`
	ReservationsRemaining int  `json:"reservations_remaining"`
	CanBorrow             bool `json:"can_borrow"`
	CanReserve            bool `json:"can_reserve"`
}

func (s *Service) Create(ctx context.Context, opts CreateUserOptions) (*models.User, error) {
	exists, err := s.db.NewSelect().
		Model((*models.User)(nil)).
		Where("username = ? COLLATE NOCASE", opts.Username).
		Exists(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if exists {
		return nil, errcodes.ValidationError("Username already exists")
	}

	if opts.Email != nil && *opts.Email != "" {
		exists, err = s.db.NewSelect().
			Model((*models.User)(nil)).
			Where("email = ? COLLATE NOCASE", *opts.Email).
			Exists(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if exists {
			return nil, errcodes.ValidationError("Email already exists")
		}
	}

	role := &models.Role{}
	q := s.db.NewSelect().Model(role)
	if opts.RoleID != 0 {
		q = q.Where("r.id = ?", opts.RoleID)
	} else {
		q = q.Where("r.name = ?", opts.RoleName)
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.ValidationError("Invalid role")
		}
		return nil, errors.WithStack(err)
	}

	hashedPassword, err := auth.HashPassword(opts.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &models.User{
		CreatedAt:    now,
		UpdatedAt:    now,
		Username:     opts.Username,
		Email:        opts.Email,
		PasswordHash: hashedPassword,
		RoleID:       role.ID,
		IsActive:     true,
	}

	_, err = s.db.NewInsert().Model(user).Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errcodes.ValidationError("Username already exists")
		}
		return nil, errors.WithStack(err)
	}

	return s.Retrieve(ctx, user.ID)
}

// RegisterMember creates a self-registered borrower with the member role.
func (s *Service) RegisterMember(ctx context.Context, username string, email *string, password string) (*models.User, error) {
	return s.Create(ctx, CreateUserOptions{
		Username: username,
		Email:    email,
		Password: password,
		RoleName: models.RoleMember,
	})
}

func (s *Service) Retrieve(ctx context.Context, id int) (*models.User, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Relation("Role").
		Relation("Role.Permissions").
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("User")
		}
		return nil, errors.WithStack(err)
	}
	return user, nil
}

type ListOptions struct {
	Limit    int
	Offset   int
	IsActive *bool
}

func (s *Service) List(ctx context.Context, opts ListOptions) ([]*models.User, int, error) {
	users := []*models.User{}

	query := s.db.NewSelect().
		Model(&users).
		Relation("Role").
		Order("u.id ASC")

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	if opts.IsActive != nil {
		query = query.Where("u.is_active = ?", *opts.IsActive)
	}

	total, err := query.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return users, total, nil
}

type UpdateOptions struct {
	Columns []string
}

func (s *Service) Update(ctx context.Context, user *models.User, opts UpdateOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	user.UpdatedAt = s.clock.Now()
	opts.Columns = append(opts.Columns, "updated_at")
	_, err := s.db.NewUpdate().
		Model(user).
		Column(opts.Columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errcodes.ValidationError("Username already exists")
		}
		return errors.WithStack(err)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, userID int, newPassword string) error {
	hashedPassword, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	_, err = s.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("password_hash = ?", hashedPassword).
		Set("updated_at = ?", s.clock.Now()).
		Where("id = ?", userID).
		Exec(ctx)
	return errors.WithStack(err)
}

func (s *Service) VerifyPassword(ctx context.Context, userID int, password string) (bool, error) {
	user := &models.User{}
	err := s.db.NewSelect().
		Model(user).
		Column("password_hash").
		Where("id = ?", userID).
		Scan(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}

	return auth.CheckPassword(password, user.PasswordHash), nil
}

// Deactivate stops the borrower from logging in or borrowing. Their open
// loans stay open until returned.
func (s *Service) Deactivate(ctx context.Context, userID int) error {
	res, err := s.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", s.clock.Now()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.WithStack(err)
	} else if n == 0 {
		return errcodes.NotFound("User")
	}
	return nil
}

func (s *Service) Summary(ctx context.Context, userID int) (*Summary, error) {
	now := s.clock.Now()
	user := &models.User{}
	err := s.db.NewSelect().Model(user).Where("u.id = ?", userID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("User")
		}
		return nil, errors.WithStack(err)
	}

	summary := &Summary{UserID: user.ID, IsActive: user.IsActive}

	summary.ActiveLoans, err = s.db.NewSelect().
		Model((*models.Loan)(nil)).
		Where("l.user_id = ?", userID).
		Where("l.status = ?", models.LoanStatusActive).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	summary.OverdueLoans, err = s.db.NewSelect().
		Model((*models.Loan)(nil)).
		Where("l.user_id = ?", userID).
		Where("l.status = ?", models.LoanStatusActive).
		Where("l.due_at < ?", now).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	summary.ActiveReservations, err = s.db.NewSelect().
		Model((*models.Reservation)(nil)).
		Where("rv.user_id = ?", userID).
		Where("rv.status = ?", models.ReservationStatusActive).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	summary.LoansRemaining = max(0, s.policy.MaxActiveLoans-summary.ActiveLoans)
	summary.ReservationsRemaining = max(0, s.policy.MaxActiveReservations-summary.ActiveReservations)
	summary.CanBorrow = user.IsActive && summary.LoansRemaining > 0
	summary.CanReserve = user.IsActive && summary.ReservationsRemaining > 0

	return summary, nil
}

func (s *Service) CountUsers(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}
