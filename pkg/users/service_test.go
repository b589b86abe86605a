package users

import (
	"context"
	"testing"
	"time"

	"github.com/shelfwise/circulation/pkg/clock"
	"github.com/shelfwise/circulation/pkg/errcodes"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/shelfwise/circulation/pkg/policy"
	"github.com/shelfwise/circulation/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

var now = time.Date(2026, 4, 20, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *bun.DB) {
	t.Helper()
	db := testutils.NewTestDB(t)
	return NewService(db, clock.NewMock(now), policy.Default()), db
}

func TestServiceRegisterMember(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t)

	user, err := svc.RegisterMember(ctx, "walkin", nil, "password123")
	require.NoError(t, err)
	require.NotNil(t, user.Role)
	assert.Equal(t, models.RoleMember, user.Role.Name)
	assert.NotEmpty(t, user.Role.Permissions)

	_, err = svc.RegisterMember(ctx, "WALKIN", nil, "password123")
	assert.True(t, errcodes.HasCode(err, "validation_error"))
}

func TestServiceCreate_ByRoleName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newTestService(t)

	user, err := svc.Create(ctx, CreateUserOptions{
		Username: "reader",
		Password: "password123",
		RoleName: models.RoleMember,
	})
	require.NoError(t, err)
	require.NotNil(t, user.Role)
	assert.Equal(t, models.RoleMember, user.Role.Name)
	assert.True(t, user.IsActive)
	assert.Equal(t, policy.RoleMember, user.Actor().Role)

	_, err = svc.Create(ctx, CreateUserOptions{
		Username: "READER",
		Password: "password123",
		RoleName: models.RoleMember,
	})
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, "validation_error"))
}

func TestServiceCreate_UnknownRole(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateUserOptions{
		Username: "nobody",
		Password: "password123",
		RoleID:   999,
	})
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, "validation_error"))
}

func TestServiceDeactivate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, db := newTestService(t)

	member := testutils.CreateMember(t, db)
	require.NoError(t, svc.Deactivate(ctx, member.ID))

	user, err := svc.Retrieve(ctx, member.ID)
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	active := true
	users, total, err := svc.List(ctx, ListOptions{IsActive: &active})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, users)

	err = svc.Deactivate(ctx, 9999)
	assert.True(t, errcodes.HasCode(err, "not_found"))
}

func TestServiceSummary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, db := newTestService(t)

	member := testutils.CreateMember(t, db)
	for i, due := range []time.Time{now.Add(-48 * time.Hour), now.Add(72 * time.Hour)} {
		book := testutils.CreateBook(t, db, "Summary "+string(rune('A'+i)), 1)
		_, err := db.NewInsert().Model(&models.Loan{
			CreatedAt: now,
			UpdatedAt: now,
			UserID:    member.ID,
			BookID:    book.ID,
			DueAt:     due,
			Status:    models.LoanStatusActive,
		}).Exec(ctx)
		require.NoError(t, err)
	}
	book := testutils.CreateBook(t, db, "Held", 2)
	_, err := db.NewInsert().Model(&models.Reservation{
		CreatedAt: now,
		UpdatedAt: now,
		UserID:    member.ID,
		BookID:    book.ID,
		ExpiresAt: now.Add(24 * time.Hour),
		Status:    models.ReservationStatusActive,
	}).Exec(ctx)
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ActiveLoans)
	assert.Equal(t, 1, summary.OverdueLoans)
	assert.Equal(t, 1, summary.ActiveReservations)
	assert.Equal(t, 1, summary.LoansRemaining)
	assert.Equal(t, 2, summary.ReservationsRemaining)
	assert.True(t, summary.CanBorrow)
	assert.True(t, summary.CanReserve)
}

func TestServiceResetPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, db := newTestService(t)

	member := testutils.CreateMember(t, db)
	require.NoError(t, svc.ResetPassword(ctx, member.ID, "a-new-password"))

	valid, err := svc.VerifyPassword(ctx, member.ID, "a-new-password")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = svc.VerifyPassword(ctx, member.ID, testutils.Password)
	require.NoError(t, err)
	assert.False(t, valid)
}
