// Package testutils sets up databases and fixtures for package tests.
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shelfwise/circulation/pkg/migrations"
	"github.com/shelfwise/circulation/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

// Password is the password every fixture user gets.
const Password = "password123"

var seq atomic.Int64

// NewTestDB returns a migrated in-memory database. It's limited to one
// connection since every connection to :memory: is a separate database.
func NewTestDB(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func CreateUser(t testing.TB, db bun.IDB, roleName string) *models.User {
	t.Helper()
	ctx := context.Background()

	role := &models.Role{}
	err := db.NewSelect().
		Model(role).
		Relation("Permissions").
		Where("r.name = ?", roleName).
		Scan(ctx)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Now().UTC()
	user := &models.User{
		CreatedAt:    now,
		UpdatedAt:    now,
		Username:     fmt.Sprintf("%s%d", roleName, seq.Add(1)),
		PasswordHash: string(hash),
		RoleID:       role.ID,
		IsActive:     true,
		Role:         role,
	}
	_, err = db.NewInsert().Model(user).Returning("*").Exec(ctx)
	require.NoError(t, err)

	return user
}

func CreateMember(t testing.TB, db bun.IDB) *models.User {
	t.Helper()
	return CreateUser(t, db, models.RoleMember)
}

func CreateAdmin(t testing.TB, db bun.IDB) *models.User {
	t.Helper()
	return CreateUser(t, db, models.RoleAdmin)
}

func CreateAuthor(t testing.TB, db bun.IDB, name string) *models.Author {
	t.Helper()

	now := time.Now().UTC()
	author := &models.Author{CreatedAt: now, UpdatedAt: now, Name: name}
	_, err := db.NewInsert().Model(author).Returning("*").Exec(context.Background())
	require.NoError(t, err)

	return author
}

// CreateBook inserts a book with every copy on the shelf.
func CreateBook(t testing.TB, db bun.IDB, title string, totalCopies int) *models.Book {
	t.Helper()

	author := CreateAuthor(t, db, "Author of "+title)
	now := time.Now().UTC()
	book := &models.Book{
		CreatedAt:       now,
		UpdatedAt:       now,
		Title:           title,
		AuthorID:        author.ID,
		Genre:           models.GenreFiction,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
	}
	_, err := db.NewInsert().Model(book).Returning("*").Exec(context.Background())
	require.NoError(t, err)

	return book
}

// Reload reads the book's stored counts again.
func Reload(t testing.TB, db bun.IDB, book *models.Book) *models.Book {
	t.Helper()

	fresh := &models.Book{}
	err := db.NewSelect().Model(fresh).Where("b.id = ?", book.ID).Scan(context.Background())
	require.NoError(t, err)

	return fresh
}
