package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE loans (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				user_id INTEGER REFERENCES users (id) NOT NULL,
				book_id INTEGER REFERENCES books (id) NOT NULL,
				due_at TIMESTAMPTZ NOT NULL,
				returned_at TIMESTAMPTZ,
				status TEXT NOT NULL CHECK (status IN ('active', 'returned')),
				renewal_count INTEGER NOT NULL DEFAULT 0 CHECK (renewal_count >= 0)
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		// One active loan per borrower and book.
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_loans_active_user_book ON loans (user_id, book_id) WHERE status = 'active'`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_loans_book_id_status ON loans (book_id, status)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_loans_user_id_status ON loans (user_id, status)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE reservations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				user_id INTEGER REFERENCES users (id) NOT NULL,
				book_id INTEGER REFERENCES books (id) NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL,
				status TEXT NOT NULL CHECK (status IN ('active', 'cancelled', 'expired', 'fulfilled'))
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		// One active reservation per borrower and book.
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_reservations_active_user_book ON reservations (user_id, book_id) WHERE status = 'active'`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_reservations_book_id_status ON reservations (book_id, status)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_reservations_status_expires_at ON reservations (status, expires_at)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("DROP TABLE IF EXISTS reservations")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS loans")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
