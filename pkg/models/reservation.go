package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ReservationStatusActive    = "active"
	ReservationStatusCancelled = "cancelled"
	ReservationStatusExpired   = "expired"
	// ReservationStatusFulfilled marks a hold that turned into a loan for the
	// same borrower.
	ReservationStatusFulfilled = "fulfilled"
)

type Reservation struct {
	bun.BaseModel `bun:"table:reservations,alias:rv"`

	ID        int       `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    int       `bun:",nullzero" json:"user_id"`
	User      *User     `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	BookID    int       `bun:",nullzero" json:"book_id"`
	Book      *Book     `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	Status    string    `bun:",nullzero" json:"status"`
}

func (r *Reservation) IsActive() bool {
	return r.Status == ReservationStatusActive
}

// IsExpired is true once an active hold has reached its expiry time, even if
// nothing has swept it yet.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.IsActive() && !now.Before(r.ExpiresAt)
}
