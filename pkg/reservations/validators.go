package reservations

import "time"

type CreateReservationPayload struct {
	BookID int `json:"book_id" validate:"required,min=1"`
	UserID int `json:"user_id,omitempty" validate:"omitempty,min=1"`
}

type ListReservationsQuery struct {
	Limit  int     `query:"limit" json:"limit,omitempty" default:"20" validate:"min=1,max=100"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	UserID *int    `query:"user_id" json:"user_id,omitempty" validate:"omitempty,min=1"`
	BookID *int    `query:"book_id" json:"book_id,omitempty" validate:"omitempty,min=1"`
	Status *string `query:"status" json:"status,omitempty" validate:"omitempty,oneof=active cancelled expired fulfilled"`
}

type ExpirePayload struct {
	// At is an RFC 3339 timestamp and defaults to the current time.
	At *time.Time `json:"at,omitempty"`
}
