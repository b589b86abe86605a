package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	GenreFiction     = "fiction"
	GenreNonFiction  = "non_fiction"
	GenreFantasy     = "fantasy"
	GenreAdventure   = "adventure"
	GenreRomance     = "romance"
	GenreThriller    = "thriller"
	GenreHorror      = "horror"
	GenreBiography   = "biography"
	GenreSelfHelp    = "self_help"
	GenreEducational = "educational"
)

var Genres = []string{
	GenreFiction,
	GenreNonFiction,
	GenreFantasy,
	GenreAdventure,
	GenreRomance,
	GenreThriller,
	GenreHorror,
	GenreBiography,
	GenreSelfHelp,
	GenreEducational,
}

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID         int       `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Title      string    `bun:",nullzero" json:"title"`
	AuthorID   int       `bun:",nullzero" json:"author_id"`
	Author     *Author   `bun:"rel:belongs-to,join:author_id=id" json:"author,omitempty"`
	CategoryID *int      `json:"category_id"`
	Category   *Category `bun:"rel:belongs-to,join:category_id=id" json:"category,omitempty"`
	Genre      string    `bun:",nullzero" json:"genre"`
	// TotalCopies is owned by the catalog. AvailableCopies is derived from
	// the active loans and reservations and only the inventory ledger writes
	// it.
	TotalCopies     int `json:"total_copies"`
	AvailableCopies int `json:"available_copies"`
}

func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}
