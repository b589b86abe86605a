package books

type ListBooksQuery struct {
	Limit         int     `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset        int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	AuthorID      *int    `query:"author_id" json:"author_id,omitempty" validate:"omitempty,min=1"`
	CategoryID    *int    `query:"category_id" json:"category_id,omitempty" validate:"omitempty,min=1"`
	Genre         *string `query:"genre" json:"genre,omitempty" validate:"omitempty,genre"`
	Search        *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100"`
	AvailableOnly bool    `query:"available_only" json:"available_only,omitempty"`
}

type CreateBookPayload struct {
	Title       string `json:"title" mod:"trim" validate:"required,max=300"`
	AuthorID    int    `json:"author_id" validate:"required,min=1"`
	CategoryID  *int   `json:"category_id,omitempty" validate:"omitempty,min=1"`
	Genre       string `json:"genre" mod:"trim,lcase" validate:"required,genre"`
	TotalCopies *int   `json:"total_copies,omitempty" default:"1" validate:"required,min=0,max=10000"`
}

type UpdateBookPayload struct {
	Title       *string `json:"title,omitempty" mod:"trim" validate:"omitempty,min=1,max=300"`
	AuthorID    *int    `json:"author_id,omitempty" validate:"omitempty,min=1"`
	CategoryID  *int    `json:"category_id,omitempty" validate:"omitempty,min=0"`
	Genre       *string `json:"genre,omitempty" mod:"trim,lcase" validate:"omitempty,genre"`
	TotalCopies *int    `json:"total_copies,omitempty" validate:"omitempty,min=0,max=10000"`
}
