package loans

type CreateLoanPayload struct {
	BookID int `json:"book_id" validate:"required,min=1"`
	// UserID lets an administrator lend on someone else's behalf. It defaults
	// to the caller.
	UserID int `json:"user_id,omitempty" validate:"omitempty,min=1"`
}

type ListLoansQuery struct {
	Limit  int     `query:"limit" json:"limit,omitempty" default:"20" validate:"min=1,max=100"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	UserID *int    `query:"user_id" json:"user_id,omitempty" validate:"omitempty,min=1"`
	BookID *int    `query:"book_id" json:"book_id,omitempty" validate:"omitempty,min=1"`
	Status *string `query:"status" json:"status,omitempty" validate:"omitempty,oneof=active returned overdue"`
	// DueBefore is a YYYY-MM-DD date, read as midnight UTC.
	DueBefore string `query:"due_before" json:"due_before,omitempty" validate:"omitempty,date"`
}
