package categories

type CreateCategoryPayload struct {
	Name        string  `json:"name" mod:"trim" validate:"required,max=100"`
	Description *string `json:"description,omitempty" mod:"trim" validate:"omitempty,max=1000"`
}
