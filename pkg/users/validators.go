package users

type CreateUserPayload struct {
	Username string  `json:"username" mod:"trim" validate:"required,min=3,max=50"`
	Email    *string `json:"email" mod:"trim" validate:"omitempty,email"`
	Password string  `json:"password" validate:"required,min=8"`
	// Either a role ID or a role name like "member".
	RoleID   int    `json:"role_id" validate:"required_without=RoleName"`
	RoleName string `json:"role" mod:"trim,lcase" validate:"omitempty,oneof=admin member"`
}

type UpdateUserPayload struct {
	Username *string `json:"username" mod:"trim" validate:"omitempty,min=3,max=50"`
	Email    *string `json:"email" mod:"trim" validate:"omitempty,email"`
	RoleID   *int    `json:"role_id" validate:"omitempty,min=1"`
	IsActive *bool   `json:"is_active"`
}

type ResetPasswordPayload struct {
	// Required when resetting your own password.
	CurrentPassword *string `json:"current_password"`
	NewPassword     string  `json:"new_password" validate:"required,min=8"`
}

type ListUsersQuery struct {
	Limit    int   `query:"limit" default:"50" validate:"min=1,max=100"`
	Offset   int   `query:"offset" validate:"min=0"`
	IsActive *bool `query:"is_active"`
}
