package service

// Controllers convert their HTTP DTOs to this type.
type RegisterRequest struct {
	Email    string `validate:"required,email,max=254"`
	Name     string `validate:"required,max=100"`
	Password string `validate:"required,min=8,max=72"` // bcrypt ignores bytes past 72
}

// Controllers convert their HTTP DTOs to this type.
type AuthenticateRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}
