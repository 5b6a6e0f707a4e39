package dto

type RegisterUserRequest struct {
	Email string `json:"email" validate:"required,email"`
}
