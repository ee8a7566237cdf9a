package handlers

import (
	"github.com/nfrund/signin/internal/validation"
)

// CustomValidator implements echo.Validator with the shared validator instance.
type CustomValidator struct{}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	return &CustomValidator{}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return validation.Struct(i)
}

// CreateAttemptRequest starts an attempt. URL is the page's entry URL (or
// just its query); without it the request's own query string is used.
type CreateAttemptRequest struct {
	URL    string `json:"url" form:"url"`
	Locale string `json:"locale" form:"locale" query:"locale" validate:"omitempty,max=35"`
}

// TabRequest switches the credential form tab.
type TabRequest struct {
	Tab string `json:"tab" form:"tab" validate:"required,oneof=magic password"`
}

// EmailRequest carries the magic-link form. The address itself is checked
// by the controller so the error lands on the field.
type EmailRequest struct {
	Email string `json:"email" form:"email"`
}

// CredentialRequest carries the credential form for either tab.
type CredentialRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// VerifyRequest carries the one-time code.
type VerifyRequest struct {
	Code string `json:"code" form:"code"`
}

// FieldRequest names the field the user edited.
type FieldRequest struct {
	Field string `param:"field" validate:"required,oneof=email password code"`
}
