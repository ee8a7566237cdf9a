// Package validation holds the schemas checked on every form submission before
// any identity call is made.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nfrund/signin/internal/domain"
)

// Messages shown inline next to the offending field.
const (
	MsgEmailInvalid     = "Please enter a valid email address"
	MsgPasswordTooShort = "Password must be at least 6 characters"
	MsgCodeInvalid      = "Verification code must be 6 digits"
)

var (
	addressPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)
	otpPattern     = regexp.MustCompile(`^[0-9]{6}$`)
)

// validatorInstance is shared; the library caches struct metadata per type.
var validatorInstance = validator.New()

func init() {
	_ = validatorInstance.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		return addressPattern.MatchString(fl.Field().String())
	})
	_ = validatorInstance.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		return otpPattern.MatchString(fl.Field().String())
	})
}

// Errors is a set of field-scoped validation failures. It never reaches the
// error classifier.
type Errors []domain.FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, string(fe.Field)+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Message returns the error attached to field, if any.
func (e Errors) Message(field domain.Field) (string, bool) {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message, true
		}
	}
	return "", false
}

// ValidateCredentialForm checks the email shape and, when a password is
// given, its minimum length. An empty password is valid because the
// magic-link path does not use one.
func ValidateCredentialForm(email, password string) (domain.CredentialForm, error) {
	form := domain.CredentialForm{Email: email, Password: password}
	if err := check(form); err != nil {
		return domain.CredentialForm{}, err
	}
	return form, nil
}

// ValidateCodeForm accepts exactly six ASCII digits.
func ValidateCodeForm(code string) (domain.CodeForm, error) {
	form := domain.CodeForm{Code: code}
	if err := check(form); err != nil {
		return domain.CodeForm{}, err
	}
	return form, nil
}

// Struct validates any request DTO with the shared instance. It backs the
// echo.Validator used by the HTTP handlers.
func Struct(v any) error {
	return validatorInstance.Struct(v)
}

func check(form any) error {
	err := validatorInstance.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, toFieldError(fe))
	}
	return out
}

func toFieldError(fe validator.FieldError) domain.FieldError {
	switch fe.Field() {
	case "Email":
		return domain.FieldError{Field: domain.FieldEmail, Message: MsgEmailInvalid}
	case "Password":
		return domain.FieldError{Field: domain.FieldPassword, Message: MsgPasswordTooShort}
	case "Code":
		return domain.FieldError{Field: domain.FieldCode, Message: MsgCodeInvalid}
	default:
		return domain.FieldError{Field: domain.FieldNone, Message: fe.Error()}
	}
}
