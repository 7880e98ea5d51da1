package auth

import (
	"chat-relay/errors"
	stderrors "errors"
	"fmt"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("complex", func(fl validator.FieldLevel) bool {
		return isPasswordComplex(fl.Field().String())
	})
	return v
}

// RegisterRequest is checked before any account is created.
// The 72 bytes cap keeps the hash input bounded.
type RegisterRequest struct {
	Username string `validate:"required,min=3,max=32,alphanum"`
	Password string `validate:"required,min=12,max=72,complex"`
}

// ValidateRegister maps the first failing field to ErrInvalidUsername or ErrInvalidPassword.
func ValidateRegister(req RegisterRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if stderrors.As(err, &fieldErrors) {
		for _, fe := range fieldErrors {
			if fe.Field() == "Username" {
				return fmt.Errorf("%w: %s", errors.ErrInvalidUsername, fe.Tag())
			}
		}
		return fmt.Errorf("%w: %s", errors.ErrInvalidPassword, fieldErrors[0].Tag())
	}
	return fmt.Errorf("%w: %v", errors.ErrInvalidArgument, err)
}

// Validate checks a struct against its `validate` tags.
func Validate(s any) error {
	return validate.Struct(s)
}

func isPasswordComplex(s string) bool {
	var upper, lower, number, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsNumber(r):
			number = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && number && special
}
