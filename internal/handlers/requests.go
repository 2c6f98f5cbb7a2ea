package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"spamguard/server/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Presence of required fields is checked by the services so their messages
// stay uniform; tags here only bound formats and sizes. bcrypt rejects
// passwords longer than 72 bytes.

type ContactRequest struct {
	Name  string `json:"name" validate:"max=100"`
	Phone string `json:"phone" validate:"max=20"`
}

// RegisterRequest represents registration request body
type RegisterRequest struct {
	Name     string           `json:"name" validate:"max=100"`
	Phone    string           `json:"phone" validate:"max=20"`
	Email    string           `json:"email" validate:"omitempty,email,max=254"`
	Password string           `json:"password" validate:"max=72"`
	Contacts []ContactRequest `json:"contacts" validate:"max=1000,dive"`
}

// LoginRequest represents login request body
type LoginRequest struct {
	Phone    string `json:"phone" validate:"max=20"`
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=72"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type MarkSpamRequest struct {
	Phone string `json:"phone" validate:"max=20"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// parseBody decodes the JSON body into out and validates it.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Wrap(apperr.Validation, "Invalid request body", err)
	}
	return validateStruct(out)
}

func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.Wrap(apperr.Validation, fmt.Sprintf("Invalid value for %s", fieldPath(fe)), err)
	}
	return apperr.Wrap(apperr.Validation, "Invalid request body", err)
}

// fieldPath drops the struct name from the namespace: RegisterRequest.contacts[0].phone
// becomes contacts[0].phone.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
