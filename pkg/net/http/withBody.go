package http

import (
	"encoding/json"
	"errors"
	"strings"

	cn "github.com/brianYuDesign/balance-engine/pkg/constant"
	"github.com/gofiber/fiber/v2"

	en "github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"gopkg.in/go-playground/validator.v9"
	entranslations "gopkg.in/go-playground/validator.v9/translations/en"
)

// DecodeHandlerFunc is a handler which works with the WithBody decorator.
// It receives the struct which was decoded and validated before.
type DecodeHandlerFunc func(p any, c *fiber.Ctx) error

func newValidator() (*validator.Validate, ut.Translator) {
	locale := en.New()
	uni := ut.New(locale, locale)

	trans, _ := uni.GetTranslator("en")

	v := validator.New()

	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return v, trans
	}

	return v, trans
}

func fieldsValidations(err error, trans ut.Translator) FieldValidations {
	fields := make(FieldValidations)

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			fields[strings.ToLower(e.Field()[:1])+e.Field()[1:]] = e.Translate(trans)
		}
	}

	return fields
}

// WithBody decorates a handler decoding the request body into a fresh copy of
// s, validating it and rejecting malformed or invalid payloads before the
// handler runs.
func WithBody(s func() any, h DecodeHandlerFunc) fiber.Handler {
	v, trans := newValidator()

	return func(c *fiber.Ctx) error {
		p := s()

		if err := json.Unmarshal(c.Body(), p); err != nil {
			return BadRequest(c, ValidationKnownFieldsError{
				Code:    cn.ErrInvalidMutation.Error(),
				Title:   "Malformed Request Body",
				Message: "The request body could not be parsed as JSON.",
			})
		}

		if err := v.Struct(p); err != nil {
			return BadRequest(c, ValidationKnownFieldsError{
				Code:    cn.ErrInvalidMutation.Error(),
				Title:   "Invalid Request Fields",
				Message: "One or more request fields failed validation.",
				Fields:  fieldsValidations(err, trans),
			})
		}

		return h(p, c)
	}
}
