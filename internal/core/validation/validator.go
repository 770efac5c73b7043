// Package validation holds the client-side form rules: formatted sensitive
// fields, banking number ranges, attachment batches and status updates.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/taxdesk/filing-client/internal/core/domain"
)

// Errors maps field names to messages. It is returned before any network call.
type Errors struct {
	Fields map[string]string
}

// Add records msg for field, keeping the first message per field.
func (e *Errors) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Field returns the message for field, or "".
func (e *Errors) Field(field string) string { return e.Fields[field] }

// Err returns e when it holds at least one message, nil otherwise.
func (e *Errors) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *Errors) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return strings.Join(msgs, "; ")
}

// Validator wraps go-playground/validator with the custom tags of this
// project. It also satisfies echo.Validator.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the "digits" and "taxid" tags registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return digitsPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("taxid", func(fl validator.FieldLevel) bool {
		return ValidTaxID(fl.Field().String())
	})
	return &Validator{v: v}
}

// Validate checks struct tags and returns *Errors on failure.
func (v *Validator) Validate(i any) error {
	err := v.v.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &Errors{}
	for _, fe := range ve {
		out.Add(fe.Field(), fieldError(fe))
	}
	return out
}

// fieldError converts a single FieldError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "taxid":
		return field + " must have the format 123-45-6789"
	case "digits":
		return field + " must contain digits only"
	case "min":
		return fmt.Sprintf("%s must have at least %s digits", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s digits", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date (%s)", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// StatusUpdate validates an admin transition before it is dispatched.
func StatusUpdate(u domain.StatusUpdate) error {
	errs := &Errors{}
	if !u.Status.Valid() {
		errs.Add("status", "choose a valid status")
	}
	if strings.TrimSpace(u.Comment) == "" {
		errs.Add("comment", "a comment is required")
	}
	if u.Status.RequiresPaymentDate() && (u.PaymentDate == nil || u.PaymentDate.IsZero()) {
		errs.Add("paymentDate", "a payment date is required for "+string(domain.AdminStatusPaymentScheduled))
	}
	return errs.Err()
}

// Note validates an admin note before it is dispatched.
func Note(note string) error {
	if strings.TrimSpace(note) == "" {
		errs := &Errors{}
		errs.Add("note", "note cannot be empty")
		return errs
	}
	return nil
}
