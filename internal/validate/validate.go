// Package validate fills struct defaults and checks validation tags, and turns
// the failures into field errors that can be returned to API clients.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	// Report yaml/json names instead of Go field names.
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "yaml"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return val
}

// FieldError describes one rejected field.
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Message
}

// Errors is a list of field errors.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// Defaults sets the `default` tags of the zero fields of ptr.
func Defaults(ptr any) error {
	return defaults.Set(ptr)
}

// Struct sets defaults then validates ptr. Validation failures are returned
// as Errors.
func Struct(ptr any) error {
	if err := defaults.Set(ptr); err != nil {
		return fmt.Errorf("set defaults: %w", err)
	}
	return Check(ptr)
}

// Check validates ptr without touching its defaults.
func Check(ptr any) error {
	if err := v.Struct(ptr); err != nil {
		return convert(err)
	}
	return nil
}

// Var validates a single value against a tag such as "gte=0,lte=360".
func Var(field string, value any, tag string) error {
	if err := v.Var(value, tag); err != nil {
		errs := convert(err)
		var list Errors
		if errors.As(errs, &list) {
			for i := range list {
				list[i].Field = field
				list[i].Message = field + list[i].Message
			}
			return list
		}
		return errs
	}
	return nil
}

func convert(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Code:    "ERR_" + strings.ToUpper(fe.Tag()),
			Field:   fieldPath(fe),
			Message: message(fe),
		})
	}
	return out
}

// fieldPath drops the root struct name: "Config.poll.interval_ms" -> "poll.interval_ms".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "http_url", "url":
		return fmt.Sprintf("%s must be an absolute http(s) URL", field)
	case "hexcolor":
		return fmt.Sprintf("%s must be a hex color", field)
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
