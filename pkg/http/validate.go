package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// report fields under the name the client used
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "param", "json"} {
			if name := strings.Split(f.Tag.Get(tag), ",")[0]; name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	_ = validate.RegisterValidation("timestamp", func(fl validator.FieldLevel) bool {
		_, ok := ParseTime(fl.Field().String())
		return ok
	})
}

// RegisterValidation adds a custom tag to the request validator. Call it from init.
func RegisterValidation(tag string, fn func(value string) bool) {
	if err := validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// ReadAndValidateRequest binds path, query and body into req, fills its
// `default` tags and validates it. It returns nil or a []ValidationError.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	steps := []func() error{
		func() error { return c.Bind(req) },
		func() error { return defaults.Set(req) },
		func() error { return validate.StructCtx(c.Request().Context(), req) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return toValidationErrors(err)
		}
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make([]ValidationError, len(fieldErrs))
		for i, fe := range fieldErrs {
			out[i] = ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: fe.Field() + " " + describe(fe),
				Params:  boundParams(fe),
			}
		}
		return out
	}
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []ValidationError{{Code: "ERR_UNKNOWN", Message: msg}}
}

// fixed phrases per tag; bounded tags are formatted with their parameter
var phrases = map[string]string{
	"required":    "is required",
	"alphanum":    "must contain only letters and digits",
	"timestamp":   "must be RFC3339 or unix seconds/milliseconds",
	"sensitivity": "must be one of: Low, Medium, High",
	"gt":          "must be greater than %s",
	"gte":         "must be greater than or equal to %s",
	"lt":          "must be less than %s",
	"lte":         "must be less than or equal to %s",
	"min":         "must be at least %s",
	"max":         "must be at most %s",
}

func describe(fe validator.FieldError) string {
	switch tag := fe.Tag(); tag {
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "max":
		msg := fmt.Sprintf(phrases[tag], fe.Param())
		if fe.Kind() == reflect.String {
			msg += " characters"
		}
		return msg
	default:
		p, ok := phrases[tag]
		if !ok {
			return "failed validation: " + tag
		}
		if strings.Contains(p, "%s") {
			return fmt.Sprintf(p, fe.Param())
		}
		return p
	}
}

func boundParams(fe validator.FieldError) map[string]interface{} {
	switch fe.Tag() {
	case "min", "gte":
		return map[string]interface{}{"min": fe.Param()}
	case "max", "lte":
		return map[string]interface{}{"max": fe.Param()}
	case "gt", "lt":
		return map[string]interface{}{"value": fe.Param()}
	case "oneof":
		return map[string]interface{}{"options": strings.Split(fe.Param(), " ")}
	}
	return nil
}
