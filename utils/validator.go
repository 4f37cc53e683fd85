package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the tag-based validators on a request struct and
// returns a field -> message map suitable for a 422 response body.
func ValidateStruct(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			out[field] = "This field is required"
		case "email":
			out[field] = "Must be a valid email address"
		case "min":
			out[field] = "Value is below the allowed minimum (" + fe.Param() + ")"
		case "max":
			out[field] = "Value is above the allowed maximum (" + fe.Param() + ")"
		case "oneof":
			out[field] = "Must be one of: " + fe.Param()
		default:
			out[field] = "Invalid value"
		}
	}
	return out
}
