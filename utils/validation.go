package utils

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RewardTypes are the accepted values of a reward_type field.
var RewardTypes = map[string]bool{
	"cashback":      true,
	"limited_usage": true,
	"custom":        true,
}

// RegisterValidators adds the custom tags used by request DTOs and reports
// field names by their JSON name.
func RegisterValidators(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v.RegisterValidation("reward_type", func(fl validator.FieldLevel) bool {
		return RewardTypes[fl.Field().String()]
	})
}

// SanitizeValidationError takes a validator error and returns a user-friendly message
// without leaking internal Go struct names.
func SanitizeValidationError(err error) string {
	if err == nil {
		return ""
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		errMsg := err.Error()
		if strings.Contains(errMsg, "cannot unmarshal") {
			return "Invalid request body: a field has the wrong type"
		}
		return "Invalid request body"
	}

	var messages []string
	for _, fe := range validationErrors {
		field := fieldPath(fe)
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "gt":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", field, fe.Param()))
		case "gte":
			messages = append(messages, fmt.Sprintf("%s must be %s or more", field, fe.Param()))
		case "reward_type":
			messages = append(messages, fmt.Sprintf("%s must be one of cashback, limited_usage, custom", field))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", field))
		}
	}

	if len(messages) == 0 {
		return "Invalid request body"
	}

	return strings.Join(messages, "; ")
}

// fieldPath drops the top-level struct name from the namespace, so nested
// fields read as redeemed_rewards[0].reward_id.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return strings.ToLower(fe.Field())
}
