package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var knownEntityKinds = map[string]bool{
	"interfaces":   true,
	"routes":       true,
	"route-rules":  true,
	"dns-resolver": true,
}

// getValidationMessage returns a human-readable message for a validation error
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "max":
		return fmt.Sprintf("must be <= %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "gtefield":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "unique":
		return "must not contain duplicates"
	case "hostname_port":
		return "must be in format 'host:port'"
	case "filepath":
		return "must be a file path"
	case "entity_kind":
		return "must be one of: interfaces, routes, route-rules, dns-resolver"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// ValidationError represents a single validation error with context
type ValidationError struct {
	FieldPath string // Dot-notation field path (e.g., "verify.interval_ms")
	Message   string // Human-readable error message
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("validation failed with %d error(s):\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.FieldPath, err.Message))
	}
	return sb.String()
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("entity_kind", validateEntityKind); err != nil {
		panic(err)
	}

	// Register function to get field name from "toml" tag
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateEntityKind(fl validator.FieldLevel) bool {
	return knownEntityKinds[fl.Field().String()]
}

// ValidateConfig validates the whole configuration and returns ValidationErrors.
func (c *Config) ValidateConfig() error {
	var validationErrors ValidationErrors

	if err := validate.Struct(c); err != nil {
		validationErrors = append(validationErrors, convertValidatorErrors(err)...)
	}

	if c.Engine != nil {
		precedence := make(map[string]bool, len(c.Engine.Precedence))
		for _, k := range c.Engine.Precedence {
			precedence[k] = true
		}
		for _, k := range c.Engine.Kinds {
			if !precedence[k] {
				validationErrors = append(validationErrors, ValidationError{
					FieldPath: "engine.precedence",
					Message:   fmt.Sprintf("enabled kind %q is missing from the precedence table", k),
				})
			}
		}
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}
	return nil
}

func convertValidatorErrors(err error) ValidationErrors {
	var validationErrors ValidationErrors

	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		for _, e := range validatorErrs {
			// Namespace is "Config.engine.kinds[0]"; drop the root struct name.
			fieldPath := e.Namespace()
			if idx := strings.Index(fieldPath, "."); idx >= 0 {
				fieldPath = fieldPath[idx+1:]
			}

			validationErrors = append(validationErrors, ValidationError{
				FieldPath: fieldPath,
				Message:   getValidationMessage(e),
			})
		}
	}

	return validationErrors
}
