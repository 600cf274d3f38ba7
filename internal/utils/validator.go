// internal/utils/validator.go
package utils

import (
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("product_url", validateProductURL)
	validate.RegisterValidation("domain", validateDomain)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// validateProductURL accepts anything the URL canonicalizer can derive a
// host/path reference from.
func validateProductURL(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if strings.TrimSpace(raw) == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.Host != "" || parsed.Path != ""
}

// validateDomain rejects values carrying a scheme, path or whitespace: domains
// arrive bare ("waffles.food"), not as URLs.
func validateDomain(fl validator.FieldLevel) bool {
	domain := fl.Field().String()
	if domain == "" || strings.ContainsAny(domain, "/ \t") {
		return false
	}
	return !strings.Contains(domain, "://") && strings.Contains(domain, ".")
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "product_url":
		return e.Field() + " must be a product URL"
	case "domain":
		return e.Field() + " must be a bare domain name"
	default:
		return e.Field() + " is invalid"
	}
}
