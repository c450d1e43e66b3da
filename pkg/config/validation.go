package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/tablestore/pkg/storage"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Validate table names are unique
	names := make(map[string]bool)
	for i, table := range cfg.Tables {
		if names[table.Name] {
			return fmt.Errorf("tables[%d]: duplicate table name %q", i, table.Name)
		}
		names[table.Name] = true
	}

	// Table locations must be absolute URLs. Whether the scheme is
	// registered is only known once backends are wired, so it is checked
	// when the table is opened.
	for i, table := range cfg.Tables {
		if _, err := storage.ParseURL(table.Location); err != nil {
			return fmt.Errorf("tables[%d]: invalid location %q: %w", i, table.Location, err)
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
