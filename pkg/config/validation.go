package config

import (
	"fmt"
	"net"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation via
// struct tags, with additional custom validation for rules that cannot be
// expressed in tags.
//
// Returns an error describing the first validation failure.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Every allowlist entry must parse as an IP address
	for i, entry := range cfg.Auth.AllowedIPs {
		if net.ParseIP(entry) == nil {
			return fmt.Errorf("auth.allowed_ips[%d]: %q is not a valid IP address", i, entry)
		}
	}

	// Uploads need somewhere to land
	if cfg.Upload.Type == "filesystem" {
		if path, _ := cfg.Upload.Filesystem["path"].(string); path == "" {
			return fmt.Errorf("upload.filesystem.path: required when upload type is filesystem")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
