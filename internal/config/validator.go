package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers the wiregate validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"access_log_output": validateAccessLogOutput,
		"route_kind":        validateRouteKind,
		"duration":          validateDuration,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// validateAccessLogOutput accepts "", "file://<absolute dir>" and
// "sqlite://<absolute file>".
func validateAccessLogOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()
	if output == "" {
		return true
	}
	for _, scheme := range []string{"file://", "sqlite://"} {
		if strings.HasPrefix(output, scheme) {
			path := strings.TrimPrefix(output, scheme)
			return path != "" && filepath.IsAbs(path)
		}
	}
	return false
}

func validateRouteKind(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case RouteStatic, RouteEcho, RouteText, RouteHealth:
		return true
	}
	return false
}

func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

// Validate validates the Config using struct tags and cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateRoutes(); err != nil {
		return err
	}
	return c.validateUserReferences()
}

// validateRoutes checks path uniqueness and per-kind requirements.
func (c *Config) validateRoutes() error {
	seen := make(map[string]struct{}, len(c.Routes))
	for i, r := range c.Routes {
		if _, dup := seen[r.Path]; dup {
			return fmt.Errorf("routes[%d]: duplicate path %q", i, r.Path)
		}
		seen[r.Path] = struct{}{}

		if r.Kind == RouteStatic {
			if r.Dir == "" {
				return fmt.Errorf("routes[%d]: static route %q requires dir", i, r.Path)
			}
		} else if r.Dir != "" {
			return fmt.Errorf("routes[%d]: dir is only valid for static routes", i)
		}

		if rl := r.RateLimit; rl.Rate == 0 && (rl.Burst != 0 || rl.Period != "") {
			return fmt.Errorf("routes[%d]: rate_limit needs a rate", i)
		}
		if rl := r.RateLimit; rl.Rate > 0 && rl.PeriodDuration() <= 0 {
			return fmt.Errorf("routes[%d]: rate_limit period must be positive", i)
		}
	}
	return nil
}

// validateUserReferences ensures every auth_users entry names a configured
// user and that user names are unique.
func (c *Config) validateUserReferences() error {
	known := make(map[string]struct{}, len(c.Auth.Users))
	for i, u := range c.Auth.Users {
		if _, dup := known[u.Name]; dup {
			return fmt.Errorf("auth.users[%d]: duplicate user %q", i, u.Name)
		}
		known[u.Name] = struct{}{}
	}

	for i, r := range c.Routes {
		for _, name := range r.AuthUsers {
			if _, ok := known[name]; !ok {
				return fmt.Errorf("routes[%d]: references unknown user: %s", i, name)
			}
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, e.Param())
	case "excludes":
		return fmt.Sprintf("%s must not contain %q", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "cidr|ip":
		return fmt.Sprintf("%s must be an IP address or CIDR prefix", field)
	case "access_log_output":
		return fmt.Sprintf("%s must be empty, 'file://<absolute-dir>' or 'sqlite://<absolute-file>'", field)
	case "route_kind":
		return fmt.Sprintf("%s must be one of: static echo text health", field)
	case "duration":
		return fmt.Sprintf("%s must be a duration such as 500ms, 10s or 1h", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
