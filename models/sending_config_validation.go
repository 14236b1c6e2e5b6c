package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidSendingConfig matches every *ConfigError
var ErrInvalidSendingConfig = errors.New("invalid sending config")

// ConfigViolation is a single rejected field
type ConfigViolation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ConfigError lists every violation found in a SendingConfig
type ConfigError struct {
	Violations []ConfigViolation
}

func (e *ConfigError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidSendingConfig.Error(), strings.Join(msgs, "; "))
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidSendingConfig
}

// ValidSendingConfig is a SendingConfig that passed validation. It can only be obtained
// from ValidateSendingConfig and hands out copies, so a bound run config never changes.
type ValidSendingConfig struct {
	cfg SendingConfig
}

// Config returns a copy of the validated config
func (v ValidSendingConfig) Config() SendingConfig {
	return v.cfg
}

var (
	configValidatorOnce sync.Once
	configValidator     *validator.Validate
)

func sendingConfigValidator() *validator.Validate {
	configValidatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		mustRegister(v, "clock_time", func(fl validator.FieldLevel) bool {
			_, _, err := ParseClockTime(fl.Field().String())
			return err == nil
		})
		mustRegister(v, "iana_tz", func(fl validator.FieldLevel) bool {
			name := fl.Field().String()
			if name == "" {
				return false
			}
			_, err := time.LoadLocation(name)
			return err == nil
		})
		configValidator = v
	})
	return configValidator
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// ValidateSendingConfig checks ranges, time strings and cross-field rules.
// All groups are checked whether or not they are enabled.
func ValidateSendingConfig(cfg SendingConfig) (ValidSendingConfig, error) {
	var violations []ConfigViolation

	if err := sendingConfigValidator().Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return ValidSendingConfig{}, fmt.Errorf("validate sending config: %w", err)
		}
		for _, fe := range fieldErrs {
			violations = append(violations, violationFromFieldError(fe))
		}
	}

	if cfg.AutoRescheduling.Enabled && cfg.AutoRescheduling.MaxRetryAttempts < 1 {
		violations = append(violations, ConfigViolation{
			Field:   "auto_rescheduling.max_retry_attempts",
			Rule:    "min_when_enabled",
			Message: "auto_rescheduling.max_retry_attempts must be at least 1 when auto-rescheduling is enabled",
		})
	}

	if len(violations) > 0 {
		return ValidSendingConfig{}, &ConfigError{Violations: violations}
	}
	return ValidSendingConfig{cfg: cfg}, nil
}

// MustValidateSendingConfig panics on an invalid config. Intended for defaults and tests.
func MustValidateSendingConfig(cfg SendingConfig) ValidSendingConfig {
	v, err := ValidateSendingConfig(cfg)
	if err != nil {
		panic(err)
	}
	return v
}

func violationFromFieldError(fe validator.FieldError) ConfigViolation {
	field := strings.TrimPrefix(fe.Namespace(), "SendingConfig.")
	var msg string
	switch fe.Tag() {
	case "min":
		msg = fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gtfield":
		msg = fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "nefield":
		msg = fmt.Sprintf("%s must differ from %s", field, fe.Param())
	case "clock_time":
		msg = fmt.Sprintf("%s must be a time of day in HH:MM format", field)
	case "iana_tz":
		msg = fmt.Sprintf("%s must be a valid IANA timezone", field)
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return ConfigViolation{Field: field, Rule: fe.Tag(), Message: msg}
}

// ParseClockTime parses a strict HH:MM time of day
func ParseClockTime(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
