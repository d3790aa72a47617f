// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

// Package validation wraps go-playground/validator v10 with a shared
// instance, Cinecord's custom tags and human-readable error messages.
//
// Field names in errors are reported by their koanf path (for example
// "trakt.client_id") so a message points straight at the config key or
// environment variable to fix.
//
// Custom tags:
//   - snowflake: a Discord ID, 17 to 20 decimal digits
//   - slug: lowercase letters, digits and dashes
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	snowflakePattern = regexp.MustCompile(`^[0-9]{17,20}$`)
	slugPattern      = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// FieldError describes a single failed constraint.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Value   interface{}
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// Errors aggregates every failed constraint of one struct.
type Errors []FieldError

func (ve Errors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve))
	for i, fe := range ve {
		messages[i] = fe.Message
	}
	return strings.Join(messages, "; ")
}

// GetValidator returns the process-wide validator.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(koanfTagName)

		// Registration only fails on empty tags or nil funcs.
		_ = validate.RegisterValidation("snowflake", func(fl validator.FieldLevel) bool { //nolint:errcheck // static registration
			return snowflakePattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool { //nolint:errcheck // static registration
			return slugPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// koanfTagName reports struct fields by their koanf key, falling back to the Go name.
func koanfTagName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("koanf"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// ValidateStruct validates s and returns Errors, or nil when s is valid.
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("validation: %w", err)
	}

	out := make(Errors, len(validationErrs))
	for i, fe := range validationErrs {
		field := fieldPath(fe.Namespace())
		out[i] = FieldError{
			Field:   field,
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: translateError(fe, field),
		}
	}
	return out
}

// fieldPath drops the root struct name: "Config.trakt.client_id" -> "trakt.client_id".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

var errorMessageTemplates = map[string]string{
	"required":  "%s is required",
	"url":       "%s must be a valid URL",
	"hostname":  "%s must be a valid hostname",
	"ip":        "%s must be a valid IP address",
	"snowflake": "%s must be a Discord application ID (17-20 digits)",
	"slug":      "%s must contain only lowercase letters, digits and dashes",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func translateError(fe validator.FieldError, field string) string {
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
