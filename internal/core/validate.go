package core

// validate.go enforces field-level and cross-field business rules against a
// structured entity. The mode decides how strict required-field enforcement
// is: create wants a complete record plus an owner, import wants the schema's
// required fields but no ownership (the import engine attaches that later),
// and update allows any partial set of fields.

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/crmkit/importer/internal/schema"
	"github.com/crmkit/importer/internal/store"
)

var (
	namePattern  = regexp.MustCompile(`^[\p{L}\p{M}' .-]+$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[0-9+()\-. ]+$`)
)

// Validator validates entities against one schema.
type Validator struct {
	schema *schema.Schema
	clock  store.Clock
}

// NewValidator creates a validator. The clock feeds date-window rules.
func NewValidator(s *schema.Schema, clock store.Clock) *Validator {
	return &Validator{schema: s, clock: clock}
}

// Validate checks an entity under the given mode and returns every
// diagnostic found, in schema field order.
func (v *Validator) Validate(e Entity, mode schema.Mode) ValidationResult {
	var errs []string

	if mode != schema.ModeUpdate {
		for _, name := range v.schema.RequiredFields() {
			if strings.TrimSpace(e.Fields[name]) == "" {
				errs = append(errs, fmt.Sprintf("empty required field %q", name))
			}
		}
	}
	if mode == schema.ModeCreate && strings.TrimSpace(e.OwnerID) == "" {
		errs = append(errs, "missing owner reference")
	}

	for _, f := range v.schema.Fields {
		switch {
		case f.Type == schema.FieldList:
			for _, item := range e.Lists[f.Name] {
				if f.MaxLen > 0 && utf8.RuneCountInString(item) > f.MaxLen {
					errs = append(errs, fmt.Sprintf("element of %q exceeds %d characters", f.Name, f.MaxLen))
				}
			}
		case f.Group != "":
			value := e.Groups[f.Group][f.GroupField]
			if value != "" && f.MaxLen > 0 && utf8.RuneCountInString(value) > f.MaxLen {
				errs = append(errs, fmt.Sprintf("value for %q exceeds %d characters", f.Name, f.MaxLen))
			}
		default:
			value := e.Fields[f.Name]
			if value == "" {
				continue
			}
			// Limits count characters, not bytes.
			if f.MaxLen > 0 && utf8.RuneCountInString(value) > f.MaxLen {
				errs = append(errs, fmt.Sprintf("value for %q exceeds %d characters", f.Name, f.MaxLen))
				continue
			}
			if msg := validateScalar(value, f); msg != "" {
				errs = append(errs, msg)
			}
		}
	}

	now := v.clock.Now()
	for _, rule := range v.schema.Cross {
		if !rule.AppliesTo(mode) {
			continue
		}
		if msg := rule.Check(e.Fields, now); msg != "" {
			errs = append(errs, msg)
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// validateScalar checks a non-empty scalar value against its field type.
func validateScalar(value string, f schema.Field) string {
	switch f.Type {
	case schema.FieldName:
		if !namePattern.MatchString(value) {
			return fmt.Sprintf("invalid characters in %q: %q", f.Name, value)
		}
	case schema.FieldEmail:
		if !emailPattern.MatchString(value) {
			return fmt.Sprintf("invalid email for %q: %q", f.Name, value)
		}
	case schema.FieldPhone:
		if !phonePattern.MatchString(value) {
			return fmt.Sprintf("invalid phone for %q: %q", f.Name, value)
		}
	case schema.FieldURL:
		if msg := validateURL(value, f); msg != "" {
			return msg
		}
	case schema.FieldEnum:
		if !schema.InEnum(value, f.EnumValues) {
			return fmt.Sprintf("value for %q must be one of: %s", f.Name, strings.Join(f.EnumValues, ", "))
		}
	case schema.FieldDate:
		if _, ok := schema.ParseDate(value); !ok {
			return fmt.Sprintf("invalid date for %q: %q (use YYYY-MM-DD or similar)", f.Name, value)
		}
	case schema.FieldNumeric:
		n, ok := schema.ParseNumber(value)
		if !ok {
			return fmt.Sprintf("invalid number for %q: %q", f.Name, value)
		}
		if n < 0 {
			return fmt.Sprintf("value for %q must not be negative: %q", f.Name, value)
		}
	}
	return ""
}

// validateURL parses the value as an http(s) URL, defaulting the scheme when
// absent, and enforces the field's host allow list.
func validateURL(value string, f schema.Field) string {
	candidate := value
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return fmt.Sprintf("invalid URL for %q: %q", f.Name, value)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("URL for %q must use http or https: %q", f.Name, value)
	}

	if len(f.URLHosts) > 0 {
		host := strings.ToLower(u.Hostname())
		for _, allowed := range f.URLHosts {
			if host == strings.ToLower(allowed) {
				return ""
			}
		}
		return fmt.Sprintf("URL for %q must be on %s: %q", f.Name, strings.Join(f.URLHosts, " or "), value)
	}
	return ""
}
