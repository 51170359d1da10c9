package core

// sanitize.go normalizes and escapes entity content. Sanitization is
// independent of validation and pure: it returns a new entity and never
// mutates its input, so bulk validation can be re-run safely for previews.

import (
	"html"
	"net/url"
	"strings"
	"unicode"

	"github.com/crmkit/importer/internal/schema"
	"github.com/microcosm-cc/bluemonday"
)

// richTextPolicy keeps a small set of inline and structural formatting tags
// in long-form text fields. Everything else is stripped; inner text always
// survives.
var richTextPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "em", "strong", "u", "p", "br", "ul", "ol", "li")
	return p
}()

// phoneAllowed is the character set kept in phone numbers.
const phoneAllowed = "0123456789+()-. "

// Sanitizer normalizes entities of one schema.
type Sanitizer struct {
	schema *schema.Schema
}

// NewSanitizer creates a sanitizer for a schema.
func NewSanitizer(s *schema.Schema) *Sanitizer {
	return &Sanitizer{schema: s}
}

// Sanitize returns a normalized copy of the entity.
func (sn *Sanitizer) Sanitize(e Entity) Entity {
	out := e.Clone()

	for _, f := range sn.schema.Fields {
		switch {
		case f.Type == schema.FieldList:
			if items, ok := out.Lists[f.Name]; ok {
				out.Lists[f.Name] = sanitizeList(items)
			}
		case f.Group != "":
			if sub, ok := out.Groups[f.Group]; ok {
				if v, ok := sub[f.GroupField]; ok {
					sub[f.GroupField] = cleanString(v)
				}
			}
		default:
			value, ok := out.Fields[f.Name]
			if !ok {
				continue
			}
			out.Fields[f.Name] = sanitizeScalar(value, f)
		}
	}

	return out
}

func sanitizeScalar(value string, f schema.Field) string {
	switch f.Type {
	case schema.FieldLongText:
		return strings.TrimSpace(richTextPolicy.Sanitize(value))
	case schema.FieldURL:
		return normalizeURL(value)
	case schema.FieldPhone:
		return normalizePhone(value)
	case schema.FieldEmail:
		return strings.ToLower(strings.TrimSpace(value))
	case schema.FieldEnum:
		return canonicalEnum(value, f.EnumValues)
	case schema.FieldDate:
		if t, ok := schema.ParseDate(value); ok {
			return t.Format(schema.DateLayout)
		}
		return cleanString(value)
	case schema.FieldNumeric:
		return cleanString(value)
	default:
		return cleanString(value)
	}
}

// cleanString trims, strips control characters, and HTML-escapes a plain
// string field.
func cleanString(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return html.EscapeString(strings.TrimSpace(b.String()))
}

// normalizeURL defaults a missing scheme to https, rejects non-http schemes,
// and re-emits the parsed form.
func normalizeURL(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if !strings.Contains(value, "://") {
		value = "https://" + value
	}

	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// normalizePhone strips everything outside the allowed phone character set.
func normalizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if strings.ContainsRune(phoneAllowed, r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// canonicalEnum returns the schema's casing for a matching enum value, or
// the trimmed input when nothing matches (the validator reports that case).
func canonicalEnum(value string, allowed []string) string {
	trimmed := strings.TrimSpace(value)
	for _, a := range allowed {
		if strings.EqualFold(a, trimmed) {
			return a
		}
	}
	return trimmed
}

// sanitizeList cleans each element, drops empties, and deduplicates
// case-sensitively while preserving first-seen order.
func sanitizeList(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		cleaned := cleanString(item)
		if cleaned == "" || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		out = append(out, cleaned)
	}
	return out
}
