package schema

import (
	"fmt"
	"time"
)

// Contact enum tables.
var (
	ContactStatuses    = []string{"active", "inactive", "prospect", "customer", "lead"}
	ContactLeadSources = []string{"website", "referral", "social_media", "email_campaign", "cold_call", "event", "advertisement", "other"}
	Priorities         = []string{"low", "medium", "high", "urgent"}
)

// Contact is the schema for contact records. The natural key is the
// normalized email address.
var Contact = &Schema{
	Kind:     "contact",
	KeyField: "email",
	Fields: []Field{
		{Name: "firstName", Type: FieldName, Required: true, MaxLen: 50, Example: "John"},
		{Name: "lastName", Type: FieldName, Required: true, MaxLen: 50, Example: "Doe"},
		{Name: "email", Type: FieldEmail, Required: true, MaxLen: 100, Example: "john.doe@example.com"},
		{Name: "phone", Type: FieldPhone, MaxLen: 30, Example: "+1 (555) 123-4567"},
		{Name: "company", Type: FieldText, MaxLen: 100, Example: "Acme Corp"},
		{Name: "jobTitle", Type: FieldText, MaxLen: 100, Example: "Head of Procurement"},
		{Name: "department", Type: FieldText, MaxLen: 100, Example: "Operations"},
		{Name: "website", Type: FieldURL, MaxLen: 255, Example: "https://acme.example.com"},
		{Name: "linkedinUrl", Type: FieldURL, MaxLen: 255, URLHosts: []string{"linkedin.com", "www.linkedin.com"}, Example: "https://www.linkedin.com/in/johndoe"},
		{Name: "status", Type: FieldEnum, EnumValues: ContactStatuses, Example: "prospect"},
		{Name: "leadSource", Type: FieldEnum, EnumValues: ContactLeadSources, Example: "referral"},
		{Name: "priority", Type: FieldEnum, EnumValues: Priorities, Example: "medium"},
		{Name: "lastContactedAt", Type: FieldDate, Example: "2025-11-04"},
		{Name: "tags", Type: FieldList, MaxLen: 50, Example: "vip, conference-2025"},
		{Name: "notes", Type: FieldLongText, MaxLen: 5000, Example: "Met at the spring trade show."},
		{Name: "description", Type: FieldLongText, MaxLen: 5000, Example: "Key decision maker for the midwest region."},
		{Name: "street", Type: FieldText, MaxLen: 200, Group: "address", GroupField: "street", Example: "500 Main St"},
		{Name: "city", Type: FieldText, MaxLen: 100, Group: "address", GroupField: "city", Example: "Springfield"},
		{Name: "state", Type: FieldText, MaxLen: 100, Group: "address", GroupField: "state", Example: "IL"},
		{Name: "zipCode", Type: FieldText, MaxLen: 20, Group: "address", GroupField: "zipCode", Example: "62704"},
		{Name: "country", Type: FieldText, MaxLen: 100, Group: "address", GroupField: "country", Example: "USA"},
		{Name: "twitter", Type: FieldText, MaxLen: 100, Group: "socialMedia", GroupField: "twitter", Example: "@johndoe"},
		{Name: "facebook", Type: FieldText, MaxLen: 255, Group: "socialMedia", GroupField: "facebook", Example: "facebook.com/johndoe"},
		{Name: "instagram", Type: FieldText, MaxLen: 100, Group: "socialMedia", GroupField: "instagram", Example: "@johndoe"},
	},
	Cross: []CrossRule{
		{
			// A past-interaction date cannot be in the future. Imports and
			// partial updates tolerate whatever the source system recorded.
			Name:  "lastContactedAt not in future",
			Modes: []Mode{ModeCreate},
			Check: func(fields map[string]string, now time.Time) string {
				raw := fields["lastContactedAt"]
				if raw == "" {
					return ""
				}
				t, ok := ParseDate(raw)
				if !ok {
					return ""
				}
				if t.After(now) {
					return fmt.Sprintf("lastContactedAt %q is in the future", raw)
				}
				return ""
			},
		},
	},
}
