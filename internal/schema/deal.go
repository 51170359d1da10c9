package schema

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Deal enum tables.
var (
	DealStages = []string{"lead", "qualified", "proposal", "negotiation", "closed_won", "closed_lost"}
	DealTypes  = []string{"new_business", "existing_business", "renewal", "upsell"}
)

// LineItemTolerance is the allowed absolute difference between value and
// quantity x unitPrice when all three are present.
const LineItemTolerance = 0.01

// Deal is the schema for deal records. The natural key is the normalized
// title.
var Deal = &Schema{
	Kind:     "deal",
	KeyField: "title",
	Fields: []Field{
		{Name: "title", Type: FieldText, Required: true, MaxLen: 200, Example: "Acme annual license"},
		{Name: "value", Type: FieldNumeric, Required: true, Example: "12000"},
		{Name: "expectedCloseDate", Type: FieldDate, Required: true, Example: "2026-11-30"},
		{Name: "description", Type: FieldLongText, MaxLen: 5000, Example: "Two-year renewal with expansion seats."},
		{Name: "currency", Type: FieldText, MaxLen: 3, Example: "USD"},
		{Name: "stage", Type: FieldEnum, EnumValues: DealStages, Example: "proposal"},
		{Name: "priority", Type: FieldEnum, EnumValues: Priorities, Example: "high"},
		{Name: "source", Type: FieldText, MaxLen: 100, Example: "referral"},
		{Name: "dealType", Type: FieldEnum, EnumValues: DealTypes, Example: "renewal"},
		{Name: "quantity", Type: FieldNumeric, Example: "40"},
		{Name: "unitPrice", Type: FieldNumeric, Example: "300"},
		{Name: "tags", Type: FieldList, MaxLen: 50, Example: "q4, enterprise"},
		{Name: "notes", Type: FieldLongText, MaxLen: 5000, Example: "Waiting on legal review."},
		{Name: "closeReason", Type: FieldText, MaxLen: 500, Example: "Best feature fit"},
		{Name: "lostReason", Type: FieldText, MaxLen: 500, Example: ""},
		{Name: "competitorName", Type: FieldText, MaxLen: 100, Example: ""},
	},
	Cross: []CrossRule{
		{
			// The headline value is the line-item total: quantity x unitPrice
			// must reconcile within a cent when both are given.
			Name:  "value matches quantity x unitPrice",
			Modes: []Mode{ModeCreate, ModeUpdate, ModeImport},
			Check: func(fields map[string]string, _ time.Time) string {
				qRaw, pRaw, vRaw := fields["quantity"], fields["unitPrice"], fields["value"]
				if qRaw == "" || pRaw == "" || vRaw == "" {
					return ""
				}
				q, okQ := ParseNumber(qRaw)
				p, okP := ParseNumber(pRaw)
				v, okV := ParseNumber(vRaw)
				if !okQ || !okP || !okV {
					return ""
				}
				if math.Abs(q*p-v) > LineItemTolerance {
					return fmt.Sprintf("value %s does not equal quantity %s x unitPrice %s", vRaw, qRaw, pRaw)
				}
				return ""
			},
		},
		{
			// An open deal's expected close must not already be past.
			Name:  "expectedCloseDate not in past",
			Modes: []Mode{ModeCreate},
			Check: func(fields map[string]string, now time.Time) string {
				raw := fields["expectedCloseDate"]
				if raw == "" {
					return ""
				}
				t, ok := ParseDate(raw)
				if !ok {
					return ""
				}
				// Compare calendar dates, not instants: parsed dates are UTC
				// midnight, and Truncate works on the absolute epoch.
				y, m, d := now.Date()
				today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
				if t.Before(today) {
					return fmt.Sprintf("expectedCloseDate %q is in the past", raw)
				}
				return ""
			},
		},
		{
			// Losing a deal without saying why makes the pipeline useless for
			// review. Imports tolerate missing reasons from legacy systems.
			Name:  "closed_lost requires lostReason",
			Modes: []Mode{ModeCreate, ModeUpdate},
			Check: func(fields map[string]string, _ time.Time) string {
				if !strings.EqualFold(fields["stage"], "closed_lost") {
					return ""
				}
				if strings.TrimSpace(fields["lostReason"]) == "" {
					return "stage closed_lost requires a lostReason"
				}
				return ""
			},
		},
		{
			// Won deals carry the same obligation on their side of the ledger.
			Name:  "closed_won requires closeReason",
			Modes: []Mode{ModeCreate, ModeUpdate},
			Check: func(fields map[string]string, _ time.Time) string {
				if !strings.EqualFold(fields["stage"], "closed_won") {
					return ""
				}
				if strings.TrimSpace(fields["closeReason"]) == "" {
					return "stage closed_won requires a closeReason"
				}
				return ""
			},
		},
	},
}
