package core

import (
	"reflect"
	"testing"

	"github.com/crmkit/importer/internal/schema"
)

// ----------------------------------------------------------------------------
// TransformRow Tests
// ----------------------------------------------------------------------------

func TestTransformRow_Scalars(t *testing.T) {
	raw := map[string]string{
		"firstName": "  Ada  ",
		"lastName":  "Lovelace",
		"email":     "ada@example.com",
		"company":   "",
	}

	e := TransformRow(raw, schema.Contact)

	if e.Kind != "contact" {
		t.Errorf("Kind = %q, want contact", e.Kind)
	}
	if e.Fields["firstName"] != "Ada" {
		t.Errorf("firstName = %q, want trimmed value", e.Fields["firstName"])
	}
	if _, ok := e.Fields["company"]; ok {
		t.Error("empty scalar should not be stored")
	}
}

func TestTransformRow_GroupAssembly(t *testing.T) {
	raw := map[string]string{
		"email": "ada@example.com",
		"city":  "Springfield",
		"state": "IL",
	}

	e := TransformRow(raw, schema.Contact)

	addr, ok := e.Groups["address"]
	if !ok {
		t.Fatal("address group not assembled")
	}
	if addr["city"] != "Springfield" || addr["state"] != "IL" {
		t.Errorf("address = %v", addr)
	}
	if _, ok := e.Groups["socialMedia"]; ok {
		t.Error("socialMedia group assembled with no sub-field values")
	}
}

func TestTransformRow_GroupOmittedWhenAllEmpty(t *testing.T) {
	raw := map[string]string{
		"email":  "ada@example.com",
		"street": "",
		"city":   "  ",
	}

	e := TransformRow(raw, schema.Contact)
	if len(e.Groups) != 0 {
		t.Errorf("Groups = %v, want none", e.Groups)
	}
}

func TestTransformRow_ListSplitting(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "trimmed elements",
			input: "vip, conference-2025 ,beta",
			want:  []string{"vip", "conference-2025", "beta"},
		},
		{
			name:  "empties dropped",
			input: "a,,b, ,c",
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "duplicates preserved for the sanitizer",
			input: "x,x,y",
			want:  []string{"x", "x", "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := TransformRow(map[string]string{"tags": tt.input}, schema.Contact)
			if !reflect.DeepEqual(e.Lists["tags"], tt.want) {
				t.Errorf("tags = %v, want %v", e.Lists["tags"], tt.want)
			}
		})
	}
}

func TestTransformRow_EmptyListOmitted(t *testing.T) {
	e := TransformRow(map[string]string{"tags": " , , "}, schema.Contact)
	if _, ok := e.Lists["tags"]; ok {
		t.Error("all-empty list should not be stored")
	}
}

// ----------------------------------------------------------------------------
// Entity Tests
// ----------------------------------------------------------------------------

func TestEntityIsEmpty(t *testing.T) {
	e := NewEntity("contact")
	if !e.IsEmpty() {
		t.Error("fresh entity should be empty")
	}

	e.Fields["firstName"] = "Ada"
	if e.IsEmpty() {
		t.Error("entity with a field should not be empty")
	}
}

func TestEntityNaturalKey(t *testing.T) {
	e := NewEntity("contact")
	e.Fields["email"] = "  Ada@Example.COM "
	if got := e.NaturalKey(schema.Contact); got != "ada@example.com" {
		t.Errorf("NaturalKey = %q", got)
	}

	e = NewEntity("contact")
	if got := e.NaturalKey(schema.Contact); got != "" {
		t.Errorf("NaturalKey of empty entity = %q, want empty", got)
	}
}

func TestEntityClone_Independent(t *testing.T) {
	e := NewEntity("contact")
	e.Fields["email"] = "ada@example.com"
	e.Groups["address"] = map[string]string{"city": "Springfield"}
	e.Lists["tags"] = []string{"vip"}

	c := e.Clone()
	c.Fields["email"] = "changed@example.com"
	c.Groups["address"]["city"] = "Shelbyville"
	c.Lists["tags"][0] = "changed"

	if e.Fields["email"] != "ada@example.com" ||
		e.Groups["address"]["city"] != "Springfield" ||
		e.Lists["tags"][0] != "vip" {
		t.Error("Clone shares state with the original")
	}
}
