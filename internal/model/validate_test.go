package model

import (
	"reflect"
	"strconv"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestValidateItemInput(t *testing.T) {
	tests := []struct {
		name      string
		input     ItemInput
		wantField string
	}{
		{"valid", ItemInput{Name: "Laptop", Description: strPtr("Dell XPS")}, ""},
		{"valid without description", ItemInput{Name: "Laptop"}, ""},
		{"empty description allowed", ItemInput{Name: "Laptop", Description: strPtr("")}, ""},
		{"name at limit", ItemInput{Name: strings.Repeat("a", MaxNameLength)}, ""},
		{"multibyte name at limit", ItemInput{Name: strings.Repeat("č", MaxNameLength)}, ""},
		{"missing name", ItemInput{}, "name"},
		{"name too long", ItemInput{Name: strings.Repeat("a", MaxNameLength+1)}, "name"},
		{"description at limit", ItemInput{Name: "x", Description: strPtr(strings.Repeat("d", MaxDescriptionLength))}, ""},
		{"description too long", ItemInput{Name: "x", Description: strPtr(strings.Repeat("d", MaxDescriptionLength+1))}, "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.input)
			if tt.wantField == "" {
				if errs != nil {
					t.Fatalf("expected no errors, got %+v", errs)
				}
				return
			}
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %+v", errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, errs[0].Field)
			}
			if errs[0].Message == "" {
				t.Error("expected a message")
			}
		})
	}
}

func TestItemInputTagsMatchLimits(t *testing.T) {
	limits := map[string]int{
		"Name":        MaxNameLength,
		"Description": MaxDescriptionLength,
	}

	typ := reflect.TypeOf(ItemInput{})
	for field, want := range limits {
		f, ok := typ.FieldByName(field)
		if !ok {
			t.Fatalf("ItemInput has no field %s", field)
		}
		var got string
		for _, rule := range strings.Split(f.Tag.Get("validate"), ",") {
			if v, ok := strings.CutPrefix(rule, "max="); ok {
				got = v
			}
		}
		if got != strconv.Itoa(want) {
			t.Errorf("%s: validate max=%q, limit constant is %d", field, got, want)
		}
	}
}
