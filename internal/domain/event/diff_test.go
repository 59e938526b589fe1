package event

import (
	"reflect"
	"testing"
)

type sample struct {
	Name   string   `json:"name"`
	Amount string   `json:"amount"`
	IBAN   string   `json:"iban"`
	Tags   []string `json:"tags"`
}

func TestDiff(t *testing.T) {
	before := sample{Name: "Jane", Amount: "100", IBAN: "GB00", Tags: []string{"a"}}

	tests := []struct {
		name   string
		after  sample
		fields []string
	}{
		{"no change", before, []string{}},
		{"one field", sample{Name: "Jane", Amount: "120", IBAN: "GB00", Tags: []string{"a"}}, []string{"amount"}},
		{"two fields", sample{Name: "Jo", Amount: "100", IBAN: "GB11", Tags: []string{"a"}}, []string{"iban", "name"}},
		{"nested change collapses to top level", sample{Name: "Jane", Amount: "100", IBAN: "GB00", Tags: []string{"a", "b"}}, []string{"tags"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes, err := Diff(before, tt.after)
			if err != nil {
				t.Fatalf("Diff() error = %v", err)
			}
			if got := changes.Fields(); !reflect.DeepEqual(got, tt.fields) {
				t.Errorf("Fields() = %v, want %v", got, tt.fields)
			}
		})
	}
}

func TestDiff_RecordsBeforeAndAfter(t *testing.T) {
	changes, err := Diff(sample{Amount: "100"}, sample{Amount: "150"})
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if changes["amount"].From != "100" || changes["amount"].To != "150" {
		t.Errorf("amount change = %+v", changes["amount"])
	}
}
