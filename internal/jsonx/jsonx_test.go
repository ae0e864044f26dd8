package jsonx

import "testing"

func TestParseObject_Strict(t *testing.T) {
	got, err := ParseObject(`{"city":"Rome","days":3}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["city"] != "Rome" {
		t.Errorf("city: got %v", got["city"])
	}
	if got["days"] != float64(3) {
		t.Errorf("days: got %v", got["days"])
	}
}

func TestParseObject_RepairsSingleQuotes(t *testing.T) {
	got, err := ParseObject(`{city: 'Rome'}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["city"] != "Rome" {
		t.Errorf("city: got %v", got["city"])
	}
}

func TestParseObject_Empty(t *testing.T) {
	got, err := ParseObject("  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
}

func TestParseObjectLenient_DegradesToEmpty(t *testing.T) {
	got := ParseObjectLenient(`"just a string"`)
	if len(got) != 0 {
		t.Errorf("expected empty map for non-object input, got %v", got)
	}
}
