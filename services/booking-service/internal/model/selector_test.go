package model

import "testing"

func TestParseStaffSelector(t *testing.T) {
	cases := map[string]StaffSelector{
		"":        AnyStaff,
		"  ":      AnyStaff,
		"ANY":     AnyStaff,
		"any":     AnyStaff,
		" st-42 ": "st-42",
	}
	for in, want := range cases {
		if got := ParseStaffSelector(in); got != want {
			t.Fatalf("ParseStaffSelector(%q) = %q, want %q", in, got, want)
		}
	}
	if ParseStaffSelector("st-42").StaffID() != "st-42" || AnyStaff.StaffID() != "" {
		t.Fatal("StaffID mismatch")
	}
}
