package model

import "strings"

// StaffSelector is either a staff member id or AnyStaff.
type StaffSelector string

// AnyStaff means the client has no preference.
const AnyStaff StaffSelector = "any"

func ParseStaffSelector(raw string) StaffSelector {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, string(AnyStaff)) {
		return AnyStaff
	}
	return StaffSelector(raw)
}

func (s StaffSelector) IsAny() bool { return s == AnyStaff }

// StaffID returns the requested member, or "" for AnyStaff.
func (s StaffSelector) StaffID() string {
	if s.IsAny() {
		return ""
	}
	return string(s)
}
