package types

import (
	"slices"
	"testing"
)

func TestGrantsEntry(t *testing.T) {
	tests := []struct {
		code ResultCode
		want bool
	}{
		{ResultAllow, true},
		{ResultReclaimed, true},
		{ResultDailyOK, true},
		{ResultSuperAdmin, false},
		{ResultDenyExpired, false},
		{ResultIgnoredDuplicateTap, false},
		{ResultError, false},
		{ResultCode("BOGUS"), false},
	}
	for _, tt := range tests {
		if got := tt.code.GrantsEntry(); got != tt.want {
			t.Errorf("%s.GrantsEntry() = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestEntryCodes(t *testing.T) {
	want := []ResultCode{ResultAllow, ResultAssigned, ResultAllowAutoAssigned, ResultReclaimed, ResultDailyOK}
	if got := EntryCodes(); !slices.Equal(got, want) {
		t.Errorf("EntryCodes() = %v, want %v", got, want)
	}
}

// allCodes and resultFamilies must describe the same closed set.
func TestAllCodesMatchFamilies(t *testing.T) {
	if len(allCodes) != len(resultFamilies) {
		t.Fatalf("allCodes has %d codes, families %d", len(allCodes), len(resultFamilies))
	}
	for _, c := range allCodes {
		if !c.Valid() {
			t.Errorf("%s missing from families", c)
		}
	}
}
