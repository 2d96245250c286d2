package stationclient

import (
	"strings"
	"testing"
)

func intPtr(i int) *int { return &i }

func TestValidateNetworkUpdate(t *testing.T) {
	tests := []struct {
		name         string
		update       NetworkUpdate
		wantWarnings int
		wantErrors   int
	}{
		{
			name:   "valid wpa network",
			update: NetworkUpdate{Slot: intPtr(0), SSID: String("HomeNet"), Password: String("correct horse")},
		},
		{
			name:   "open network",
			update: NetworkUpdate{Slot: intPtr(1), SSID: String("Cafe"), Password: String("")},
		},
		{
			name:   "clear slot",
			update: NetworkUpdate{Slot: intPtr(1), SSID: String("")},
		},
		{
			name:       "slot out of range",
			update:     NetworkUpdate{Slot: intPtr(2), SSID: String("HomeNet")},
			wantErrors: 1,
		},
		{
			name:       "negative slot",
			update:     NetworkUpdate{Slot: intPtr(-1), SSID: String("HomeNet")},
			wantErrors: 1,
		},
		{
			name:       "ssid too long",
			update:     NetworkUpdate{Slot: intPtr(0), SSID: String(strings.Repeat("s", 32))},
			wantErrors: 1,
		},
		{
			name:       "reserved ssid",
			update:     NetworkUpdate{Slot: intPtr(0), SSID: String("blank")},
			wantErrors: 1,
		},
		{
			name:         "short password",
			update:       NetworkUpdate{Slot: intPtr(0), SSID: String("HomeNet"), Password: String("pw")},
			wantWarnings: 1,
		},
		{
			name:       "password without ssid",
			update:     NetworkUpdate{Slot: intPtr(0), Password: String("correct horse")},
			wantErrors: 1,
		},
		{
			name:       "password too long",
			update:     NetworkUpdate{Slot: intPtr(0), SSID: String("HomeNet"), Password: String(strings.Repeat("p", 64))},
			wantErrors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings, critical := SeparateWarningsAndErrors(ValidateNetworkUpdate(tt.update, 2))
			if len(warnings) != tt.wantWarnings {
				t.Errorf("warnings = %v, want %d", warnings, tt.wantWarnings)
			}
			if len(critical) != tt.wantErrors {
				t.Errorf("errors = %v, want %d", critical, tt.wantErrors)
			}
			for _, err := range append(warnings, critical...) {
				if !IsValidationError(err) {
					t.Errorf("%v should be a validation error", err)
				}
			}
		})
	}
}

func TestFormatValidationErrors(t *testing.T) {
	if got := FormatValidationErrors(nil); got != "No validation errors" {
		t.Errorf("FormatValidationErrors(nil) = %q", got)
	}

	errs := ValidateNetworkUpdate(NetworkUpdate{Slot: intPtr(5), SSID: String(strings.Repeat("s", 40))}, 2)
	got := FormatValidationErrors(errs)
	if !strings.Contains(got, "2 error(s)") {
		t.Errorf("missing count in %q", got)
	}
	if !strings.Contains(got, "1. slot 5 out of range") || !strings.Contains(got, "2. SSID too long") {
		t.Errorf("unexpected list:\n%s", got)
	}
}
