package stationclient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/weatherbird/provisioning/internal/record"
)

// warningPrefix marks a validation result that does not block the update.
const warningPrefix = "warning: "

func newValidationError(message string) *StationError {
	return &StationError{Type: ErrTypeValidation, Message: message}
}

// ValidateSSID checks a network name against the stored field size.
// An empty name clears the slot and is valid.
func ValidateSSID(ssid string) error {
	if ssid == record.NoConfig {
		return newValidationError(fmt.Sprintf("%q is reserved for empty slots", record.NoConfig))
	}
	if limit := record.SSIDFieldLen - 1; len(ssid) > limit {
		return newValidationError(fmt.Sprintf("SSID too long (max %d bytes): %d bytes", limit, len(ssid)))
	}
	return nil
}

// ValidatePassword checks a network password. The station stores it as
// given; a WPA length mismatch is reported as a warning.
func ValidatePassword(password string) error {
	if limit := record.PasswordFieldLen - 1; len(password) > limit {
		return newValidationError(fmt.Sprintf("password too long (max %d bytes): %d bytes", limit, len(password)))
	}
	if password != "" && len(password) < 8 {
		return newValidationError(fmt.Sprintf("%sWPA passwords have at least 8 characters, got %d", warningPrefix, len(password)))
	}
	return nil
}

// ValidateNetworkUpdate validates an update before it is sent.
// Returns a slice of validation errors (empty if valid).
func ValidateNetworkUpdate(update NetworkUpdate, slots int) []error {
	var errs []error

	if update.Slot != nil {
		if *update.Slot < 0 || (slots > 0 && *update.Slot >= slots) {
			errs = append(errs, newValidationError(fmt.Sprintf("slot %d out of range [0,%d)", *update.Slot, slots)))
		}
	}
	if update.SSID != nil {
		if err := ValidateSSID(*update.SSID); err != nil {
			errs = append(errs, err)
		}
	}
	if update.Password != nil {
		if err := ValidatePassword(*update.Password); err != nil {
			errs = append(errs, err)
		}
	}
	if update.Password != nil && update.SSID == nil {
		errs = append(errs, newValidationError("a password needs an SSID"))
	}
	return errs
}

// IsWarning reports whether a validation error is non-fatal.
func IsWarning(err error) bool {
	return IsValidationError(err) && strings.Contains(err.Error(), warningPrefix)
}

// SeparateWarningsAndErrors splits validation results into warnings and
// errors that prevent the update from being sent.
func SeparateWarningsAndErrors(errs []error) (warnings []error, critical []error) {
	for _, err := range errs {
		if IsWarning(err) {
			warnings = append(warnings, err)
		} else {
			critical = append(critical, err)
		}
	}
	return warnings, critical
}

// FormatValidationErrors formats validation errors as a numbered list.
func FormatValidationErrors(errs []error) string {
	if len(errs) == 0 {
		return "No validation errors"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Network update rejected with %d error(s):\n", len(errs))
	for i, err := range errs {
		msg := err.Error()
		var se *StationError
		if errors.As(err, &se) {
			msg = se.Message
		}
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, msg)
	}
	return sb.String()
}
