package model

import (
	"fmt"
	"strings"
)

// TimeSlot selects which half of the daily service an assignment applies to.
type TimeSlot int

const (
	SlotAM TimeSlot = iota
	SlotPM
	SlotBoth
)

// String returns a human-readable representation of the time slot.
func (s TimeSlot) String() string {
	switch s {
	case SlotAM:
		return "AM"
	case SlotPM:
		return "PM"
	case SlotBoth:
		return "Both"
	default:
		return "unknown"
	}
}

// ParseTimeSlot accepts "AM", "PM" or "Both" in any case.
func ParseTimeSlot(s string) (TimeSlot, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "am":
		return SlotAM, nil
	case "pm":
		return SlotPM, nil
	case "both":
		return SlotBoth, nil
	default:
		return 0, fmt.Errorf("unknown time slot %q", s)
	}
}

// IncludesAM reports whether the slot covers the morning run.
func (s TimeSlot) IncludesAM() bool { return s == SlotAM || s == SlotBoth }

// IncludesPM reports whether the slot covers the afternoon run.
func (s TimeSlot) IncludesPM() bool { return s == SlotPM || s == SlotBoth }

// MarshalText implements encoding.TextMarshaler.
func (s TimeSlot) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TimeSlot) UnmarshalText(b []byte) error {
	v, err := ParseTimeSlot(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
