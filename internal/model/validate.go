package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	MsgIncomplete = "You haven't provided enough information, please fill in the form"
	MsgTimeOrder  = "An appointment can't finish before it starts"
	MsgTimeFormat = "Times must look like HH:00"
	MsgOrder      = "Order must be a whole number"
)

// ValidationError is a user-facing problem with submitted fields.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validate checks submitted fields before anything is sent.
// Every form field of the kind, and every other submitted value, must be non-blank.
func Validate(kind Kind, f Fields) error {
	for _, name := range kind.FormFields() {
		if strings.TrimSpace(f[name]) == "" {
			return &ValidationError{Field: name, Message: MsgIncomplete}
		}
	}
	for name, v := range f {
		if strings.TrimSpace(v) == "" {
			return &ValidationError{Field: name, Message: MsgIncomplete}
		}
	}

	switch kind {
	case KindTarget:
		if _, err := strconv.Atoi(strings.TrimSpace(f[FieldOrder])); err != nil {
			return &ValidationError{Field: FieldOrder, Message: MsgOrder}
		}
	case KindAppointment:
		from, err := ParseHour(f[FieldTimeFrom])
		if err != nil {
			return &ValidationError{Field: FieldTimeFrom, Message: MsgTimeFormat}
		}
		until, err := ParseHour(f[FieldTimeUntil])
		if err != nil {
			return &ValidationError{Field: FieldTimeUntil, Message: MsgTimeFormat}
		}
		if until <= from {
			return &ValidationError{Field: FieldTimeUntil, Message: MsgTimeOrder}
		}
	}
	return nil
}

var clockLayouts = []string{"15:04", "15:04:05", "15"}

// ParseClock returns minutes since midnight for "HH", "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("parse time %q", s)
}

// ParseHour is ParseClock restricted to whole hours: "09:00" and "09:00:00" pass, "09:30" does not.
func ParseHour(s string) (int, error) {
	s = strings.TrimSpace(s)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Minute() != 0 || t.Second() != 0 {
				return 0, fmt.Errorf("time %q is not on the hour", s)
			}
			return t.Hour() * 60, nil
		}
	}
	return 0, fmt.Errorf("parse time %q", s)
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClock rewrites a parseable time as "HH:MM" and leaves anything else alone.
func NormalizeClock(s string) string {
	m, err := ParseClock(s)
	if err != nil {
		return s
	}
	return FormatClock(m)
}
