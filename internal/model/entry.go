package model

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind selects one of the two per-day collections a user keeps.
type Kind string

const (
	KindTarget      Kind = "target"
	KindAppointment Kind = "appointments"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindTarget, KindAppointment}

// Field names shared by rendered items, the entry form and request bodies.
const (
	FieldID        = "id"
	FieldOrder     = "order"
	FieldTitle     = "title"
	FieldCompleted = "completed"
	FieldTimeFrom  = "time_from"
	FieldTimeUntil = "time_until"
	FieldDate      = "date"

	// transport-only, never sent in a body
	FieldCSRF = "csrfmiddlewaretoken"
	FieldUser = "user"
)

// ParseKind accepts the resource name or a friendly alias.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "target", "targets":
		return KindTarget, nil
	case "appointment", "appointments", "appts", "schedule":
		return KindAppointment, nil
	}
	return "", fmt.Errorf("unknown entry kind %q", s)
}

// Resource is the path segment used by the backend.
func (k Kind) Resource() string { return string(k) }

// Label is the user-facing name used in "saved" notices.
func (k Kind) Label() string {
	if k == KindAppointment {
		return "Appointment entry"
	}
	return "Day target entry"
}

// Noun is the singular used in logs and error wrapping.
func (k Kind) Noun() string {
	if k == KindAppointment {
		return "appointment"
	}
	return "target"
}

// FormFields are the editable fields of the entry form, in focus order.
func (k Kind) FormFields() []string {
	if k == KindAppointment {
		return []string{FieldTitle, FieldTimeFrom, FieldTimeUntil}
	}
	return []string{FieldTitle, FieldOrder}
}

// Toggleable reports whether entries of this kind carry a completed flag.
func (k Kind) Toggleable() bool { return k == KindTarget }

// Flag is a boolean that also accepts the backend's "True"/"False" strings.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	switch strings.ToLower(s) {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("completed: unexpected value %s", b)
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) { return json.Marshal(bool(f)) }

// ParseBool reads a boolean in any of the spellings the form or backend use.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// BackendBool renders a boolean the way the backend expects it in a body.
func BackendBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Entry is one target or appointment of a user's day.
// ID is zero for an entry the backend hasn't created yet.
type Entry struct {
	Kind      Kind   `json:"-"`
	ID        int    `json:"id,omitempty"`
	Order     int    `json:"order"`
	Title     string `json:"title"`
	Completed Flag   `json:"completed"`
	TimeFrom  string `json:"time_from,omitempty"`
	TimeUntil string `json:"time_until,omitempty"`
	Date      string `json:"date,omitempty"`
}

// Draft reports whether the entry is still waiting for a backend id.
func (e Entry) Draft() bool { return e.ID == 0 }

// Attrs exposes the entry's fields under the same names the entry form uses.
func (e Entry) Attrs() Fields {
	f := Fields{
		FieldTitle: e.Title,
		FieldOrder: strconv.Itoa(e.Order),
	}
	if e.ID != 0 {
		f[FieldID] = strconv.Itoa(e.ID)
	}
	switch e.Kind {
	case KindTarget:
		f[FieldCompleted] = strconv.FormatBool(bool(e.Completed))
	case KindAppointment:
		f[FieldTimeFrom] = NormalizeClock(e.TimeFrom)
		f[FieldTimeUntil] = NormalizeClock(e.TimeUntil)
		if e.Date != "" {
			f[FieldDate] = e.Date
		}
	}
	return f
}

// SortByOrder orders entries by ascending Order, keeping ties in input order.
func SortByOrder(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int { return cmp.Compare(a.Order, b.Order) })
}

// Find returns the entry with the given id.
func Find(entries []Entry, id int) (Entry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Fields is a flat name/value set, as submitted by the entry form.
type Fields map[string]string

// Clone returns an independent copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// WithoutTransport drops the csrf token and user identifier.
func (f Fields) WithoutTransport() Fields {
	out := f.Clone()
	delete(out, FieldCSRF)
	delete(out, FieldUser)
	return out
}

// Payload builds the request body for a create or update of the given kind.
// The id travels in the path, never in the body.
func Payload(kind Kind, f Fields) map[string]string {
	body := make(map[string]string, len(f))
	for k, v := range f.WithoutTransport() {
		if k == FieldID {
			continue
		}
		body[k] = strings.TrimSpace(v)
	}
	switch kind {
	case KindTarget:
		if v, ok := body[FieldCompleted]; ok {
			body[FieldCompleted] = BackendBool(ParseBool(v))
		}
		delete(body, FieldTimeFrom)
		delete(body, FieldTimeUntil)
		delete(body, FieldDate)
	case KindAppointment:
		delete(body, FieldCompleted)
		delete(body, FieldOrder)
	}
	return body
}
