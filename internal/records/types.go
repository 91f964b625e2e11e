// Package records defines the strongly typed record shapes the load engine accepts.
//
// Every entity kind has its own struct. Optional columns are pointers (or a nil
// Multilang): nil means "not supplied by this export" and the stored value is left
// untouched on merge, while a non-nil value fully overwrites the stored column.
package records

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidDate is returned when a date string matches none of the accepted layouts.
var ErrInvalidDate = errors.New("invalid date")

const isoDate = "2006-01-02"

// dateLayouts are tried in order. ISO first, then the day-first forms found in exports.
var dateLayouts = []string{
	isoDate,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02.01.2006",
	"02-01-2006",
}

type (
	// Date is a calendar date without time-of-day, always normalized to UTC midnight.
	Date struct {
		time.Time
	}

	// Multilang maps a language code ("int", "no", "en") to text.
	// Stored as JSONB. A nil Multilang means the column was not supplied.
	Multilang map[string]string
)

// NewDate builds a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses ISO dates first and falls back to day-first layouts.
//
// Examples:
//   - ParseDate("2024-01-31") → 2024-01-31
//   - ParseDate("31/01/2024") → 2024-01-31
//   - ParseDate("2024-01-31T10:00:00Z") → 2024-01-31
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: empty string", ErrInvalidDate)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}

	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// MustParseDate is ParseDate for literals in tests and fixtures. It panics on error.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}

	return d
}

// String returns the ISO representation, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}

	return d.Format(isoDate)
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}

	return json.Marshal(d.String())
}

// UnmarshalJSON accepts any layout ParseDate accepts. null leaves the zero date.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}

		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDate, err)
	}

	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

// Value implements driver.Valuer so dates bind directly to DATE columns.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}

	return d.String(), nil
}

// Scan implements sql.Scanner for DATE columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = DateOf(v)
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidDate, src)
	}

	return nil
}

func (d *Date) scanString(s string) error {
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

// ParseMultilang parses the export's "lang:text|lang:text" encoding.
//
// Segments without a language prefix are stored under "int" (the export's default language).
// Blank input yields nil.
//
// Examples:
//   - ParseMultilang("int:Consultant|no:Konsulent") → {"int": "Consultant", "no": "Konsulent"}
//   - ParseMultilang("Consultant") → {"int": "Consultant"}
func ParseMultilang(s string) Multilang {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	m := make(Multilang)

	for _, segment := range strings.Split(s, "|") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		lang, text, found := strings.Cut(segment, ":")
		if !found || len(lang) > 5 || strings.ContainsAny(lang, " \t") {
			m["int"] = segment

			continue
		}

		m[strings.ToLower(strings.TrimSpace(lang))] = strings.TrimSpace(text)
	}

	if len(m) == 0 {
		return nil
	}

	return m
}

// Text returns the text for lang, falling back to "int" and then to the alphabetically first entry.
func (m Multilang) Text(lang string) string {
	if v, ok := m[lang]; ok && v != "" {
		return v
	}

	if v, ok := m["int"]; ok && v != "" {
		return v
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if m[k] != "" {
			return m[k]
		}
	}

	return ""
}

// UnmarshalJSON accepts either an object ({"int": "..."}) or the encoded string form.
func (m *Multilang) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*m = nil

		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*m = ParseMultilang(s)

		return nil
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = raw

	return nil
}

// Value implements driver.Valuer, encoding the map as JSON text for JSONB columns.
func (m Multilang) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}

	b, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}

	return string(b), nil
}
