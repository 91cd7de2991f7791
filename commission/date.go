package commission

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// =============================================================================
// DATE - Calendar day, no time of day
// =============================================================================

// DateLayout is the canonical wire and storage format.
const DateLayout = "2006-01-02"

// Date is a calendar day in UTC. The zero value means "not set".
type Date struct {
	Time time.Time
}

// Accepted input layouts, tried in order.
var dateLayouts = []string{
	DateLayout,
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now())
}

// ParseDate reads ISO and US-style dates. Empty input is the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, eris.Errorf("commission: unrecognised date %q", s)
}

// MustParseDate is ParseDate for literals in tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) IsZero() bool { return d.Time.IsZero() }

// Equal compares calendar days. Two unset dates are equal.
func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// AddMonths moves n calendar months. A day past the end of the target month
// is clamped to its last day: Aug 31 + 6 months is Feb 28.
func (d Date) AddMonths(n int) Date {
	y, m, day := d.Time.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := first.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return NewDate(first.Year(), first.Month(), day)
}

// DaysUntil returns whole days from d to other (negative if other is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// Compact renders yyyymmdd, used in statement ledger ids.
func (d Date) Compact() string {
	return d.Time.Format("20060102")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return eris.Wrap(err, "commission: decode date")
	}
	if s == nil {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
