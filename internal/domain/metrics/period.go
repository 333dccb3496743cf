package metrics

import (
	"fmt"
	"strings"
	"time"
)

const periodLayout = "2006-01"

// Period is one calendar month of reporting time. Periods compare by value
// and are safe map keys.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses the wire format "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// PeriodOf returns the period containing t (in UTC).
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

// Start returns the first instant of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following period in UTC. Rows belong
// to the period when Start <= t < End.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Previous returns the immediately preceding period of equal length, used for
// trend comparison.
func (p Period) Previous() Period {
	return PeriodOf(p.Start().AddDate(0, -1, 0))
}

func (p Period) String() string {
	return p.Start().Format(periodLayout)
}

// MarshalJSON renders the wire format "YYYY-MM".
func (p Period) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON parses the wire format "YYYY-MM".
func (p *Period) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParsePeriod(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
