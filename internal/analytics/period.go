package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fmc-ops/opsdash/internal/result"
)

// Last12Months selects the rolling window ending with the current month.
const Last12Months = "last12months"

const dateLayout = "2006-01-02"

// Period is either one calendar year or the rolling last twelve months.
type Period struct {
	Year   int
	Last12 bool
}

// ParsePeriod reads "last12months" or a four digit year. Blank selects the
// current year.
func ParsePeriod(raw string, now time.Time) (Period, *result.Error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch {
	case raw == "":
		return Period{Year: now.Year()}, nil
	case raw == Last12Months:
		return Period{Last12: true}, nil
	case len(raw) == 4:
		year, err := strconv.Atoi(raw)
		if err == nil && year > 1900 {
			return Period{Year: year}, nil
		}
	}
	return Period{}, result.Invalid("analytics.period", fmt.Sprintf("period must be %s or a year", Last12Months))
}

// String is the canonical query value of p.
func (p Period) String() string {
	if p.Last12 {
		return Last12Months
	}
	return strconv.Itoa(p.Year)
}

// Bucket is one month of a period.
type Bucket struct {
	Label string
	Year  int
	Month time.Month
}

// Buckets lists the months of p in chronological order. Year buckets are
// labelled "Jan".."Dec"; rolling buckets carry the year, as in "Jan 2024".
func (p Period) Buckets(now time.Time) []Bucket {
	out := make([]Bucket, 0, 12)
	if p.Last12 {
		for i := 11; i >= 0; i-- {
			t := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, time.UTC)
			out = append(out, Bucket{Label: t.Format("Jan 2006"), Year: t.Year(), Month: t.Month()})
		}
		return out
	}
	for m := time.January; m <= time.December; m++ {
		t := time.Date(p.Year, m, 1, 0, 0, 0, 0, time.UTC)
		out = append(out, Bucket{Label: t.Format("Jan"), Year: p.Year, Month: m})
	}
	return out
}

// Bounds returns the inclusive YYYY-MM-DD range covered by p.
func (p Period) Bounds(now time.Time) (string, string) {
	if p.Last12 {
		start := time.Date(now.Year(), now.Month()-11, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC)
		return start.Format(dateLayout), end.Format(dateLayout)
	}
	return fmt.Sprintf("%04d-01-01", p.Year), fmt.Sprintf("%04d-12-31", p.Year)
}

// parseDate accepts a date or a timestamp whose first ten characters are a date.
func parseDate(s string) (time.Time, bool) {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	return t, err == nil
}
