package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrMalformedID is returned when a session identifier cannot be parsed.
var ErrMalformedID = errors.New("malformed session id")

// Period is the half of the day a session belongs to.
type Period string

const (
	AM Period = "AM"
	PM Period = "PM"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	return p == AM || p == PM
}

// ID is the canonical session identifier, DD-MM-YYYY_PERIOD.
type ID string

const (
	dateLayout = "02-01-2006"
	isoLayout  = "2006-01-02"
)

// Derive builds the canonical identifier for a calendar date and period.
func Derive(date time.Time, p Period) ID {
	return ID(date.Format(dateLayout) + "_" + string(p))
}

// Current returns the session for the given wall-clock time: AM before noon, PM after.
func Current(now time.Time) ID {
	if now.Hour() < 12 {
		return Derive(now, AM)
	}
	return Derive(now, PM)
}

// Parse recovers the calendar date and period from an identifier.
// The canonical DD-MM-YYYY date is expected; YYYY-MM-DD is also accepted.
func Parse(id ID) (time.Time, Period, error) {
	datePart, periodPart, ok := strings.Cut(string(id), "_")
	if !ok || datePart == "" || strings.Contains(periodPart, "_") {
		return time.Time{}, "", fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	p := Period(periodPart)
	if !p.Valid() {
		return time.Time{}, "", fmt.Errorf("%w: %q: unknown period", ErrMalformedID, id)
	}
	date, err := time.Parse(dateLayout, datePart)
	if err != nil {
		date, err = time.Parse(isoLayout, datePart)
		if err != nil {
			return time.Time{}, "", fmt.Errorf("%w: %q: bad date", ErrMalformedID, id)
		}
	}
	return date, p, nil
}

// Date is Parse without the period.
func (id ID) Date() (time.Time, error) {
	d, _, err := Parse(id)
	return d, err
}

// Valid reports whether id parses.
func (id ID) Valid() bool {
	_, _, err := Parse(id)
	return err == nil
}

func (id ID) String() string { return string(id) }

// Less orders sessions by calendar date, AM before PM. Both ids must be valid.
func Less(a, b ID) bool {
	da, pa, _ := Parse(a)
	db, pb, _ := Parse(b)
	if !da.Equal(db) {
		return da.Before(db)
	}
	return pa == AM && pb == PM
}

// Sort orders ids chronologically in place. Malformed ids must be filtered first.
func Sort(ids []ID) {
	sort.SliceStable(ids, func(i, j int) bool { return Less(ids[i], ids[j]) })
}

// Within reports whether the session's date lies in [start, end], compared as
// calendar dates.
func Within(id ID, start, end time.Time) (bool, error) {
	d, err := id.Date()
	if err != nil {
		return false, err
	}
	return !d.Before(truncate(start)) && !d.After(truncate(end)), nil
}

// ParseDate accepts a YYYY-MM-DD or DD-MM-YYYY calendar date.
func ParseDate(s string) (time.Time, error) {
	if d, err := time.Parse(isoLayout, s); err == nil {
		return d, nil
	}
	return time.Parse(dateLayout, s)
}

// FormatDate renders a date the way session ids do.
func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
