package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DateLayout is the wire and storage layout for calendar dates.
const DateLayout = "2006-01-02"

var yearMonthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ErrInvalidYearMonth is returned when a year-month key is not in YYYY-MM form.
var ErrInvalidYearMonth = errors.New("yearMonth must be in YYYY-MM format")

// YearMonth is a calendar-month filter key.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	if !yearMonthPattern.MatchString(s) {
		return YearMonth{}, ErrInvalidYearMonth
	}
	y, _ := strconv.Atoi(s[:4])
	m, _ := strconv.Atoi(s[5:])
	return YearMonth{Year: y, Month: time.Month(m)}, nil
}

// YearMonthOf returns the month containing t (in t's location).
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Bounds returns the first and last calendar day of the month, both inclusive, at UTC midnight.
func (ym YearMonth) Bounds() (first, last time.Time) {
	first = time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
	last = first.AddDate(0, 1, -1)
	return first, last
}

// Contains reports whether the calendar date d falls within the month.
func (ym YearMonth) Contains(d time.Time) bool {
	return d.Year() == ym.Year && d.Month() == ym.Month
}
