package rtc

import (
	"time"

	"rtcsync-go/x/mathx"
)

// Supported year window. The chips store a two-digit year with no century bit.
const (
	MinYear = 2000
	MaxYear = 2099
)

// CalendarTime is a wall-clock instant at one-second resolution, without zone.
type CalendarTime struct {
	Year    int // full year; only MinYear..MaxYear encodes
	Month   uint8 // 1..12
	Day     uint8 // 1..31, consistent with month and leap year
	Weekday uint8 // 0..6, Sunday = 0
	Hour    uint8 // 0..23
	Minute  uint8
	Second  uint8
}

// FromTime converts t using its own location. Sub-second components are
// truncated, never rounded.
func FromTime(t time.Time) CalendarTime {
	return CalendarTime{
		Year:    t.Year(),
		Month:   uint8(t.Month()),
		Day:     uint8(t.Day()),
		Weekday: uint8(t.Weekday()),
		Hour:    uint8(t.Hour()),
		Minute:  uint8(t.Minute()),
		Second:  uint8(t.Second()),
	}
}

// Time returns the instant in loc (UTC if nil).
func (c CalendarTime) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(c.Year, time.Month(c.Month), int(c.Day),
		int(c.Hour), int(c.Minute), int(c.Second), 0, loc)
}

// Validate checks every field. Errors match ErrInvalidInput.
func (c CalendarTime) Validate() error {
	var re *RangeError
	switch {
	case !mathx.Between(c.Year, MinYear, MaxYear):
		re = &RangeError{"year", c.Year}
	case !mathx.Between(c.Month, 1, 12):
		re = &RangeError{"month", int(c.Month)}
	case !mathx.Between(c.Day, 1, DaysIn(c.Year, c.Month)):
		re = &RangeError{"day", int(c.Day)}
	case c.Weekday > 6:
		re = &RangeError{"weekday", int(c.Weekday)}
	case c.Hour > 23:
		re = &RangeError{"hour", int(c.Hour)}
	case c.Minute > 59:
		re = &RangeError{"minute", int(c.Minute)}
	case c.Second > 59:
		re = &RangeError{"second", int(c.Second)}
	default:
		return nil
	}
	return &Error{Kind: ErrInvalidInput, Op: "validate", Err: re}
}

func (c CalendarTime) String() string {
	return c.Time(time.UTC).Format("2006-01-02 15:04:05")
}

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in month (0 for an invalid month).
func DaysIn(year int, month uint8) uint8 {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if IsLeap(year) {
			return 29
		}
		return 28
	}
	return 0
}
