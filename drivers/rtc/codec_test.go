package rtc

import (
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

var layouts = []*Layout{&ISL1208, &DS1307}

func TestEncodeScenario(t *testing.T) {
	c := qt.New(t)
	ct := FromTime(time.Date(2024, 3, 15, 9, 5, 0, 0, time.UTC))
	c.Assert(ct.Weekday, qt.Equals, uint8(5))

	isl, err := Encode(&ISL1208, ct)
	c.Assert(err, qt.IsNil)
	c.Assert(isl, qt.Equals, RegisterBlock{0x00, 0x05, 0x09, 0x15, 0x03, 0x24, 0x05, 0x10})

	ds, err := Encode(&DS1307, ct)
	c.Assert(err, qt.IsNil)
	c.Assert(ds, qt.Equals, RegisterBlock{0x00, 0x05, 0x09, 0x06, 0x15, 0x03, 0x24, 0x00})
}

func TestRoundTripSweep(t *testing.T) {
	c := qt.New(t)
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 7*time.Hour + 13*time.Minute + 17*time.Second

	check := func(l *Layout, tm time.Time) {
		in := FromTime(tm)
		blk, err := Encode(l, in)
		c.Assert(err, qt.IsNil, qt.Commentf("%s %v", l.Name, tm))
		out, st, err := Decode(l, blk)
		c.Assert(err, qt.IsNil, qt.Commentf("%s %v", l.Name, tm))
		c.Assert(out, qt.Equals, in, qt.Commentf("%s %v", l.Name, tm))
		c.Assert(st, qt.Equals, StatusFlags{})
	}

	edges := []time.Time{
		start,
		end.Add(-time.Second),
		time.Date(2000, 2, 29, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC),
		time.Date(2096, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC),
	}
	for _, l := range layouts {
		for _, tm := range edges {
			check(l, tm)
		}
		for tm := start; tm.Before(end); tm = tm.Add(step) {
			check(l, tm)
		}
	}
}

func TestInverseRoundTrip(t *testing.T) {
	c := qt.New(t)
	// Valid blocks, including set bits outside the time fields.
	blocks := map[*Layout][]RegisterBlock{
		&ISL1208: {
			{0x59, 0x59, 0x23, 0x31, 0x12, 0x99, 0x06, 0x10},
			{0x00, 0x00, 0x00, 0x29, 0x02, 0x24, 0x04, 0xC1},
			{0x30, 0x15, 0x88, 0x01, 0x01, 0x00, 0x00, 0x00}, // MIL bit set on hour
		},
		&DS1307: {
			{0x59, 0x59, 0x23, 0x07, 0x31, 0x12, 0x99, 0x00},
			{0x00, 0x00, 0x00, 0x01, 0x29, 0x02, 0x24, 0x93},
			{0xC5, 0x15, 0x08, 0x04, 0x01, 0x01, 0x00, 0x10}, // CH set
		},
	}
	for l, list := range blocks {
		for _, b := range list {
			ct, _, err := Decode(l, b)
			c.Assert(err, qt.IsNil, qt.Commentf("%s % x", l.Name, b[:]))
			again, err := Encode(l, ct)
			c.Assert(err, qt.IsNil)
			for _, f := range []Field{l.Second, l.Minute, l.Hour, l.Day, l.Month, l.Year, l.Weekday} {
				c.Assert(again[f.Reg], qt.Equals, b[f.Reg]&f.Mask, qt.Commentf("%s reg %d", l.Name, f.Reg))
			}
		}
	}
}

func TestDecodeRejectsNonBCD(t *testing.T) {
	c := qt.New(t)
	for _, l := range layouts {
		base, err := Encode(l, FromTime(time.Date(2024, 3, 15, 9, 5, 0, 0, time.UTC)))
		c.Assert(err, qt.IsNil)
		for _, f := range []Field{l.Second, l.Minute, l.Hour, l.Day, l.Month, l.Year, l.Weekday} {
			for nib := byte(0x0A); nib <= 0x0F; nib++ {
				b := base
				b[f.Reg] = b[f.Reg]&0xF0 | nib
				_, _, err := Decode(l, b)
				c.Assert(errors.Is(err, ErrDecodeFailure), qt.Equals, true, qt.Commentf("%s reg %d nib %x", l.Name, f.Reg, nib))
				var de *DecodeError
				c.Assert(errors.As(err, &de), qt.Equals, true)
			}
		}
		// High nibbles 10..15 on registers without flag bits.
		for _, f := range []Field{l.Second, l.Minute, l.Hour, l.Day, l.Month, l.Year, l.Weekday} {
			if f.Flags != 0 {
				continue
			}
			for nib := byte(0x0A); nib <= 0x0F; nib++ {
				b := base
				b[f.Reg] = nib<<4 | b[f.Reg]&0x0F
				_, _, err := Decode(l, b)
				var de *DecodeError
				c.Assert(errors.As(err, &de), qt.Equals, true, qt.Commentf("%s reg %d byte %#x", l.Name, f.Reg, b[f.Reg]))
				c.Assert(de.BCD, qt.Equals, true)
			}
		}
	}
}

func TestDecodeStrayBits(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		name string
		l    *Layout
		blk  RegisterBlock
		reg  string
	}{
		{"isl1208 month 0xA3", &ISL1208, RegisterBlock{0x00, 0x05, 0x09, 0x15, 0xA3, 0x24, 0x05, 0x00}, "month"},
		{"isl1208 seconds 0xB0", &ISL1208, RegisterBlock{0xB0, 0x05, 0x09, 0x15, 0x03, 0x24, 0x05, 0x00}, "seconds"},
		{"isl1208 seconds bit 7", &ISL1208, RegisterBlock{0x80, 0x05, 0x09, 0x15, 0x03, 0x24, 0x05, 0x00}, "seconds"},
		{"isl1208 hour bit 6", &ISL1208, RegisterBlock{0x00, 0x05, 0x49, 0x15, 0x03, 0x24, 0x05, 0x00}, "hours"},
		{"ds1307 hour bit 7", &DS1307, RegisterBlock{0x00, 0x05, 0x89, 0x06, 0x15, 0x03, 0x24, 0x00}, "hours"},
		{"ds1307 month 0x43", &DS1307, RegisterBlock{0x00, 0x05, 0x09, 0x06, 0x15, 0x43, 0x24, 0x00}, "month"},
	}
	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			_, _, err := Decode(tt.l, tt.blk)
			var de *DecodeError
			c.Assert(errors.As(err, &de), qt.Equals, true)
			c.Assert(de.BCD, qt.Equals, true)
			c.Assert(de.Reg, qt.Equals, tt.reg)
		})
	}

	// Documented flag bits do not disturb the value.
	ct, _, err := Decode(&ISL1208, RegisterBlock{0x00, 0x05, 0x89, 0x15, 0x03, 0x24, 0x05, 0x00})
	c.Assert(err, qt.IsNil)
	c.Assert(ct.String(), qt.Equals, "2024-03-15 09:05:00")
	ct, st, err := Decode(&DS1307, RegisterBlock{0xB0, 0x05, 0x09, 0x06, 0x15, 0x03, 0x24, 0x00})
	c.Assert(err, qt.IsNil)
	c.Assert(ct.String(), qt.Equals, "2024-03-15 09:05:30")
	c.Assert(st.OscillatorFailed, qt.IsTrue)
}

func TestDecodeRejectsOutOfRange(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		name string
		blk  RegisterBlock
		reg  string
	}{
		{"month 13", RegisterBlock{0x00, 0x00, 0x00, 0x01, 0x13, 0x24, 0x00, 0x00}, "month"},
		{"month 0", RegisterBlock{0x00, 0x00, 0x00, 0x01, 0x00, 0x24, 0x00, 0x00}, "month"},
		{"feb 30", RegisterBlock{0x00, 0x00, 0x00, 0x30, 0x02, 0x24, 0x00, 0x00}, "day"},
		{"feb 29 non-leap", RegisterBlock{0x00, 0x00, 0x00, 0x29, 0x02, 0x23, 0x00, 0x00}, "day"},
		{"day 0", RegisterBlock{0x00, 0x00, 0x00, 0x00, 0x02, 0x23, 0x00, 0x00}, "day"},
		{"hour 24", RegisterBlock{0x00, 0x00, 0x24, 0x01, 0x01, 0x23, 0x00, 0x00}, "hours"},
		{"minute 60", RegisterBlock{0x00, 0x60, 0x00, 0x01, 0x01, 0x23, 0x00, 0x00}, "minutes"},
		{"weekday 7", RegisterBlock{0x00, 0x00, 0x00, 0x01, 0x01, 0x23, 0x07, 0x00}, "weekday"},
	}
	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			_, _, err := Decode(&ISL1208, tt.blk)
			var de *DecodeError
			c.Assert(errors.As(err, &de), qt.Equals, true)
			c.Assert(de.BCD, qt.Equals, false)
			c.Assert(de.Reg, qt.Equals, tt.reg)
			c.Assert(errors.Is(err, ErrDecodeFailure), qt.Equals, true)
		})
	}

	// DS1307 stores weekday 1..7, so 0 is invalid there.
	_, _, err := Decode(&DS1307, RegisterBlock{0x00, 0x00, 0x00, 0x00, 0x01, 0x01, 0x23, 0x00})
	c.Assert(errors.Is(err, ErrDecodeFailure), qt.Equals, true)
}

func TestDecodeStatusFlags(t *testing.T) {
	c := qt.New(t)
	isl := RegisterBlock{0x00, 0x05, 0x09, 0x15, 0x03, 0x24, 0x05, islRTCF | islBAT}
	_, st, err := Decode(&ISL1208, isl)
	c.Assert(err, qt.IsNil)
	c.Assert(st, qt.Equals, StatusFlags{OscillatorFailed: true, BatteryLow: true})

	ds := RegisterBlock{0x80 | 0x30, 0x05, 0x09, 0x06, 0x15, 0x03, 0x24, 0x00}
	ct, st, err := Decode(&DS1307, ds)
	c.Assert(err, qt.IsNil)
	c.Assert(ct.Second, qt.Equals, uint8(30))
	c.Assert(st, qt.Equals, StatusFlags{OscillatorFailed: true})
}

func TestEncodeRejectsOutOfWindow(t *testing.T) {
	c := qt.New(t)
	for _, year := range []int{1999, 2100, 67536} {
		ct := FromTime(time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC))
		for _, l := range layouts {
			_, err := Encode(l, ct)
			c.Assert(errors.Is(err, ErrInvalidInput), qt.Equals, true, qt.Commentf("%d", year))
			c.Assert(err, qt.ErrorMatches, `rtc: invalid input \(validate\): year \d+ out of range`)
		}
	}
}

func TestValidateRejectsBadDates(t *testing.T) {
	c := qt.New(t)
	bad := []CalendarTime{
		{Year: 2023, Month: 2, Day: 29},
		{Year: 2024, Month: 4, Day: 31},
		{Year: 2024, Month: 0, Day: 1},
		{Year: 2024, Month: 1, Day: 1, Weekday: 7},
		{Year: 2024, Month: 1, Day: 1, Hour: 24},
		{Year: 2024, Month: 1, Day: 1, Second: 60},
	}
	for _, ct := range bad {
		c.Assert(errors.Is(ct.Validate(), ErrInvalidInput), qt.Equals, true, qt.Commentf("%+v", ct))
	}
	c.Assert(CalendarTime{Year: 2024, Month: 2, Day: 29}.Validate(), qt.IsNil)
}

func TestFromTimeTruncates(t *testing.T) {
	c := qt.New(t)
	ct := FromTime(time.Date(2024, 3, 15, 9, 5, 59, 999_999_999, time.UTC))
	c.Assert(ct.Second, qt.Equals, uint8(59))
	c.Assert(ct.Time(nil), qt.Equals, time.Date(2024, 3, 15, 9, 5, 59, 0, time.UTC))
	c.Assert(ct.String(), qt.Equals, "2024-03-15 09:05:59")
}

func TestBCD(t *testing.T) {
	c := qt.New(t)
	for v := uint8(0); v < 100; v++ {
		got, ok := FromBCD(ToBCD(v))
		c.Assert(ok, qt.Equals, true)
		c.Assert(got, qt.Equals, v)
	}
	_, ok := FromBCD(0x9A)
	c.Assert(ok, qt.Equals, false)
	_, ok = FromBCD(0xA9)
	c.Assert(ok, qt.Equals, false)
}

func TestChipNames(t *testing.T) {
	c := qt.New(t)
	for _, ch := range []Chip{ChipISL1208, ChipDS1307} {
		got, ok := ParseChip(ch.String())
		c.Assert(ok, qt.Equals, true)
		c.Assert(got, qt.Equals, ch)
		c.Assert(LayoutFor(ch).Name, qt.Equals, ch.String())
	}
	_, ok := ParseChip("pcf8523")
	c.Assert(ok, qt.Equals, false)
}
