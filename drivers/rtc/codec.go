package rtc

// StatusFlags is decoded from the status bits on every read.
type StatusFlags struct {
	// OscillatorFailed means the chip lost timekeeping integrity (or is
	// halted); the decoded time must be treated as unreliable.
	OscillatorFailed bool
	BatteryLow       bool
}

// ToBCD packs v (0..99) as two BCD nibbles.
func ToBCD(v uint8) byte { return (v/10)<<4 | v%10 }

// FromBCD unpacks b; ok is false if either nibble is 10..15.
func FromBCD(b byte) (v uint8, ok bool) {
	hi, lo := b>>4&0x0F, b&0x0F
	if hi > 9 || lo > 9 {
		return 0, false
	}
	return hi*10 + lo, true
}

// Encode validates t and packs it into a register block for l. The control
// byte carries only the layout's run bits; the hour is plain 24-hour BCD.
func Encode(l *Layout, t CalendarTime) (RegisterBlock, error) {
	var b RegisterBlock
	if err := t.Validate(); err != nil {
		return b, err
	}
	b[l.Second.Reg] = ToBCD(t.Second)
	b[l.Minute.Reg] = ToBCD(t.Minute)
	b[l.Hour.Reg] = ToBCD(t.Hour)
	b[l.Day.Reg] = ToBCD(t.Day)
	b[l.Month.Reg] = ToBCD(t.Month)
	b[l.Year.Reg] = ToBCD(uint8(t.Year - MinYear))
	b[l.Weekday.Reg] = ToBCD(t.Weekday + l.WeekdayBase)
	b[l.Ctrl] = l.CtrlRun
	return b, nil
}

// Decode unpacks a register block read from l. Documented flag bits are
// ignored; any other stray bit, non-BCD nibble or out-of-range field yields a
// *DecodeError (matches ErrDecodeFailure).
func Decode(l *Layout, b RegisterBlock) (CalendarTime, StatusFlags, error) {
	var (
		t   CalendarTime
		err error
	)
	field := func(name string, f Field, lo, hi uint8) uint8 {
		if err != nil {
			return 0
		}
		raw := b[f.Reg]
		data := raw &^ f.Flags
		v, ok := FromBCD(data)
		if !ok || data&^f.Mask != 0 {
			err = &DecodeError{Reg: name, Raw: raw, BCD: true}
			return 0
		}
		if v < lo || v > hi {
			err = &DecodeError{Reg: name, Raw: raw}
			return 0
		}
		return v
	}

	t.Second = field("seconds", l.Second, 0, 59)
	t.Minute = field("minutes", l.Minute, 0, 59)
	t.Hour = field("hours", l.Hour, 0, 23)
	t.Month = field("month", l.Month, 1, 12)
	t.Year = MinYear + int(field("year", l.Year, 0, 99))
	wd := field("weekday", l.Weekday, l.WeekdayBase, 6+l.WeekdayBase)
	t.Weekday = wd - l.WeekdayBase
	// Day bound depends on month and year, so it comes last.
	t.Day = field("day", l.Day, 1, DaysIn(t.Year, t.Month))
	if err != nil {
		return CalendarTime{}, StatusFlags{}, err
	}

	return t, StatusFlags{
		OscillatorFailed: l.OscFail.In(&b),
		BatteryLow:       l.BatLow.In(&b),
	}, nil
}
