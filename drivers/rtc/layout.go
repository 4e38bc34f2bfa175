package rtc

// BlockLen is the size of the time block: seven time registers plus the
// status/control register, starting at register 0x00.
const BlockLen = 8

// RegisterBlock holds one byte per chip register in datasheet order.
type RegisterBlock [BlockLen]byte

// Chip selects a register layout.
type Chip uint8

const (
	ChipISL1208 Chip = iota
	ChipDS1307
)

func (c Chip) String() string {
	switch c {
	case ChipISL1208:
		return "isl1208"
	case ChipDS1307:
		return "ds1307"
	}
	return "unknown"
}

// ParseChip maps a device type name to a Chip.
func ParseChip(s string) (Chip, bool) {
	switch s {
	case "isl1208":
		return ChipISL1208, true
	case "ds1307":
		return ChipDS1307, true
	}
	return 0, false
}

// Field locates one register within the block. Mask covers the BCD data
// bits; Flags are documented mode/status bits ignored when decoding. Any
// other set bit makes the register undecodable.
type Field struct {
	Reg   uint8
	Mask  byte
	Flags byte
}

// Bit locates a single flag (Mask == 0 means the chip has no such flag).
type Bit struct {
	Reg  uint8
	Mask byte
}

func (b Bit) In(blk *RegisterBlock) bool { return b.Mask != 0 && blk[b.Reg]&b.Mask != 0 }

// Layout describes how a chip packs calendar time into its register block.
type Layout struct {
	Name    string
	Address uint16 // default 7-bit address

	Second, Minute, Hour, Day, Month, Year, Weekday Field
	WeekdayBase                                      uint8 // stored = Weekday + WeekdayBase

	Ctrl     uint8 // status/control register index
	CtrlRun  byte  // bits written into Ctrl with every block (e.g. write enable)
	CtrlKeep byte  // bits of the previous Ctrl value carried into the block

	// Gate is set in a single-register write before the block write: either
	// a halt bit that stops counting or a write-enable bit that unlocks the
	// time registers. Restored to its previous value if the block write fails.
	Gate Bit

	OscFail Bit
	BatLow  Bit
}

// ISL1208 register map (Renesas ISL1208 datasheet, RTC section 00h..07h).
//
//	00 SC  01 MN  02 HR(MIL bit7)  03 DT  04 MO  05 YR  06 DW(0..6)  07 SR
//	SR: ARST bit7, XTOSCB bit6, WRTC bit4, ALM bit2, BAT bit1, RTCF bit0
var ISL1208 = Layout{
	Name:    "isl1208",
	Address: 0x6F,

	Second:  Field{0x00, 0x7F, 0},
	Minute:  Field{0x01, 0x7F, 0},
	Hour:    Field{0x02, 0x3F, islMIL},
	Day:     Field{0x03, 0x3F, 0},
	Month:   Field{0x04, 0x1F, 0},
	Year:    Field{0x05, 0xFF, 0},
	Weekday: Field{0x06, 0x0F, 0},

	Ctrl:     0x07,
	CtrlRun:  islWRTC,
	CtrlKeep: islARST | islXTOSCB,

	Gate:    Bit{0x07, islWRTC},
	OscFail: Bit{0x07, islRTCF},
	BatLow:  Bit{0x07, islBAT},
}

const (
	islRTCF   = 1 << 0
	islBAT    = 1 << 1
	islWRTC   = 1 << 4
	islXTOSCB = 1 << 6
	islARST   = 1 << 7
	islMIL    = 1 << 7 // hour register: 24-hour mode
)

// DS1307 register map (Maxim DS1307 datasheet, timekeeper registers 00h..07h).
//
//	00 SEC(CH bit7)  01 MIN  02 HR(12/24 bit6)  03 DOW(1..7)  04 DATE
//	05 MONTH  06 YEAR  07 CONTROL(OUT bit7, SQWE bit4, RS1..0)
var DS1307 = Layout{
	Name:    "ds1307",
	Address: 0x68,

	Second:      Field{0x00, 0x7F, dsCH},
	Minute:      Field{0x01, 0x7F, 0},
	Hour:        Field{0x02, 0x3F, ds12h},
	Weekday:     Field{0x03, 0x0F, 0},
	Day:         Field{0x04, 0x3F, 0},
	Month:       Field{0x05, 0x1F, 0},
	Year:        Field{0x06, 0xFF, 0},
	WeekdayBase: 1,

	Ctrl:     0x07,
	CtrlKeep: dsOUT | dsSQWE | dsRS,

	Gate:    Bit{0x00, dsCH},
	OscFail: Bit{0x00, dsCH},
}

const (
	dsCH   = 1 << 7
	ds12h  = 1 << 6 // hour register: 12-hour mode select
	dsOUT  = 1 << 7
	dsSQWE = 1 << 4
	dsRS   = 0x03
)

// LayoutFor returns the layout of c (ISL1208 for unknown values).
func LayoutFor(c Chip) *Layout {
	if c == ChipDS1307 {
		return &DS1307
	}
	return &ISL1208
}
