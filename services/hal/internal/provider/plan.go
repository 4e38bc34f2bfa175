package provider

// ResourcePlan specifies wiring and operating parameters chosen by a board
// setup. Platforms consume it to open buses; the registry serialises them.
type ResourcePlan struct {
	I2C  []I2CPlan
	UART []UARTPlan
}

type I2CPlan struct {
	ID  string // e.g. "i2c0"
	SDA int    // GPIO number (MCU)
	SCL int    // GPIO number (MCU)
	Hz  uint32 // bus frequency (MCU)

	Dev string    // host device, e.g. "/dev/i2c-1" or periph name "1"
	Sim []SimChip // simulated chips (host); used when Dev is empty
}

// SimChip places a simulated RTC on a host bus.
type SimChip struct {
	Addr uint16 // 0 => chip default
	Chip string // "isl1208" | "ds1307"
	// Start is RFC 3339; empty starts at the host time.
	Start string
	// OscFailed starts the chip with its oscillator-fail flag set.
	OscFailed bool
}

type UARTPlan struct {
	ID   string // e.g. "uart0"
	TX   int    // GPIO number
	RX   int    // GPIO number
	Baud uint32
}
