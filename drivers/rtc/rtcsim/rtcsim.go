// Package rtcsim models RTC chips on an I2C bus for tests and host runs.
//
// A Chip is a register file with the same layout as the real part: an
// auto-incrementing register pointer, optional write protection of the time
// registers (ISL1208 WRTC) and counting that stops while halted (DS1307 CH).
// A Bus routes Tx calls to chips by address, records every transaction and
// can inject faults.
package rtcsim

import (
	"errors"
	"sync"
	"time"

	"rtcsync-go/drivers/rtc"
)

var (
	ErrNACK  = errors.New("rtcsim: nack")
	ErrRange = errors.New("rtcsim: register out of range")
)

// ---------------- Chip ----------------

type Chip struct {
	mu     sync.Mutex
	layout *rtc.Layout
	regs   rtc.RegisterBlock
	ptr    uint8
}

// NewChip returns a chip of layout l holding t, running, with clean status.
// t must be encodable (see rtc.Encode).
func NewChip(l *rtc.Layout, t rtc.CalendarTime) (*Chip, error) {
	blk, err := rtc.Encode(l, t)
	if err != nil {
		return nil, err
	}
	return &Chip{layout: l, regs: blk}, nil
}

// MustChip is NewChip for fixed test inputs; it panics on an invalid time.
func MustChip(l *rtc.Layout, t rtc.CalendarTime) *Chip {
	c, err := NewChip(l, t)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Chip) Layout() *rtc.Layout { return c.layout }

// Regs returns a copy of the register file.
func (c *Chip) Regs() rtc.RegisterBlock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs
}

// SetRegs overwrites the register file (e.g. to model a corrupt chip).
func (c *Chip) SetRegs(b rtc.RegisterBlock) {
	c.mu.Lock()
	c.regs = b
	c.mu.Unlock()
}

// Poke sets a single register.
func (c *Chip) Poke(reg uint8, v byte) {
	c.mu.Lock()
	c.regs[reg] = v
	c.mu.Unlock()
}

// SetOscillatorFailed sets or clears the layout's oscillator-fail bit.
func (c *Chip) SetOscillatorFailed(on bool) { c.setBit(c.layout.OscFail, on) }

// SetBatteryLow sets or clears the layout's battery bit, if any.
func (c *Chip) SetBatteryLow(on bool) { c.setBit(c.layout.BatLow, on) }

func (c *Chip) setBit(b rtc.Bit, on bool) {
	if b.Mask == 0 {
		return
	}
	c.mu.Lock()
	if on {
		c.regs[b.Reg] |= b.Mask
	} else {
		c.regs[b.Reg] &^= b.Mask
	}
	c.mu.Unlock()
}

// Halted reports whether counting is stopped by a halt gate bit.
func (c *Chip) Halted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted()
}

func (c *Chip) halted() bool {
	g := c.layout.Gate
	return g.Reg != c.layout.Ctrl && g.In(&c.regs)
}

// Now decodes the current register contents.
func (c *Chip) Now() (rtc.CalendarTime, rtc.StatusFlags, error) {
	return rtc.Decode(c.layout, c.Regs())
}

// Advance moves the clock forward by d unless halted. Non-time bits are kept.
func (c *Chip) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.halted() {
		return
	}
	t, _, err := rtc.Decode(c.layout, c.regs)
	if err != nil {
		return
	}
	next, err := rtc.Encode(c.layout, rtc.FromTime(t.Time(time.UTC).Add(d)))
	if err != nil {
		return
	}
	l := c.layout
	for _, f := range []rtc.Field{l.Second, l.Minute, l.Hour, l.Day, l.Month, l.Year, l.Weekday} {
		c.regs[f.Reg] = c.regs[f.Reg]&^f.Mask | next[f.Reg]&f.Mask
	}
}

// tx applies one I2C transaction: the first written byte sets the register
// pointer, further bytes are written with auto-increment, then r is filled
// from the pointer onwards.
func (c *Chip) tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(w) > 0 {
		if int(w[0])+len(w)-1 > rtc.BlockLen || int(w[0]) >= rtc.BlockLen {
			return ErrRange
		}
		c.ptr = w[0]
		for _, v := range w[1:] {
			c.store(c.ptr, v)
			c.ptr++
		}
	}
	if len(r) > 0 && int(c.ptr)+len(r) > rtc.BlockLen {
		return ErrRange
	}
	for i := range r {
		r[i] = c.regs[c.ptr]
		c.ptr++
	}
	return nil
}

// store ignores time-register writes while a write-enable gate is clear.
func (c *Chip) store(reg uint8, v byte) {
	l := c.layout
	if reg != l.Ctrl && l.Gate.Reg == l.Ctrl && !l.Gate.In(&c.regs) {
		return
	}
	c.regs[reg] = v
}

// ---------------- Bus ----------------

// Tx is one recorded transaction.
type Tx struct {
	Addr uint16
	W    []byte
	RLen int
	Err  error
}

// IsWrite reports whether the transaction wrote register data.
func (t Tx) IsWrite() bool { return len(t.W) > 1 }

// Fault decides whether a transaction fails before reaching the chip.
type Fault func(addr uint16, w []byte, rlen int) error

type Bus struct {
	mu    sync.Mutex
	chips map[uint16]*Chip
	log   []Tx
	fault Fault
}

func NewBus() *Bus { return &Bus{chips: make(map[uint16]*Chip)} }

// Attach places c at addr (replacing any chip there).
func (b *Bus) Attach(addr uint16, c *Chip) {
	b.mu.Lock()
	b.chips[addr] = c
	b.mu.Unlock()
}

// Detach removes the chip at addr; later transactions NACK.
func (b *Bus) Detach(addr uint16) {
	b.mu.Lock()
	delete(b.chips, addr)
	b.mu.Unlock()
}

// SetFault installs (or clears, with nil) a fault injector.
func (b *Bus) SetFault(f Fault) {
	b.mu.Lock()
	b.fault = f
	b.mu.Unlock()
}

// Tx implements drivers.I2C.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	chip := b.chips[addr]
	fault := b.fault
	b.mu.Unlock()

	var err error
	if fault != nil {
		err = fault(addr, w, len(r))
	}
	if err == nil {
		if chip == nil {
			err = ErrNACK
		} else {
			err = chip.tx(w, r)
		}
	}

	b.mu.Lock()
	b.log = append(b.log, Tx{Addr: addr, W: append([]byte(nil), w...), RLen: len(r), Err: err})
	b.mu.Unlock()
	return err
}

// Log returns a copy of the recorded transactions.
func (b *Bus) Log() []Tx {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Tx(nil), b.log...)
}

// Count returns the number of recorded transactions.
func (b *Bus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.log)
}

func (b *Bus) ResetLog() {
	b.mu.Lock()
	b.log = nil
	b.mu.Unlock()
}

// FailBlockWrites fails any transaction writing the full time block.
func FailBlockWrites(err error) Fault {
	return func(_ uint16, w []byte, _ int) error {
		if len(w) == 1+rtc.BlockLen {
			return err
		}
		return nil
	}
}

// FailAll fails every transaction.
func FailAll(err error) Fault {
	return func(uint16, []byte, int) error { return err }
}
