// Package rtc drives battery-backed real-time-clock chips (ISL1208, DS1307)
// over I2C and translates between calendar time and their BCD register block.
//
// Every logical operation moves the whole block in one bus transaction so the
// chip cannot roll over between registers:
//
//	WriteTime: read block -> set gate bit -> write block (restore gate on failure)
//	ReadTime:  read block -> decode
//
// The bus owner is responsible for exclusive access and timeouts; the driver
// never retries.
package rtc

import (
	"tinygo.org/x/drivers"
)

type Config struct {
	// Address defaults to the chip's datasheet address if zero.
	Address uint16
	Chip    Chip
}

type Device struct {
	i2c    drivers.I2C
	addr   uint16
	layout *Layout

	// OnCleanupError, if set, receives failures of the best-effort gate
	// restore after a failed block write. The original error is still
	// returned to the caller.
	OnCleanupError func(error)

	// Fixed buffers to avoid per-call heap allocations.
	w [1 + BlockLen]byte
	r [BlockLen]byte
}

func New(i2c drivers.I2C, cfg Config) *Device {
	l := LayoutFor(cfg.Chip)
	addr := cfg.Address
	if addr == 0 {
		addr = l.Address
	}
	return &Device{i2c: i2c, addr: addr, layout: l}
}

func (d *Device) Address() uint16 { return d.addr }
func (d *Device) Layout() *Layout { return d.layout }

// WriteTime stores t in the chip. Invalid input is rejected before any bus
// traffic. Non-time control bits are preserved.
func (d *Device) WriteTime(t CalendarTime) error {
	blk, err := Encode(d.layout, t)
	if err != nil {
		return err
	}

	prev, err := d.readBlock()
	if err != nil {
		return busErr("write", err)
	}
	l := d.layout
	blk[l.Ctrl] |= prev[l.Ctrl] & l.CtrlKeep

	gate := l.Gate
	if gate.Mask != 0 {
		if err := d.writeReg(gate.Reg, prev[gate.Reg]|gate.Mask); err != nil {
			return busErr("write", err)
		}
	}

	if err := d.writeBlock(&blk); err != nil {
		if gate.Mask != 0 {
			if cerr := d.writeReg(gate.Reg, prev[gate.Reg]); cerr != nil && d.OnCleanupError != nil {
				d.OnCleanupError(busErr("restore", cerr))
			}
		}
		return busErr("write", err)
	}
	return nil
}

// ReadTime reads and decodes the block. A set OscillatorFailed flag is not an
// error; the caller decides whether to trust the time.
func (d *Device) ReadTime() (CalendarTime, StatusFlags, error) {
	blk, err := d.readBlock()
	if err != nil {
		return CalendarTime{}, StatusFlags{}, busErr("read", err)
	}
	t, st, err := Decode(d.layout, blk)
	if err != nil {
		return CalendarTime{}, StatusFlags{}, &Error{Kind: ErrDecodeFailure, Op: "read", Err: err}
	}
	return t, st, nil
}

// ReadBlock returns the raw register block (diagnostics).
func (d *Device) ReadBlock() (RegisterBlock, error) {
	blk, err := d.readBlock()
	if err != nil {
		return blk, busErr("read", err)
	}
	return blk, nil
}

// ---------------- Register access ----------------

func (d *Device) readBlock() (RegisterBlock, error) {
	d.w[0] = 0x00
	if err := d.i2c.Tx(d.addr, d.w[:1], d.r[:]); err != nil {
		return RegisterBlock{}, err
	}
	return RegisterBlock(d.r), nil
}

func (d *Device) writeBlock(b *RegisterBlock) error {
	d.w[0] = 0x00
	copy(d.w[1:], b[:])
	return d.i2c.Tx(d.addr, d.w[:], nil)
}

func (d *Device) writeReg(reg uint8, v byte) error {
	d.w[0] = reg
	d.w[1] = v
	return d.i2c.Tx(d.addr, d.w[:2], nil)
}
