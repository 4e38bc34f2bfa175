//go:build !(rp2040 || rp2350)

package platform

import (
	"errors"
	"time"

	"rtcsync-go/drivers/rtc"
	"rtcsync-go/drivers/rtc/rtcsim"
	"rtcsync-go/errcode"
	"rtcsync-go/services/hal/internal/provider"

	"tinygo.org/x/drivers"
)

// SimTick is how often simulated chips count forward.
var SimTick = time.Second

// Buses holds the opened I²C controllers for a plan.
type Buses struct {
	I2C map[string]drivers.I2C

	sims    map[string]*rtcsim.Bus
	chips   []*rtcsim.Chip
	closers []func() error
	stop    chan struct{}
}

// OpenI2C opens every I²C controller in plan. Simulated chips start
// counting immediately.
func OpenI2C(plan provider.ResourcePlan) (*Buses, error) {
	b := &Buses{
		I2C:  make(map[string]drivers.I2C),
		sims: make(map[string]*rtcsim.Bus),
		stop: make(chan struct{}),
	}
	for _, p := range plan.I2C {
		if p.ID == "" {
			b.Close()
			return nil, errcode.InvalidConfig
		}
		if p.Dev != "" {
			bus, closer, err := openDevice(p.Dev)
			if err != nil {
				b.Close()
				return nil, err
			}
			b.I2C[p.ID] = bus
			b.closers = append(b.closers, closer)
			continue
		}
		sim, err := b.openSim(p.Sim)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.I2C[p.ID] = sim
		b.sims[p.ID] = sim
	}
	if len(b.chips) > 0 {
		go b.tick()
	}
	return b, nil
}

func (b *Buses) openSim(specs []provider.SimChip) (*rtcsim.Bus, error) {
	bus := rtcsim.NewBus()
	for _, s := range specs {
		chip, ok := rtc.ParseChip(s.Chip)
		if !ok {
			return nil, errcode.UnknownType
		}
		l := rtc.LayoutFor(chip)
		start := time.Now().UTC()
		if s.Start != "" {
			var err error
			if start, err = time.Parse(time.RFC3339, s.Start); err != nil {
				return nil, errors.Join(errcode.InvalidConfig, err)
			}
		}
		c, err := rtcsim.NewChip(l, rtc.FromTime(start))
		if err != nil {
			return nil, errors.Join(errcode.InvalidConfig, err)
		}
		c.SetOscillatorFailed(s.OscFailed)
		addr := s.Addr
		if addr == 0 {
			addr = l.Address
		}
		bus.Attach(addr, c)
		b.chips = append(b.chips, c)
	}
	return bus, nil
}

func (b *Buses) tick() {
	t := time.NewTicker(SimTick)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			for _, c := range b.chips {
				c.Advance(SimTick)
			}
		case <-b.stop:
			return
		}
	}
}

// Sim returns the simulated bus behind id, if any.
func (b *Buses) Sim(id string) (*rtcsim.Bus, bool) {
	s, ok := b.sims[id]
	return s, ok
}

// Close stops simulation and releases host devices.
func (b *Buses) Close() error {
	select {
	case <-b.stop:
		return nil
	default:
		close(b.stop)
	}
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
