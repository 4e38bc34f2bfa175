package provider

import (
	"sync"
	"sync/atomic"
	"time"

	"rtcsync-go/errcode"
	"rtcsync-go/services/hal/internal/core"

	"tinygo.org/x/drivers"
)

// DefaultTimeout bounds how long one transaction may wait for the bus. A
// transaction that has started always runs to completion.
const DefaultTimeout = 250 * time.Millisecond

// Ensure the provider satisfies the contracts at compile time.
var _ core.ResourceRegistry = (*Registry)(nil)

// -----------------------------------------------------------------------------
// I²C owner (one worker per bus)
// -----------------------------------------------------------------------------

type i2cResult struct {
	err error
	r   []byte
}

// Request states. The worker and a timing-out caller race to move a queued
// request on; exactly one wins.
const (
	reqQueued int32 = iota
	reqStarted
	reqAbandoned
)

// request posted to the per-bus worker; buffers are owned by the request so a
// caller that timed out can reuse its own.
type i2cReq struct {
	addr    uint16
	w       []byte
	rlen    int
	state   *atomic.Int32
	started chan struct{}  // closed when the worker takes the bus
	done    chan i2cResult // buffered(1)
}

// per-bus owner that hosts a single worker goroutine
type i2cOwner struct {
	id   core.ResourceID
	hw   drivers.I2C
	reqs chan i2cReq
	quit chan struct{}
}

func newI2COwner(id core.ResourceID, hw drivers.I2C) *i2cOwner {
	o := &i2cOwner{
		id:   id,
		hw:   hw,
		reqs: make(chan i2cReq, 16),
		quit: make(chan struct{}),
	}
	go o.loop()
	return o
}

func (o *i2cOwner) loop() {
	for {
		select {
		case req := <-o.reqs:
			if !req.state.CompareAndSwap(reqQueued, reqStarted) {
				// Caller already gave up; do not touch the bus.
				continue
			}
			close(req.started)
			var res i2cResult
			if req.rlen > 0 {
				res.r = make([]byte, req.rlen)
			}
			res.err = o.hw.Tx(req.addr, req.w, res.r)
			req.done <- res
		case <-o.quit:
			return
		}
	}
}

func (o *i2cOwner) stop() { close(o.quit) }

// driversI2C adapts the owner to tinygo.org/x/drivers.I2C.
// The timeout bounds only the wait for the bus: once the worker has started a
// transaction the caller sees its real outcome, so a reported failure never
// hides a write that reached the chip.
type driversI2C struct {
	o       *i2cOwner
	timeout time.Duration // 0 => no deadline
}

// Ensure compile-time conformance with drivers.I2C
var _ drivers.I2C = (*driversI2C)(nil)

func (d *driversI2C) Tx(addr uint16, w, r []byte) error {
	req := i2cReq{
		addr:    addr,
		w:       append([]byte(nil), w...),
		rlen:    len(r),
		state:   new(atomic.Int32),
		started: make(chan struct{}),
		done:    make(chan i2cResult, 1),
	}

	if d.timeout <= 0 {
		d.o.reqs <- req
		return finish(req, r)
	}

	t := time.NewTimer(d.timeout)
	defer t.Stop()

	// Bounded enqueue
	select {
	case d.o.reqs <- req:
	case <-t.C:
		return errcode.Busy
	}

	// Bounded wait for the worker to take the request.
	select {
	case <-req.started:
	case <-t.C:
		if req.state.CompareAndSwap(reqQueued, reqAbandoned) {
			return errcode.Timeout
		}
		// Lost the race: the transaction is already on the bus.
	}
	return finish(req, r)
}

func finish(req i2cReq, r []byte) error {
	res := <-req.done
	if res.err == nil {
		copy(r, res.r)
	}
	return res.err
}

// -----------------------------------------------------------------------------
// Resource registry
// -----------------------------------------------------------------------------

type Registry struct {
	mu      sync.Mutex
	timeout time.Duration
	owners  map[core.ResourceID]*i2cOwner
	claims  map[core.ResourceID]map[string]bool // bus -> devIDs
}

// NewRegistry starts one owner per bus. timeout <= 0 selects DefaultTimeout.
func NewRegistry(buses map[string]drivers.I2C, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := &Registry{
		timeout: timeout,
		owners:  make(map[core.ResourceID]*i2cOwner),
		claims:  make(map[core.ResourceID]map[string]bool),
	}
	for id, hw := range buses {
		if hw == nil {
			continue
		}
		rid := core.ResourceID(id)
		r.owners[rid] = newI2COwner(rid, hw)
	}
	return r
}

// ClaimI2C returns a serialised handle. Several devices may share one bus.
func (r *Registry) ClaimI2C(devID string, id core.ResourceID) (drivers.I2C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.owners[id]
	if o == nil {
		return nil, errcode.UnknownBus
	}
	if r.claims[id] == nil {
		r.claims[id] = make(map[string]bool)
	}
	r.claims[id][devID] = true
	return &driversI2C{o: o, timeout: r.timeout}, nil
}

func (r *Registry) ReleaseI2C(devID string, id core.ResourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claims[id], devID)
}

// Claimants lists the devices holding bus id.
func (r *Registry) Claimants(id core.ResourceID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.claims[id]))
	for dev := range r.claims[id] {
		out = append(out, dev)
	}
	return out
}

// Close stops the per-bus workers.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, o := range r.owners {
		o.stop()
		delete(r.owners, id)
	}
}
