// Package telemetry reads live simulator telemetry from the shared region
// the simulator publishes.
//
// The producer rotates through up to four data buffers and stamps each with
// a tick when it finishes writing it. It takes no locks, so readers copy the
// newest buffer and keep the copy only if its tick did not move during the
// copy. A Conn wraps that protocol with a variable catalog and a polling
// wait for the next tick.
package telemetry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/AlephTX/simtelem/session"
	"github.com/AlephTX/simtelem/shm"
)

// State is the lifecycle state of a Conn.
type State int

const (
	StateClosed State = iota
	StateReady
	StateWaiting
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateReady:
		return "ready"
	case StateWaiting:
		return "waiting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	minPollInterval = time.Millisecond
	maxPollInterval = 100 * time.Millisecond
)

// Options tune a Conn. The zero value is usable.
type Options struct {
	// SelectAttempts bounds consecutive torn copies per sample.
	SelectAttempts int
	// SelectBudget bounds the wall-clock time spent per sample; zero means
	// one tick period.
	SelectBudget time.Duration
	// PollInterval overrides the wait interval derived from the tick rate.
	PollInterval time.Duration
	// Logger receives session change notices; nil uses log.Default().
	Logger *log.Logger
}

// Conn is a session on the shared telemetry region.
//
// A Conn is not safe for concurrent use. The retry loop assumes it owns the
// read side exclusively; goroutines needing telemetry in parallel should each
// open their own Conn or serialize access.
type Conn struct {
	mem     Memory
	opts    Options
	log     *log.Logger
	state   State
	header  *Header
	catalog *Catalog

	lastTick int32
	hasTick  bool
	last     *Snapshot
}

// Open maps the named region and builds the session's catalog. When the
// simulator is not running the error matches ErrNotFound.
func Open(name string, opts Options) (*Conn, error) {
	r, err := shm.Open(name)
	if err != nil {
		if errors.Is(err, shm.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	c, err := OpenRegion(r, opts)
	if err != nil {
		r.Close()
		return nil, err
	}
	return c, nil
}

// OpenRegion starts a session on an already mapped region. On success the
// Conn owns mem and closes it on Close.
func OpenRegion(mem Memory, opts Options) (*Conn, error) {
	h, err := ParseHeader(mem)
	if err != nil {
		return nil, err
	}
	cat, err := BuildCatalog(mem, h)
	if err != nil {
		return nil, err
	}

	l := opts.Logger
	if l == nil {
		l = log.Default()
	}
	return &Conn{
		mem:     mem,
		opts:    opts,
		log:     l,
		state:   StateReady,
		header:  h,
		catalog: cat,
	}, nil
}

// State returns the connection's lifecycle state.
func (c *Conn) State() State { return c.state }

func (c *Conn) selector() Selector {
	budget := c.opts.SelectBudget
	if budget <= 0 {
		budget = c.header.TickPeriod()
	}
	return Selector{MaxAttempts: c.opts.SelectAttempts, Budget: budget}
}

// refresh re-reads the header and rebuilds the catalog if the session
// changed since it was built.
//
// A header that fails validation while its session fields have moved away
// from the catalog's is reported as ErrCatalogStale wrapping ErrMalformed:
// the producer may still be rewriting the table.
func (c *Conn) refresh() error {
	h, err := ParseHeader(c.mem)
	if err != nil {
		if errors.Is(err, ErrMalformed) && c.drifted() {
			return fmt.Errorf("%w: %w", ErrCatalogStale, err)
		}
		return err
	}
	if c.catalog.Stale(h) {
		cat, err := BuildCatalog(c.mem, h)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCatalogStale, err)
		}
		c.log.Printf("telemetry: session info changed (%d -> %d), catalog rebuilt with %d variables",
			c.catalog.update, h.SessionInfoUpdate, cat.Len())
		c.catalog = cat
	}
	c.header = h
	return nil
}

// drifted reports whether the raw session fields differ from the ones the
// catalog was built from.
func (c *Conn) drifted() bool {
	fields := []struct {
		off  int64
		want int32
	}{
		{offSessionInfoUpdate, c.catalog.update},
		{offNumVars, c.catalog.numVars},
		{offVarHeaderOffset, c.catalog.varOffset},
	}
	for _, f := range fields {
		if v, err := c.mem.LoadInt32(f.off); err == nil && v != f.want {
			return true
		}
	}
	return false
}

// Latest returns the newest consistent sample without blocking. It returns
// ErrNoNewData when the newest tick was already returned or no buffer has
// been published yet, and ErrInactive while the simulator reports itself
// stopped.
func (c *Conn) Latest() (*Snapshot, error) {
	if c.state == StateClosed {
		return nil, ErrClosed
	}
	if err := c.refresh(); err != nil {
		return nil, err
	}
	if !c.header.Active() {
		return nil, ErrInactive
	}

	snap, err := c.selector().Select(c.mem, c.header)
	if err != nil {
		return nil, err
	}
	if c.hasTick && snap.Tick == c.lastTick {
		return nil, ErrNoNewData
	}
	if !c.hasTick && snap.Tick == 0 {
		// Nothing has been stamped into any buffer yet.
		return nil, fmt.Errorf("%w: no buffer published", ErrNoNewData)
	}
	c.lastTick, c.hasTick = snap.Tick, true
	snap.catalog = c.catalog
	c.last = snap
	return snap, nil
}

// WaitNext polls until a sample newer than the last one returned appears,
// or fails with a *TimeoutError once timeout has elapsed.
func (c *Conn) WaitNext(timeout time.Duration) (*Snapshot, error) {
	return c.WaitNextContext(context.Background(), timeout)
}

// WaitNextContext is WaitNext that also gives up when ctx is done.
func (c *Conn) WaitNextContext(ctx context.Context, timeout time.Duration) (*Snapshot, error) {
	if c.state == StateClosed {
		return nil, ErrClosed
	}
	c.state = StateWaiting
	defer func() {
		if c.state == StateWaiting {
			c.state = StateReady
		}
	}()

	start := time.Now()
	deadline := start.Add(timeout)
	attempts := 0
	for {
		attempts++
		snap, err := c.Latest()
		if err == nil {
			return snap, nil
		}
		if !retryable(err) {
			return nil, err
		}

		now := time.Now()
		remaining := deadline.Sub(now)
		if remaining <= 0 {
			if errors.Is(err, ErrCatalogStale) {
				return nil, err
			}
			return nil, &TimeoutError{Op: "wait", Elapsed: now.Sub(start), Attempts: attempts}
		}

		t := time.NewTimer(min(c.PollInterval(), remaining))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func retryable(err error) bool {
	return errors.Is(err, ErrNoNewData) || errors.Is(err, ErrInactive) ||
		errors.Is(err, ErrTimeout) || errors.Is(err, ErrCatalogStale)
}

// PollInterval returns the interval WaitNext sleeps between attempts: the
// configured override, or one tick period clamped to [1ms, 100ms].
func (c *Conn) PollInterval() time.Duration {
	if c.opts.PollInterval > 0 {
		return c.opts.PollInterval
	}
	return max(minPollInterval, min(c.header.TickPeriod(), maxPollInterval))
}

// Lookup returns the descriptor of the named variable.
func (c *Conn) Lookup(name string) (*VarDesc, error) {
	if c.state == StateClosed {
		return nil, ErrClosed
	}
	return c.catalog.Lookup(name)
}

// Decode decodes the named variable from the last sample returned by
// Latest or WaitNext.
func (c *Conn) Decode(name string) (Value, error) {
	if c.state == StateClosed {
		return Value{}, ErrClosed
	}
	if c.last == nil {
		return Value{}, fmt.Errorf("%w: no sample taken yet", ErrNoNewData)
	}
	return c.last.Get(name)
}

// Vars returns the session's variable descriptors in table order.
func (c *Conn) Vars() ([]*VarDesc, error) {
	if c.state == StateClosed {
		return nil, ErrClosed
	}
	return c.catalog.Vars(), nil
}

// Header returns a copy of the most recently read header.
func (c *Conn) Header() (Header, error) {
	if c.state == StateClosed {
		return Header{}, ErrClosed
	}
	h := *c.header
	h.Buffers = append([]BufferDesc(nil), c.header.Buffers...)
	return h, nil
}

// SessionInfo returns the session description text as UTF-8. The text is
// read fresh from the region on every call.
func (c *Conn) SessionInfo() (string, error) {
	if c.state == StateClosed {
		return "", ErrClosed
	}
	h, err := ParseHeader(c.mem)
	if err != nil {
		return "", err
	}
	b := make([]byte, h.SessionInfoLen)
	if _, err := c.mem.ReadAt(b, int64(h.SessionInfoOffset)); err != nil {
		return "", fmt.Errorf("read session info: %w", err)
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return latin1(b), nil
}

// Session parses the session description.
func (c *Conn) Session() (*session.Info, error) {
	text, err := c.SessionInfo()
	if err != nil {
		return nil, err
	}
	return session.Parse(text)
}

// Close releases the region. Later calls on c fail with ErrClosed; Close
// itself may be called again.
func (c *Conn) Close() error {
	if c.state == StateClosed {
		return nil
	}
	c.state = StateClosed
	c.last = nil
	return c.mem.Close()
}
