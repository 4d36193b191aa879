package telemetry

import (
	"fmt"
	"time"
)

// DefaultSelectAttempts bounds consecutive torn copies before Select gives up.
const DefaultSelectAttempts = 8

// Snapshot is a private copy of one data buffer taken at a single tick.
// The tick was identical before and after the copy, so the bytes are not
// torn. A Snapshot is never shared with the region or other callers.
type Snapshot struct {
	Tick   int32
	Buffer int    // index of the buffer the bytes came from
	Data   []byte // BufLen bytes

	catalog *Catalog
}

// Selector picks the freshest data buffer and copies it out under the
// read-copy-validate protocol. The zero value uses DefaultSelectAttempts and
// no wall-clock budget.
type Selector struct {
	MaxAttempts int
	Budget      time.Duration // zero means attempts alone bound the retries
}

// Select returns a consistent snapshot of the buffer with the highest tick.
// Ticks are re-read from mem on every attempt; only the buffer offsets and
// length are taken from h.
func (s Selector) Select(mem Memory, h *Header) (*Snapshot, error) {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultSelectAttempts
	}

	start := time.Now()
	for n := 1; ; n++ {
		idx, t0, err := newestBuffer(mem, h)
		if err != nil {
			return nil, err
		}

		data := make([]byte, h.BufLen)
		if _, err := mem.ReadAt(data, int64(h.Buffers[idx].Offset)); err != nil {
			return nil, fmt.Errorf("copy buffer %d: %w", idx, err)
		}

		t1, err := mem.LoadInt32(TickOffset(idx))
		if err != nil {
			return nil, fmt.Errorf("revalidate buffer %d: %w", idx, err)
		}
		if t1 == t0 {
			return &Snapshot{Tick: t0, Buffer: idx, Data: data}, nil
		}

		elapsed := time.Since(start)
		if n >= attempts || (s.Budget > 0 && elapsed >= s.Budget) {
			return nil, &TimeoutError{Op: "select", Elapsed: elapsed, Attempts: n}
		}
	}
}

// newestBuffer returns the index and tick of the buffer with the highest
// tick. Ties go to the lowest index.
func newestBuffer(mem Memory, h *Header) (int, int32, error) {
	best, bestTick := 0, int32(0)
	for i := 0; i < len(h.Buffers); i++ {
		tick, err := mem.LoadInt32(TickOffset(i))
		if err != nil {
			return 0, 0, fmt.Errorf("read tick of buffer %d: %w", i, err)
		}
		if i == 0 || tick > bestTick {
			best, bestTick = i, tick
		}
	}
	return best, bestTick, nil
}

// Get decodes the named variable from the snapshot. Only snapshots returned
// by a Conn carry a catalog.
func (s *Snapshot) Get(name string) (Value, error) {
	if s.catalog == nil {
		return Value{}, fmt.Errorf("%w: snapshot has no catalog", ErrNotFound)
	}
	d, err := s.catalog.Lookup(name)
	if err != nil {
		return Value{}, err
	}
	return Decode(s.Data, d)
}

// All decodes every usable variable. Variables that fail to decode are
// left out.
func (s *Snapshot) All() map[string]Value {
	if s.catalog == nil {
		return nil
	}
	out := make(map[string]Value, s.catalog.Len())
	for _, d := range s.catalog.vars {
		if !d.Usable() {
			continue
		}
		if v, err := Decode(s.Data, d); err == nil {
			out[d.Name] = v
		}
	}
	return out
}

// Float32 decodes a scalar float variable.
func (s *Snapshot) Float32(name string) (float32, error) {
	v, err := s.Get(name)
	if err != nil {
		return 0, err
	}
	return v.Float32()
}

// Float64 decodes a scalar float or double variable.
func (s *Snapshot) Float64(name string) (float64, error) {
	v, err := s.Get(name)
	if err != nil {
		return 0, err
	}
	return v.Float64()
}

// Int decodes a scalar int variable.
func (s *Snapshot) Int(name string) (int32, error) {
	v, err := s.Get(name)
	if err != nil {
		return 0, err
	}
	return v.Int()
}

// Bool decodes a scalar bool variable.
func (s *Snapshot) Bool(name string) (bool, error) {
	v, err := s.Get(name)
	if err != nil {
		return false, err
	}
	return v.Bool()
}

// Bits decodes a scalar bitfield variable.
func (s *Snapshot) Bits(name string) (uint32, error) {
	v, err := s.Get(name)
	if err != nil {
		return 0, err
	}
	return v.Bits()
}
