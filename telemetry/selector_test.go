package telemetry_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AlephTX/simtelem/fakesim"
	"github.com/AlephTX/simtelem/shm"
	"github.com/AlephTX/simtelem/telemetry"
)

func TestSelectPicksHighestTick(t *testing.T) {
	tests := []struct {
		ticks []int32
		want  int
	}{
		{[]int32{3}, 0},
		{[]int32{5, 7}, 1},
		{[]int32{9, 7}, 0},
		{[]int32{1, 2, 3}, 2},
		{[]int32{10, 30, 20}, 1},
		{[]int32{40, 10, 20, 30}, 0},
		{[]int32{10, 20, 30, 40}, 3},
		{[]int32{-5, -2, -9}, 1},
		// Ties resolve to the lowest index.
		{[]int32{7, 7}, 0},
		{[]int32{1, 8, 8, 8}, 1},
		{[]int32{0, 0, 0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.ticks), func(t *testing.T) {
			p := newProducer(t, fakesim.Layout{
				Vars:    []fakesim.Var{{Name: "Marker", Type: telemetry.TypeInt}},
				Buffers: len(tt.ticks),
			})
			for i, tick := range tt.ticks {
				if err := p.Write(i, func(f *fakesim.Frame) { f.SetInt("Marker", int32(100+i)) }); err != nil {
					t.Fatal(err)
				}
				p.SetTick(i, tick)
			}
			h, err := telemetry.ParseHeader(p.Region())
			if err != nil {
				t.Fatal(err)
			}

			for run := 0; run < 3; run++ {
				snap, err := telemetry.Selector{}.Select(p.Region(), h)
				if err != nil {
					t.Fatal(err)
				}
				if snap.Buffer != tt.want || snap.Tick != tt.ticks[tt.want] {
					t.Fatalf("run %d: buffer %d tick %d, want buffer %d", run, snap.Buffer, snap.Tick, tt.want)
				}
				d := &telemetry.VarDesc{Name: "Marker", Type: telemetry.TypeInt, Count: 1}
				v, err := telemetry.Decode(snap.Data, d)
				if err != nil {
					t.Fatal(err)
				}
				if got, _ := v.Int(); got != int32(100+tt.want) {
					t.Fatalf("snapshot bytes came from marker %d, want %d", got, 100+tt.want)
				}
			}
		})
	}
}

// tornMemory runs hooks around every copy of one buffer, letting a test act
// as a producer that writes while the copy is in flight.
type tornMemory struct {
	*shm.Region
	bufOff       int64
	copies       int
	before, after func(n int)
}

func (m *tornMemory) ReadAt(b []byte, off int64) (int, error) {
	if off != m.bufOff {
		return m.Region.ReadAt(b, off)
	}
	m.copies++
	if m.before != nil {
		m.before(m.copies)
	}
	n, err := m.Region.ReadAt(b, off)
	if m.after != nil {
		m.after(m.copies)
	}
	return n, err
}

var twoVarLayout = fakesim.Layout{
	Vars: []fakesim.Var{
		{Name: "Speed", Type: telemetry.TypeFloat},
		{Name: "RPM", Type: telemetry.TypeFloat},
	},
	Buffers: 1,
}

func TestSelectRetriesTornCopy(t *testing.T) {
	p := newProducer(t, twoVarLayout)
	p.Write(0, func(f *fakesim.Frame) { f.SetFloat32("Speed", 10); f.SetFloat32("RPM", 1000) })
	p.SetTick(0, 5)

	mem := &tornMemory{Region: p.Region(), bufOff: int64(p.BufferOffset(0))}
	mem.before = func(n int) {
		if n == 1 {
			// Half of the next frame lands before the copy.
			p.Write(0, func(f *fakesim.Frame) { f.SetFloat32("Speed", 20) })
		}
	}
	mem.after = func(n int) {
		if n == 1 {
			p.Write(0, func(f *fakesim.Frame) { f.SetFloat32("RPM", 2000) })
			p.SetTick(0, 6)
		}
	}

	h, err := telemetry.ParseHeader(mem)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := telemetry.Selector{MaxAttempts: 4}.Select(mem, h)
	if err != nil {
		t.Fatal(err)
	}
	if mem.copies != 2 {
		t.Fatalf("copies = %d, want the torn copy discarded and one retry", mem.copies)
	}
	if snap.Tick != 6 {
		t.Fatalf("tick = %d, want 6", snap.Tick)
	}
	speed, _ := telemetry.Decode(snap.Data, &telemetry.VarDesc{Name: "Speed", Type: telemetry.TypeFloat, Count: 1})
	rpm, _ := telemetry.Decode(snap.Data, &telemetry.VarDesc{Name: "RPM", Type: telemetry.TypeFloat, Offset: 4, Count: 1})
	if speed.Floats[0] != 20 || rpm.Floats[0] != 2000 {
		t.Fatalf("snapshot = Speed %v RPM %v, want the completed frame 20/2000", speed.Floats[0], rpm.Floats[0])
	}
}

func TestSelectTimesOutAgainstConstantWriter(t *testing.T) {
	p := newProducer(t, twoVarLayout)
	p.SetTick(0, 1)

	mem := &tornMemory{Region: p.Region(), bufOff: int64(p.BufferOffset(0))}
	mem.after = func(n int) { p.SetTick(0, int32(n+1)) }

	h, err := telemetry.ParseHeader(mem)
	if err != nil {
		t.Fatal(err)
	}
	_, err = telemetry.Selector{MaxAttempts: 3}.Select(mem, h)
	if !errors.Is(err, telemetry.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	var te *telemetry.TimeoutError
	if !errors.As(err, &te) || te.Attempts != 3 || te.Op != "select" {
		t.Fatalf("err = %#v", err)
	}
	if mem.copies != 3 {
		t.Fatalf("copies = %d, want 3", mem.copies)
	}
}

func TestSelectWallClockBudget(t *testing.T) {
	p := newProducer(t, twoVarLayout)
	p.SetTick(0, 1)

	// A slow writer tears every copy and takes 5ms doing it.
	mem := &tornMemory{Region: p.Region(), bufOff: int64(p.BufferOffset(0))}
	mem.after = func(n int) {
		time.Sleep(5 * time.Millisecond)
		p.SetTick(0, int32(n+1))
	}

	h, err := telemetry.ParseHeader(mem)
	if err != nil {
		t.Fatal(err)
	}
	const budget = 12 * time.Millisecond
	_, err = telemetry.Selector{MaxAttempts: 1000, Budget: budget}.Select(mem, h)
	var te *telemetry.TimeoutError
	if !errors.As(err, &te) || !errors.Is(err, telemetry.ErrTimeout) {
		t.Fatalf("err = %v, want *TimeoutError", err)
	}
	if te.Elapsed < budget {
		t.Fatalf("gave up after %v, before the %v budget", te.Elapsed, budget)
	}
	if te.Attempts >= 1000 || te.Attempts > 10 {
		t.Fatalf("attempts = %d, want the budget to end the retries", te.Attempts)
	}
	if mem.copies != te.Attempts {
		t.Fatalf("copies = %d, attempts = %d", mem.copies, te.Attempts)
	}
}

func TestSelectDefaultAttempts(t *testing.T) {
	p := newProducer(t, twoVarLayout)
	mem := &tornMemory{Region: p.Region(), bufOff: int64(p.BufferOffset(0))}
	mem.after = func(n int) { p.SetTick(0, int32(n)) }

	h, _ := telemetry.ParseHeader(mem)
	if _, err := (telemetry.Selector{}).Select(mem, h); !errors.Is(err, telemetry.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if mem.copies != telemetry.DefaultSelectAttempts {
		t.Fatalf("copies = %d, want %d", mem.copies, telemetry.DefaultSelectAttempts)
	}
}
