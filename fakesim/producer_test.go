package fakesim

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/AlephTX/simtelem/telemetry"
)

func TestLayoutOffsets(t *testing.T) {
	l := Layout{
		Vars: []Var{
			{Name: "Flag", Type: telemetry.TypeBool},
			{Name: "Speed", Type: telemetry.TypeFloat},
			{Name: "Time", Type: telemetry.TypeDouble},
		},
		Buffers: 2,
	}
	p, err := NewInMemory(l)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int{"Flag": 0, "Speed": 4, "Time": 8}
	for name, off := range want {
		if got, ok := p.VarOffset(name); !ok || got != off {
			t.Errorf("VarOffset(%s) = %d, %v; want %d", name, got, ok, off)
		}
	}
	if p.BufLen() != 16 {
		t.Errorf("BufLen = %d, want 16", p.BufLen())
	}
	if p.BufferOffset(1)-p.BufferOffset(0) != p.BufLen() {
		t.Errorf("buffers not contiguous: %d, %d", p.BufferOffset(0), p.BufferOffset(1))
	}
}

func TestTooManyBuffers(t *testing.T) {
	if _, err := NewInMemory(Layout{Buffers: 5}); err == nil {
		t.Fatal("expected an error for 5 buffers")
	}
}

func TestPublishRotatesAndStampsTick(t *testing.T) {
	p, err := NewInMemory(Layout{Vars: []Var{{Name: "Speed", Type: telemetry.TypeFloat}}, Buffers: 3})
	if err != nil {
		t.Fatal(err)
	}
	for want := int32(1); want <= 4; want++ {
		tick, err := p.Publish(func(f *Frame) { f.SetFloat32("Speed", float32(want)) })
		if err != nil {
			t.Fatal(err)
		}
		if tick != want {
			t.Fatalf("tick = %d, want %d", tick, want)
		}
	}
	// Four publishes over three buffers: buffer 0 holds ticks 1 then 4.
	if p.Tick(0) != 4 || p.Tick(1) != 2 || p.Tick(2) != 3 {
		t.Fatalf("ticks = %d %d %d", p.Tick(0), p.Tick(1), p.Tick(2))
	}
	b := p.Region().Bytes()[p.BufferOffset(0):]
	if got := math.Float32frombits(binary.LittleEndian.Uint32(b)); got != 4 {
		t.Fatalf("buffer 0 Speed = %v, want 4", got)
	}
}

func TestFrameErrors(t *testing.T) {
	p, err := NewInMemory(Layout{Vars: []Var{{Name: "Gear", Type: telemetry.TypeInt}}})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		fill func(*Frame)
		want string
	}{
		{"unknown", func(f *Frame) { f.SetInt("Nope", 1) }, "no variable"},
		{"wrong type", func(f *Frame) { f.SetFloat32("Gear", 1) }, "is int"},
		{"too many", func(f *Frame) { f.SetInt("Gear", 1, 2) }, "count 1"},
	}
	for _, tt := range tests {
		err := p.Write(0, tt.fill)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: err = %v, want %q", tt.name, err, tt.want)
		}
	}
}

func TestSessionInfoTooLarge(t *testing.T) {
	p, err := NewInMemory(Layout{SessionInfoSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetSessionInfo("123456789"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestMockStep(t *testing.T) {
	p, err := NewInMemory(Layout{Vars: DefaultVars})
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewMock(p, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := int32(1); i <= 10; i++ {
		tick, err := m.Step(time.Second / 60)
		if err != nil {
			t.Fatal(err)
		}
		if tick != i {
			t.Fatalf("tick = %d, want %d", tick, i)
		}
	}
}
