// Package fakesim lays out a telemetry region the way the simulator does and
// writes samples into it. Tests use it as a producer double; the mock
// command uses it to publish a live random-walk region.
package fakesim

import (
	"fmt"

	"github.com/AlephTX/simtelem/telemetry"
)

// Var declares one variable of the layout.
type Var struct {
	Name        string
	Type        telemetry.VarType
	Count       int // 0 means 1
	Desc        string
	Unit        string
	CountAsTime bool
}

func (v Var) count() int {
	if v.Count <= 0 {
		return 1
	}
	return v.Count
}

// Layout describes the region to build.
type Layout struct {
	Vars            []Var
	Buffers         int // 1..4, 0 means 3
	TickRate        int // Hz, 0 means 60
	SessionInfoSize int // bytes reserved for the session document, 0 means 4096
	BufferPadding   int // extra bytes at the end of each buffer
}

func (l Layout) buffers() int {
	if l.Buffers == 0 {
		return 3
	}
	return l.Buffers
}

func (l Layout) tickRate() int {
	if l.TickRate == 0 {
		return 60
	}
	return l.TickRate
}

func (l Layout) sessionInfoSize() int {
	if l.SessionInfoSize == 0 {
		return 4096
	}
	return l.SessionInfoSize
}

// plan holds the computed offsets of a layout.
type plan struct {
	varOffsets  []int // per Vars entry, within a buffer
	bufLen      int
	varTable    int
	sessionInfo int
	bufOffsets  []int
	size        int
}

func align(n, a int) int { return (n + a - 1) / a * a }

func (l Layout) plan() (plan, error) {
	if n := l.buffers(); n < 1 || n > telemetry.MaxBuffers {
		return plan{}, fmt.Errorf("fakesim: %d buffers, want 1..%d", n, telemetry.MaxBuffers)
	}
	var p plan
	off := 0
	for _, v := range l.Vars {
		size := v.Type.Size()
		if size == 0 {
			// Unknown types still need a slot so offsets stay distinct.
			size = 4
		}
		off = align(off, size)
		p.varOffsets = append(p.varOffsets, off)
		off += size * v.count()
	}
	p.bufLen = align(off+l.BufferPadding, 16)
	if p.bufLen == 0 {
		p.bufLen = 16
	}

	p.varTable = telemetry.HeaderSize
	p.sessionInfo = p.varTable + len(l.Vars)*telemetry.VarHeaderSize
	pos := align(p.sessionInfo+l.sessionInfoSize(), 16)
	for i := 0; i < l.buffers(); i++ {
		p.bufOffsets = append(p.bufOffsets, pos)
		pos += p.bufLen
	}
	p.size = pos
	return p, nil
}

// Size returns the number of bytes the region needs.
func (l Layout) Size() (int, error) {
	p, err := l.plan()
	if err != nil {
		return 0, err
	}
	return p.size, nil
}
