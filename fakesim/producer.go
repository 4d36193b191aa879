package fakesim

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/AlephTX/simtelem/shm"
	"github.com/AlephTX/simtelem/telemetry"
	"golang.org/x/text/encoding/charmap"
)

// Producer writes a telemetry region. Like the simulator, it fills a data
// buffer first and stamps the buffer's tick last.
type Producer struct {
	region *shm.Region
	layout Layout
	plan   plan
	index  map[string]int

	tick          int32
	next          int
	sessionUpdate int32
}

// New lays out l in region, which must be writable and large enough.
func New(region *shm.Region, l Layout) (*Producer, error) {
	p, err := l.plan()
	if err != nil {
		return nil, err
	}
	if region.Len() < p.size {
		return nil, fmt.Errorf("fakesim: region is %d bytes, layout needs %d", region.Len(), p.size)
	}

	pr := &Producer{region: region, layout: l, plan: p, index: make(map[string]int, len(l.Vars))}
	for i, v := range l.Vars {
		pr.index[v.Name] = i
	}
	pr.writeHeader()
	for i := range l.Vars {
		pr.writeVarHeader(i)
	}
	return pr, nil
}

// NewInMemory lays out l in a fresh in-process region.
func NewInMemory(l Layout) (*Producer, error) {
	size, err := l.Size()
	if err != nil {
		return nil, err
	}
	return New(shm.FromBytes("fakesim", make([]byte, size)), l)
}

// Region returns the region being written.
func (p *Producer) Region() *shm.Region { return p.region }

func (p *Producer) put32(off int, v int32) {
	binary.LittleEndian.PutUint32(p.region.Bytes()[off:], uint32(v))
}

func (p *Producer) writeHeader() {
	p.put32(0, telemetry.Version)
	p.put32(4, telemetry.StatusConnected)
	p.put32(8, int32(p.layout.tickRate()))
	p.put32(12, p.sessionUpdate)
	p.put32(16, int32(p.layout.sessionInfoSize()))
	p.put32(20, int32(p.plan.sessionInfo))
	p.put32(24, int32(len(p.layout.Vars)))
	p.put32(28, int32(p.plan.varTable))
	p.put32(32, int32(p.layout.buffers()))
	p.put32(36, int32(p.plan.bufLen))
	for i, off := range p.plan.bufOffsets {
		p.region.StoreInt32(telemetry.TickOffset(i), 0)
		p.put32(int(telemetry.TickOffset(i))+4, int32(off))
	}
}

func putText(dst []byte, s string) {
	clear(dst)
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		b = []byte(s)
	}
	copy(dst[:len(dst)-1], b)
}

func (p *Producer) writeVarHeader(i int) {
	v := p.layout.Vars[i]
	base := p.plan.varTable + i*telemetry.VarHeaderSize
	h := p.region.Bytes()[base : base+telemetry.VarHeaderSize]
	clear(h)
	binary.LittleEndian.PutUint32(h[0:], uint32(v.Type))
	binary.LittleEndian.PutUint32(h[4:], uint32(p.plan.varOffsets[i]))
	binary.LittleEndian.PutUint32(h[8:], uint32(v.count()))
	if v.CountAsTime {
		h[12] = 1
	}
	putText(h[16:48], v.Name)
	putText(h[48:112], v.Desc)
	putText(h[112:144], v.Unit)
}

// SetStatus overwrites the status field.
func (p *Producer) SetStatus(status int32) { p.put32(4, status) }

// SetVersion overwrites the protocol version field.
func (p *Producer) SetVersion(v int32) { p.put32(0, v) }

// SetTickRate overwrites the tick rate field.
func (p *Producer) SetTickRate(hz int32) { p.put32(8, hz) }

// SetHeaderField overwrites an arbitrary header word, for corruption tests.
func (p *Producer) SetHeaderField(off int, v int32) { p.put32(off, v) }

// SetSessionInfo writes the session document and bumps its update counter.
func (p *Producer) SetSessionInfo(text string) error {
	size := p.layout.sessionInfoSize()
	if len(text) >= size {
		return fmt.Errorf("fakesim: session info is %d bytes, room for %d", len(text), size-1)
	}
	putText(p.region.Bytes()[p.plan.sessionInfo:p.plan.sessionInfo+size], text)
	p.sessionUpdate++
	p.put32(12, p.sessionUpdate)
	return nil
}

// RenameVar changes a variable's name in the descriptor table. Callers bump
// the session counter (SetSessionInfo) to announce the change.
func (p *Producer) RenameVar(i int, name string) {
	delete(p.index, p.layout.Vars[i].Name)
	vars := append([]Var(nil), p.layout.Vars...)
	vars[i].Name = name
	p.layout.Vars = vars
	p.index[name] = i
	p.writeVarHeader(i)
}

// BufLen returns the length of each data buffer.
func (p *Producer) BufLen() int { return p.plan.bufLen }

// BufferOffset returns the region offset of data buffer i.
func (p *Producer) BufferOffset(i int) int { return p.plan.bufOffsets[i] }

// VarOffset returns the buffer offset of the named variable.
func (p *Producer) VarOffset(name string) (int, bool) {
	i, ok := p.index[name]
	if !ok {
		return 0, false
	}
	return p.plan.varOffsets[i], true
}

// SetTick stamps buffer i with tick.
func (p *Producer) SetTick(i int, tick int32) {
	p.region.StoreInt32(telemetry.TickOffset(i), tick)
}

// Tick returns the current tick of buffer i.
func (p *Producer) Tick(i int) int32 {
	v, _ := p.region.LoadInt32(telemetry.TickOffset(i))
	return v
}

// Write fills buffer i without touching its tick.
func (p *Producer) Write(i int, fill func(*Frame)) error {
	off := p.plan.bufOffsets[i]
	f := &Frame{p: p, buf: p.region.Bytes()[off : off+p.plan.bufLen]}
	fill(f)
	return f.err
}

// Publish fills the next buffer in rotation and stamps it with the next
// tick, which it returns.
func (p *Producer) Publish(fill func(*Frame)) (int32, error) {
	i := p.next
	if err := p.Write(i, fill); err != nil {
		return 0, err
	}
	p.tick++
	p.SetTick(i, p.tick)
	p.next = (p.next + 1) % len(p.plan.bufOffsets)
	return p.tick, nil
}

// Frame writes variable values into one data buffer. The first error is
// kept and reported by Write or Publish.
type Frame struct {
	p   *Producer
	buf []byte
	err error
}

func (f *Frame) slot(name string, t telemetry.VarType, n int) []byte {
	if f.err != nil {
		return nil
	}
	i, ok := f.p.index[name]
	if !ok {
		f.err = fmt.Errorf("fakesim: no variable %q", name)
		return nil
	}
	v := f.p.layout.Vars[i]
	if v.Type != t {
		f.err = fmt.Errorf("fakesim: %q is %s, not %s", name, v.Type, t)
		return nil
	}
	if n > v.count() {
		f.err = fmt.Errorf("fakesim: %d values for %q of count %d", n, name, v.count())
		return nil
	}
	off := f.p.plan.varOffsets[i]
	return f.buf[off : off+t.Size()*v.count()]
}

func (f *Frame) SetFloat32(name string, vs ...float32) {
	if b := f.slot(name, telemetry.TypeFloat, len(vs)); b != nil {
		for i, v := range vs {
			binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
		}
	}
}

func (f *Frame) SetFloat64(name string, vs ...float64) {
	if b := f.slot(name, telemetry.TypeDouble, len(vs)); b != nil {
		for i, v := range vs {
			binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
		}
	}
}

func (f *Frame) SetInt(name string, vs ...int32) {
	if b := f.slot(name, telemetry.TypeInt, len(vs)); b != nil {
		for i, v := range vs {
			binary.LittleEndian.PutUint32(b[i*4:], uint32(v))
		}
	}
}

func (f *Frame) SetBits(name string, vs ...uint32) {
	if b := f.slot(name, telemetry.TypeBitfield, len(vs)); b != nil {
		for i, v := range vs {
			binary.LittleEndian.PutUint32(b[i*4:], v)
		}
	}
}

func (f *Frame) SetBool(name string, vs ...bool) {
	if b := f.slot(name, telemetry.TypeBool, len(vs)); b != nil {
		for i, v := range vs {
			b[i] = 0
			if v {
				b[i] = 1
			}
		}
	}
}

func (f *Frame) SetChars(name string, s string) {
	if b := f.slot(name, telemetry.TypeChar, len(s)); b != nil {
		clear(b)
		copy(b, s)
	}
}
