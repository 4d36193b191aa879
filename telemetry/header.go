package telemetry

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Memory is the live region the header and buffers are read from.
// *shm.Region is the production implementation.
type Memory interface {
	io.ReaderAt
	LoadInt32(off int64) (int32, error)
	Len() int
	Close() error
}

// Layout constants of protocol version 2.
const (
	Version       = 2
	HeaderSize    = 112
	VarHeaderSize = 144
	MaxBuffers    = 4

	StatusConnected = 0x1

	offSessionInfoUpdate = 12
	offNumVars           = 24
	offVarHeaderOffset   = 28

	bufDescOffset = 48
	bufDescSize   = 16
)

// BufferDesc describes one of the rotating data buffers.
type BufferDesc struct {
	Tick   int32 // last tick written into the buffer
	Offset int32 // byte offset of the buffer from the region start
}

// Header is a decoded copy of the region's top-level header.
type Header struct {
	Version  int32
	Status   int32
	TickRate float64 // Hz

	SessionInfoUpdate int32
	SessionInfoLen    int32
	SessionInfoOffset int32

	NumVars         int32
	VarHeaderOffset int32

	NumBuf  int32
	BufLen  int32
	Buffers []BufferDesc
}

// Active reports whether the producer flags the simulator as running.
func (h *Header) Active() bool { return h.Status&StatusConnected != 0 }

// TickPeriod returns the producer's update period, defaulting to 60Hz when
// the header carries no rate.
func (h *Header) TickPeriod() time.Duration {
	if h.TickRate <= 0 {
		return time.Second / 60
	}
	return time.Duration(float64(time.Second) / h.TickRate)
}

// TickOffset returns the region offset of buffer i's tick counter.
func TickOffset(i int) int64 {
	return bufDescOffset + int64(i)*bufDescSize
}

// ParseHeader reads and validates the header at the start of mem. Every
// index field must point inside the mapped region.
func ParseHeader(mem Memory) (*Header, error) {
	size := int64(mem.Len())
	if size < HeaderSize {
		return nil, fmt.Errorf("%w: region is %d bytes, header needs %d", ErrMalformed, size, HeaderSize)
	}

	var b [HeaderSize]byte
	if _, err := mem.ReadAt(b[:], 0); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	i32 := func(off int) int32 { return int32(binary.LittleEndian.Uint32(b[off:])) }

	h := &Header{
		Version:           i32(0),
		Status:            i32(4),
		TickRate:          float64(i32(8)),
		SessionInfoUpdate: i32(offSessionInfoUpdate),
		SessionInfoLen:    i32(16),
		SessionInfoOffset: i32(20),
		NumVars:           i32(offNumVars),
		VarHeaderOffset:   i32(offVarHeaderOffset),
		NumBuf:            i32(32),
		BufLen:            i32(36),
	}

	if h.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, h.Version)
	}
	if h.TickRate < 0 {
		return nil, fmt.Errorf("%w: tick rate %v", ErrMalformed, h.TickRate)
	}
	if h.NumBuf < 1 || h.NumBuf > MaxBuffers {
		return nil, fmt.Errorf("%w: buffer count %d", ErrMalformed, h.NumBuf)
	}
	if h.BufLen <= 0 {
		return nil, fmt.Errorf("%w: buffer length %d", ErrMalformed, h.BufLen)
	}
	if h.NumVars < 0 || !inside(h.VarHeaderOffset, int64(h.NumVars)*VarHeaderSize, size) {
		return nil, fmt.Errorf("%w: variable table [%d, +%d×%d) outside region of %d bytes",
			ErrMalformed, h.VarHeaderOffset, h.NumVars, VarHeaderSize, size)
	}
	if h.SessionInfoLen < 0 || !inside(h.SessionInfoOffset, int64(h.SessionInfoLen), size) {
		return nil, fmt.Errorf("%w: session info [%d, +%d) outside region of %d bytes",
			ErrMalformed, h.SessionInfoOffset, h.SessionInfoLen, size)
	}

	h.Buffers = make([]BufferDesc, h.NumBuf)
	for i := range h.Buffers {
		off := int(TickOffset(i))
		d := BufferDesc{Tick: i32(off), Offset: i32(off + 4)}
		if !inside(d.Offset, int64(h.BufLen), size) {
			return nil, fmt.Errorf("%w: buffer %d [%d, +%d) outside region of %d bytes",
				ErrMalformed, i, d.Offset, h.BufLen, size)
		}
		h.Buffers[i] = d
	}
	return h, nil
}

func inside(off int32, n, size int64) bool {
	return off >= 0 && int64(off)+n <= size
}
