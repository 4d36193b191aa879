// Package shm maps the simulator's shared telemetry region and exposes
// bounds-checked, read-only access to it.
//
// The region is written in place by an external process with no locks.
// Region never caches: every read goes to the live mapping, and 32-bit
// counters are loaded atomically so a reader sees either the old or the
// new value of a tick, never a mix.
package shm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/edsrzf/mmap-go"
)

var (
	ErrNotFound    = errors.New("shm: region not found")
	ErrOutOfBounds = errors.New("shm: read out of bounds")
	ErrClosed      = errors.New("shm: region closed")
	ErrEmpty       = errors.New("shm: region is empty")
)

// Region is a mapped view of a shared memory region.
//
// A Region is not safe for concurrent Close and reads; reads themselves may
// run concurrently since they never mutate the Region.
type Region struct {
	name   string
	data   []byte
	unmap  func() error
	closed atomic.Bool
}

var _ io.ReaderAt = (*Region)(nil)

// FromBytes wraps b as a Region. The bytes are shared, not copied, so the
// caller may keep writing into b to play the producer's role.
func FromBytes(name string, b []byte) *Region {
	return &Region{name: name, data: b}
}

// OpenFile maps a regular file (for example a region captured to disk)
// read-only.
func OpenFile(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return mapFile(path, f, mmap.RDONLY)
}

func mapFile(name string, f *os.File, prot int) (*Region, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.Size() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, name)
	}

	m, err := mmap.Map(f, prot, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", name, err)
	}
	return &Region{name: name, data: m, unmap: m.Unmap}, nil
}

// Name returns the name the region was opened with.
func (r *Region) Name() string { return r.name }

// Len returns the size of the mapping in bytes.
func (r *Region) Len() int { return len(r.data) }

// Bytes returns the live mapping. Regions opened with Open or OpenFile are
// mapped read-only and writing into the slice faults.
func (r *Region) Bytes() []byte { return r.data }

func (r *Region) check(off int64, n int) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if off < 0 || n < 0 || off > int64(len(r.data)) || int64(n) > int64(len(r.data))-off {
		return fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfBounds, off, off+int64(n), len(r.data))
	}
	return nil
}

// ReadAt copies len(p) bytes starting at off. A request that does not fit
// entirely inside the region copies nothing and fails with ErrOutOfBounds.
func (r *Region) ReadAt(p []byte, off int64) (int, error) {
	if err := r.check(off, len(p)); err != nil {
		return 0, err
	}
	return copy(p, r.data[off:]), nil
}

// LoadInt32 reads the little-endian int32 at off. Aligned words are loaded
// atomically.
func (r *Region) LoadInt32(off int64) (int32, error) {
	if err := r.check(off, 4); err != nil {
		return 0, err
	}
	p := unsafe.Pointer(&r.data[off])
	if uintptr(p)%4 != 0 {
		return int32(binary.LittleEndian.Uint32(r.data[off:])), nil
	}
	v := atomic.LoadUint32((*uint32)(p))
	var b [4]byte
	binary.NativeEndian.PutUint32(b[:], v)
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}

// StoreInt32 writes v little-endian at off, atomically when aligned. Only
// meaningful on writable regions (Create or FromBytes).
func (r *Region) StoreInt32(off int64, v int32) error {
	if err := r.check(off, 4); err != nil {
		return err
	}
	p := unsafe.Pointer(&r.data[off])
	if uintptr(p)%4 != 0 {
		binary.LittleEndian.PutUint32(r.data[off:], uint32(v))
		return nil
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	atomic.StoreUint32((*uint32)(p), binary.NativeEndian.Uint32(b[:]))
	return nil
}

// Close releases the mapping. It is safe to call more than once.
func (r *Region) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if r.unmap == nil {
		return nil
	}
	err := r.unmap()
	r.data = nil
	return err
}
