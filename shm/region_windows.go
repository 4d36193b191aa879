//go:build windows

package shm

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// DefaultName is the well-known region name published by the simulator.
const DefaultName = `Local\IRSDKMemMapFileName`

var procOpenFileMappingW = windows.NewLazySystemDLL("kernel32.dll").NewProc("OpenFileMappingW")

// openFileMapping opens an existing named mapping. x/sys/windows has no
// binding for it.
func openFileMapping(access uint32, name *uint16) (windows.Handle, error) {
	if err := procOpenFileMappingW.Find(); err != nil {
		return 0, err
	}
	r, _, e := procOpenFileMappingW.Call(uintptr(access), 0, uintptr(unsafe.Pointer(name)))
	if r == 0 {
		if errno, ok := e.(windows.Errno); ok && errno != 0 {
			return 0, errno
		}
		return 0, windows.ERROR_INVALID_HANDLE
	}
	return windows.Handle(r), nil
}

// Open maps the named file mapping read-only. A missing mapping is reported
// as ErrNotFound: the producer is simply not running.
func Open(name string) (*Region, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("region name %q: %w", name, err)
	}
	h, err := openFileMapping(windows.FILE_MAP_READ, p)
	if err != nil {
		if errors.Is(err, windows.ERROR_FILE_NOT_FOUND) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("OpenFileMapping %s: %w", name, err)
	}
	return mapView(name, h, windows.FILE_MAP_READ, 0)
}

// Create creates the named file mapping backed by the paging file and maps
// it read-write. Used by producers and test doubles.
func Create(name string, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrEmpty, size)
	}
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("region name %q: %w", name, err)
	}
	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, 0, uint32(size), p)
	if err != nil {
		return nil, fmt.Errorf("CreateFileMapping %s: %w", name, err)
	}
	return mapView(name, h, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, size)
}

// Remove is a no-op on Windows: a paging-file mapping disappears when its
// last handle is closed.
func Remove(string) error { return nil }

func mapView(name string, h windows.Handle, access uint32, size int) (*Region, error) {
	addr, err := windows.MapViewOfFile(h, access, 0, 0, 0)
	if err != nil {
		windows.CloseHandle(h)
		return nil, fmt.Errorf("MapViewOfFile %s: %w", name, err)
	}

	if size == 0 {
		var mbi windows.MemoryBasicInformation
		if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
			windows.UnmapViewOfFile(addr)
			windows.CloseHandle(h)
			return nil, fmt.Errorf("VirtualQuery %s: %w", name, err)
		}
		size = int(mbi.RegionSize)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	unmap := func() error {
		var firstErr error
		if err := windows.UnmapViewOfFile(addr); err != nil {
			firstErr = err
		}
		if err := windows.CloseHandle(h); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}
	return &Region{name: name, data: data, unmap: unmap}, nil
}
