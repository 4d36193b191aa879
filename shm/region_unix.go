//go:build !windows

package shm

import (
	"fmt"
	"os"
	"strings"

	"github.com/edsrzf/mmap-go"
	goshm "github.com/tmthrgd/go-shm"
)

// DefaultName is the well-known region name published by the simulator,
// looked up under /dev/shm on POSIX systems.
const DefaultName = "IRSDKMemMapFileName"

func posixName(name string) string {
	name = strings.TrimPrefix(name, `Local\`)
	return strings.TrimPrefix(name, "/")
}

// Open maps the named shared memory region read-only. A missing region is
// reported as ErrNotFound: the producer is simply not running.
func Open(name string) (*Region, error) {
	f, err := goshm.Open(posixName(name), os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("shm_open %s: %w", name, err)
	}
	defer f.Close()

	r, err := mapFile(name, f, mmap.RDONLY)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Create creates (or truncates) the named region with the given size and
// maps it read-write. Used by producers and test doubles.
func Create(name string, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrEmpty, size)
	}
	f, err := goshm.Open(posixName(name), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("shm_open %s: %w", name, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("truncate: %w", err)
	}
	return mapFile(name, f, mmap.RDWR)
}

// Remove unlinks a region created with Create. Existing mappings stay valid
// until closed.
func Remove(name string) error {
	err := goshm.Unlink(posixName(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shm_unlink %s: %w", name, err)
	}
	return nil
}
