// Package shm reads camera frames out of the POSIX shared memory segments the
// QNX driver publishes: a fixed metadata record, a name-pointer segment and
// the pixel segment the pointer names.
package shm

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// DefaultDir is where the kernel exposes POSIX shared memory objects.
// Tests point this at a temp directory instead.
const DefaultDir = "/dev/shm"

// readSegment maps the named segment read-only for exactly size bytes, copies
// the contents out and releases the mapping and fd before returning. It is
// called on every poll cycle, so nothing may leak on any path.
func readSegment(dir, name string, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("segment %s: invalid size %d", name, size)
	}
	path := filepath.Join(dir, strings.TrimPrefix(name, "/"))

	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", name, err)
	}
	defer unix.Close(fd)

	// Accessing pages past the segment's end faults the process, so verify
	// the producer sized it as promised before mapping.
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("stat segment %s: %w", name, err)
	}
	if st.Size < int64(size) {
		return nil, fmt.Errorf("segment %s truncated: have %d bytes, need %d", name, st.Size, size)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map segment %s (%d bytes): %w", name, size, err)
	}
	defer unix.Munmap(data)

	out := make([]byte, size)
	copy(out, data)
	return out, nil
}
