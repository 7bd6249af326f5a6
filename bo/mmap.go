package bo

import "golang.org/x/sys/unix"

// Mmap is a mapped view of a buffer object's memory.
type Mmap []byte

func (m Mmap) Unmap() error {
	return unix.Munmap(m)
}
