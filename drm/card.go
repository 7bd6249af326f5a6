// Package drm issues the kernel mode-setting and GEM ioctls that the
// driver core builds on: buffer allocation and mapping, framebuffer
// registration, CPU-access fencing, page flips, and vblank queries.
//
// The ioctl argument structs below mirror the kernel's structs
// field for field and must not be reordered.
package drm

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DRM ioctl numbers.
const (
	drmType = 'd'

	nrGemClose   = 0x09
	nrGemFlink   = 0x0a
	nrWaitVBlank = 0x3a
	nrAddFB      = 0xae
	nrRmFB       = 0xaf
	nrPageFlip   = 0xb0
	nrAddFB2     = 0xb8

	// Driver-private GEM commands, offset from the command base.
	commandBase  = 0x40
	nrGemCreate  = commandBase + 0x00
	nrGemMap     = commandBase + 0x01
	nrCPUAcquire = commandBase + 0x08
	nrCPURelease = commandBase + 0x09
)

// BONonContig allows a physically non-contiguous allocation.
const BONonContig = 1 << 0

// Card wraps an open DRM device node.
type Card struct {
	file *os.File
}

func NewCard(file *os.File) *Card {
	return &Card{file: file}
}

func (c *Card) File() *os.File {
	return c.file
}

func (c *Card) Close() error {
	return c.file.Close()
}

type sysGemCreate struct {
	size   uint64
	flags  uint32
	handle uint32
}

func (c *Card) CreateBuffer(size uint64) (uint32, error) {
	arg := sysGemCreate{size: size, flags: BONonContig}
	err := ioctl(c.file, iowr(drmType, nrGemCreate, unsafe.Sizeof(arg)), unsafe.Pointer(&arg))
	if err != nil {
		return 0, fmt.Errorf("GEM create {size: %v flags: %#x}: %w", size, arg.flags, err)
	}
	return arg.handle, nil
}

type sysGemClose struct {
	handle uint32
	pad    uint32
}

func (c *Card) DestroyBuffer(handle uint32) error {
	arg := sysGemClose{handle: handle}
	err := ioctl(c.file, iow(drmType, nrGemClose, unsafe.Sizeof(arg)), unsafe.Pointer(&arg))
	if err != nil {
		return fmt.Errorf("GEM close [BO:%v]: %w", handle, err)
	}
	return nil
}

type sysGemMap struct {
	handle uint32
	pad    uint32
	offset uint64
}

func (c *Card) MapBuffer(handle uint32, size uint64) ([]byte, error) {
	arg := sysGemMap{handle: handle}
	err := ioctl(c.file, iowr(drmType, nrGemMap, unsafe.Sizeof(arg)), unsafe.Pointer(&arg))
	if err != nil {
		return nil, fmt.Errorf("GEM map offset [BO:%v]: %w", handle, err)
	}

	m, err := unix.Mmap(int(c.file.Fd()), int64(arg.offset), int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap [BO:%v]: %w", handle, err)
	}
	return m, nil
}

type sysGemFlink struct {
	handle uint32
	name   uint32
}

func (c *Card) BufferName(handle uint32) (uint32, error) {
	arg := sysGemFlink{handle: handle}
	err := ioctl(c.file, iowr(drmType, nrGemFlink, unsafe.Sizeof(arg)), unsafe.Pointer(&arg))
	if err != nil {
		return 0, fmt.Errorf("GEM flink [BO:%v]: %w", handle, err)
	}
	return arg.name, nil
}

const cpuAcquireExclusive = 0x1

type sysCPUAcquire struct {
	handle uint32
	flags  uint32
}

type sysCPURelease struct {
	handle uint32
}

func (c *Card) AcquireCPU(handle uint32, exclusive bool) error {
	arg := sysCPUAcquire{handle: handle}
	if exclusive {
		arg.flags = cpuAcquireExclusive
	}
	err := ioctl(c.file, iowr(drmType, nrCPUAcquire, unsafe.Sizeof(arg)), unsafe.Pointer(&arg))
	if err != nil {
		return fmt.Errorf("GEM CPU acquire [BO:%v]: %w", handle, err)
	}
	return nil
}

func (c *Card) ReleaseCPU(handle uint32) error {
	arg := sysCPURelease{handle: handle}
	err := ioctl(c.file, iowr(drmType, nrCPURelease, unsafe.Sizeof(arg)), unsafe.Pointer(&arg))
	if err != nil {
		return fmt.Errorf("GEM CPU release [BO:%v]: %w", handle, err)
	}
	return nil
}
