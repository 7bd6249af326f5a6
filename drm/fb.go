package drm

import (
	"fmt"
	"unsafe"
)

type sysFBCmd struct {
	fbID   uint32
	width  uint32
	height uint32
	pitch  uint32
	bpp    uint32
	depth  uint32
	handle uint32
}

func (c *Card) AddFB(width, height uint32, depth, bpp uint8, pitch, handle uint32) (uint32, error) {
	arg := sysFBCmd{
		width:  width,
		height: height,
		pitch:  pitch,
		bpp:    uint32(bpp),
		depth:  uint32(depth),
		handle: handle,
	}
	err := ioctl(c.file, iowr(drmType, nrAddFB, unsafe.Sizeof(arg)), unsafe.Pointer(&arg))
	if err != nil {
		return 0, fmt.Errorf("add FB: %w", err)
	}
	return arg.fbID, nil
}

type sysFBCmd2 struct {
	fbID        uint32
	width       uint32
	height      uint32
	pixelFormat uint32
	flags       uint32
	handles     [4]uint32
	pitches     [4]uint32
	offsets     [4]uint32
	modifier    [4]uint64
}

func (c *Card) AddFB2(width, height, format uint32, handles, pitches, offsets [4]uint32) (uint32, error) {
	arg := sysFBCmd2{
		width:       width,
		height:      height,
		pixelFormat: format,
		handles:     handles,
		pitches:     pitches,
		offsets:     offsets,
	}
	err := ioctl(c.file, iowr(drmType, nrAddFB2, unsafe.Sizeof(arg)), unsafe.Pointer(&arg))
	if err != nil {
		return 0, fmt.Errorf("add FB2: %w", err)
	}
	return arg.fbID, nil
}

func (c *Card) RmFB(fb uint32) error {
	arg := fb
	err := ioctl(c.file, iowr(drmType, nrRmFB, unsafe.Sizeof(arg)), unsafe.Pointer(&arg))
	if err != nil {
		return fmt.Errorf("remove [FB:%v]: %w", fb, err)
	}
	return nil
}
