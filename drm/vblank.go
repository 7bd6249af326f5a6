package drm

import (
	"fmt"
	"unsafe"
)

const vblankRelative = 0x1

// sysWaitVBlank overlays the kernel's request/reply union. The
// request's signal field and the reply's tval_sec share an offset.
type sysWaitVBlank struct {
	typ      uint32
	sequence uint32
	tvalSec  int64
	tvalUsec int64
}

// VBlank performs a relative, sequence-0 vblank query and returns
// the current frame counter and its timestamp.
func (c *Card) VBlank() (seq uint32, sec, usec int64, err error) {
	arg := sysWaitVBlank{typ: vblankRelative}
	err = ioctl(c.file, iowr(drmType, nrWaitVBlank, unsafe.Sizeof(arg)), unsafe.Pointer(&arg))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("wait vblank: %w", err)
	}
	return arg.sequence, arg.tvalSec, arg.tvalUsec, nil
}
