package drm

import (
	"fmt"
	"unsafe"
)

// PageFlipEvent asks the kernel to deliver a flip-complete event on
// the card's event stream once the flip lands.
const PageFlipEvent = 0x01

type sysPageFlip struct {
	crtcID   uint32
	fbID     uint32
	flags    uint32
	reserved uint32
	userData uint64
}

// PageFlip programs crtc to scan out fb at its next vblank. token is
// echoed back in the completion event.
func (c *Card) PageFlip(crtc, fb uint32, token uint64) error {
	arg := sysPageFlip{
		crtcID:   crtc,
		fbID:     fb,
		flags:    PageFlipEvent,
		userData: token,
	}
	err := ioctl(c.file, iowr(drmType, nrPageFlip, unsafe.Sizeof(arg)), unsafe.Pointer(&arg))
	if err != nil {
		return fmt.Errorf("page flip [CRTC:%v] -> [FB:%v]: %w", crtc, fb, err)
	}
	return nil
}
