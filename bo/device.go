// Package bo manages the buffer objects that back pixel surfaces on
// display hardware.
//
// A BO is a reference-counted handle to a region of display-capable
// memory, registered with the kernel as a framebuffer so that it can
// be scanned out or flipped to. Host access to the memory is fenced
// against the display engine with AcquireCPU and ReleaseCPU.
package bo

// A Card performs the hardware operations a Device needs. It is
// implemented by drm.Card; tests substitute fakes.
type Card interface {
	// CreateBuffer allocates size bytes of display-capable memory
	// and returns its handle. The memory need not be physically
	// contiguous.
	CreateBuffer(size uint64) (handle uint32, err error)
	DestroyBuffer(handle uint32) error

	// MapBuffer maps the buffer into the process's address space.
	MapBuffer(handle uint32, size uint64) ([]byte, error)

	// AddFB registers a legacy, single-plane framebuffer for the
	// buffer and returns its id.
	AddFB(width, height uint32, depth, bpp uint8, pitch, handle uint32) (fb uint32, err error)
	// AddFB2 registers a framebuffer described by a four-cc pixel
	// format.
	AddFB2(width, height, format uint32, handles, pitches, offsets [4]uint32) (fb uint32, err error)
	RmFB(fb uint32) error

	// BufferName exports a stable cross-process name for the buffer.
	BufferName(handle uint32) (uint32, error)

	// AcquireCPU fences the buffer for host access, shared unless
	// exclusive is set. ReleaseCPU drops the fence.
	AcquireCPU(handle uint32, exclusive bool) error
	ReleaseCPU(handle uint32) error

	// VBlank performs a relative, sequence-0 vblank query against
	// the card's current output.
	VBlank() (seq uint32, sec, usec int64, err error)
}

// A Device creates and destroys buffer objects on a card. It is
// created once at driver attach.
type Device struct {
	card Card
}

func NewDevice(card Card) *Device {
	return &Device{card: card}
}

func (dev *Device) Card() Card {
	return dev.card
}

// NewWithDepth allocates a buffer object and registers a legacy
// framebuffer for it.
func (dev *Device) NewWithDepth(width, height uint32, depth, bpp uint8) (*BO, error) {
	return newBO(dev, width, height, depth, bpp, 0)
}

// NewWithFormat allocates a buffer object and registers a
// framebuffer for it using the given four-cc pixel format.
func (dev *Device) NewWithFormat(width, height, format uint32, bpp uint8) (*BO, error) {
	return newBO(dev, width, height, 0, bpp, format)
}
