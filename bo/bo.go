package bo

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"deedles.dev/ximage/format"
	"github.com/markyzq/armsoc-rockchip/internal/debug"
)

// ErrContended is returned by AcquireCPU when write access is
// requested on a buffer currently held shared. Callers are expected
// to serialize at a higher layer; AcquireCPU never blocks.
var ErrContended = errors.New("bo: buffer held for read, write would race")

// pitchAlign is the row-stride alignment the Mali GPU requires.
const pitchAlign = 64

// BO is a reference-counted handle to a region of display-capable
// memory, registered with the kernel as a framebuffer.
type BO struct {
	dev    *Device
	handle uint32
	size   uint64
	fb     uint32
	name   uint32
	width  uint32
	height uint32
	pitch  uint32
	depth  uint8
	bpp    uint8
	format uint32

	refcnt    int
	exclusive bool
	acquired  int
	dirty     bool

	mmap Mmap
}

func newBO(dev *Device, width, height uint32, depth, bpp uint8, format uint32) (*BO, error) {
	pitch := (((width*uint32(bpp) + 7) / 8) + pitchAlign - 1) / pitchAlign * pitchAlign
	size := uint64(height) * uint64(pitch)

	handle, err := dev.card.CreateBuffer(size)
	if err != nil {
		return nil, fmt.Errorf("create buffer {size: %v}: %w", size, err)
	}
	debug.Printf("created [BO:%v] {size: %v}", handle, size)

	buf := BO{
		dev:    dev,
		handle: handle,
		size:   size,
		width:  width,
		height: height,
		pitch:  pitch,
		depth:  depth,
		bpp:    bpp,
		format: format,
		refcnt: 1,
		dirty:  true,
	}

	if depth != 0 {
		fb, err := dev.card.AddFB(width, height, depth, bpp, pitch, handle)
		if err != nil {
			dev.card.DestroyBuffer(handle)
			return nil, fmt.Errorf("[BO:%v] add FB {%vx%v depth: %v bpp: %v pitch: %v}: %w",
				handle, width, height, depth, bpp, pitch, err)
		}
		buf.fb = fb
		debug.Printf("created [FB:%v] {%vx%v depth: %v bpp: %v pitch: %v} using [BO:%v]",
			fb, width, height, depth, bpp, pitch, handle)
	} else {
		fb, err := dev.card.AddFB2(width, height, format,
			[4]uint32{handle}, [4]uint32{pitch}, [4]uint32{})
		if err != nil {
			dev.card.DestroyBuffer(handle)
			return nil, fmt.Errorf("[BO:%v] add FB {%vx%v format: %v pitch: %v}: %w",
				handle, width, height, FormatString(format), pitch, err)
		}
		buf.fb = fb
		debug.Printf("[BO:%v] [FB:%v] added FB {%vx%v format: %v pitch: %v}",
			handle, fb, width, height, FormatString(format), pitch)
	}

	return &buf, nil
}

// Reference adds an owner to buf.
func (buf *BO) Reference() {
	if buf.refcnt <= 0 {
		panic("bo: reference of destroyed buffer")
	}
	buf.refcnt++
}

// Unreference drops an owner from buf. The last owner to let go
// destroys the buffer: the framebuffer is unregistered and the
// memory freed.
func (buf *BO) Unreference() {
	if buf == nil {
		return
	}
	if buf.refcnt <= 0 {
		panic("bo: unreference of destroyed buffer")
	}
	buf.refcnt--
	if buf.refcnt == 0 {
		buf.destroy()
	}
}

func (buf *BO) destroy() {
	if buf.acquired > 0 {
		panic("bo: destroy of CPU-acquired buffer")
	}

	debug.Printf("[BO:%v] [FB:%v] [FLINK:%v] destroy {size: %v}",
		buf.handle, buf.fb, buf.name, buf.size)

	if buf.mmap != nil {
		buf.mmap.Unmap()
		buf.mmap = nil
	}
	err := buf.dev.card.RmFB(buf.fb)
	if err != nil {
		// A framebuffer id that cannot be removed is a kernel
		// resource leak with no recovery.
		panic(fmt.Sprintf("bo: remove [FB:%v]: %v", buf.fb, err))
	}
	buf.dev.card.DestroyBuffer(buf.handle)
}

// Name returns a stable cross-process name for the buffer's memory.
// The name is exported on first use and cached.
func (buf *BO) Name() (uint32, error) {
	if buf.name != 0 {
		return buf.name, nil
	}

	name, err := buf.dev.card.BufferName(buf.handle)
	if err != nil {
		return 0, fmt.Errorf("export name of [BO:%v]: %w", buf.handle, err)
	}
	buf.name = name
	return name, nil
}

// AccessMode selects the host's intent when acquiring a buffer.
type AccessMode int

const (
	Read AccessMode = iota
	Write
)

// AcquireCPU fences buf against the display engine for host access,
// shared for Read and exclusive for Write. Acquires of the same mode
// nest; only the outermost reaches the hardware. Requesting Write
// while the buffer is held shared fails with ErrContended.
func (buf *BO) AcquireCPU(mode AccessMode) error {
	if buf.acquired > 0 {
		if mode == Write && !buf.exclusive {
			return ErrContended
		}
		buf.acquired++
		return nil
	}

	err := buf.dev.card.AcquireCPU(buf.handle, mode == Write)
	if err != nil {
		return fmt.Errorf("CPU acquire [BO:%v]: %w", buf.handle, err)
	}
	buf.exclusive = mode == Write
	buf.acquired = 1
	if buf.exclusive {
		buf.dirty = true
	}
	return nil
}

// ReleaseCPU undoes one AcquireCPU. Only the outermost release drops
// the hardware fence.
func (buf *BO) ReleaseCPU() error {
	if buf.acquired <= 0 {
		panic("bo: CPU release without matching acquire")
	}

	buf.acquired--
	if buf.acquired != 0 {
		return nil
	}
	err := buf.dev.card.ReleaseCPU(buf.handle)
	if err != nil {
		return fmt.Errorf("CPU release [BO:%v]: %w", buf.handle, err)
	}
	return nil
}

// Dirty reports whether the buffer has been written through a CPU
// acquire since the last ClearDirty. A freshly allocated buffer is
// dirty.
func (buf *BO) Dirty() bool {
	return buf.dirty
}

func (buf *BO) ClearDirty() {
	buf.dirty = false
}

func (buf *BO) Handle() uint32 { return buf.handle }
func (buf *BO) Width() uint32  { return buf.width }
func (buf *BO) Height() uint32 { return buf.height }
func (buf *BO) Pitch() uint32  { return buf.pitch }
func (buf *BO) Depth() uint8   { return buf.depth }
func (buf *BO) BPP() uint8     { return buf.bpp }
func (buf *BO) Format() uint32 { return buf.format }

// FB returns the buffer's framebuffer id, or 0 if it has none.
func (buf *BO) FB() uint32 { return buf.fb }

// BytesPerPixel returns the buffer's pixel size in whole bytes.
func (buf *BO) BytesPerPixel() uint32 {
	return (uint32(buf.bpp) + 7) / 8
}

func (buf *BO) Bounds() image.Rectangle {
	return image.Rect(0, 0, int(buf.width), int(buf.height))
}

// Map returns the buffer's memory, mapping it on first use. The
// mapping lives until the buffer is destroyed.
func (buf *BO) Map() (Mmap, error) {
	if buf.mmap != nil {
		return buf.mmap, nil
	}

	m, err := buf.dev.card.MapBuffer(buf.handle, buf.size)
	if err != nil {
		return nil, fmt.Errorf("map [BO:%v]: %w", buf.handle, err)
	}
	buf.mmap = Mmap(m)
	debug.Printf("[BO:%v] [FB:%v] mapped %v bytes", buf.handle, buf.fb, buf.size)
	return buf.mmap, nil
}

// Image returns a host-side view of the buffer's pixels. Rows are
// padded to the hardware pitch, so the view is Pitch/BytesPerPixel
// pixels wide; use Bounds for the drawable area. The caller is
// responsible for fencing access with AcquireCPU.
func (buf *BO) Image() (draw.Image, error) {
	f, err := buf.imageFormat()
	if err != nil {
		return nil, err
	}
	m, err := buf.Map()
	if err != nil {
		return nil, err
	}

	return &format.Image{
		Format: f,
		Rect:   image.Rect(0, 0, int(buf.pitch/buf.BytesPerPixel()), int(buf.height)),
		Pix:    m,
	}, nil
}

func (buf *BO) imageFormat() (format.Format, error) {
	switch {
	case buf.format == FormatARGB8888, buf.depth == 32:
		return format.ARGB8888, nil
	case buf.format == FormatXRGB8888, buf.depth == 24 && buf.bpp == 32:
		return format.XRGB8888, nil
	default:
		return nil, fmt.Errorf("bo: no CPU image for format %v", FormatString(buf.format))
	}
}
