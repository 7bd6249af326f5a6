// Package dri2 schedules how a rendered buffer becomes visible on a
// drawable: as a zero-copy page flip when an output can scan the
// buffer out directly, or as a copy to the front buffer when it
// cannot.
//
// A Session owns the per-output scanout registry and the in-flight
// swap commands. All of its methods are meant to be called from the
// display server's sequencing thread; hardware completion events are
// handed back to that thread through Post and Flush.
package dri2

import (
	"errors"
	"image"

	"github.com/markyzq/armsoc-rockchip/bo"
)

// ErrNoBacking is returned when a surface that should be backed by a
// buffer object has none.
var ErrNoBacking = errors.New("dri2: surface has no buffer object backing")

// Attachment identifies a drawable's buffer slot.
type Attachment int

const (
	FrontLeft Attachment = iota
	BackLeft
)

// DrawableKind distinguishes on-screen windows from off-screen
// pixmaps. Only windows can flip.
type DrawableKind int

const (
	Window DrawableKind = iota
	Pixmap
)

// DrawableID is a stable identifier for a drawable. Swap commands
// hold the id rather than the drawable itself because the drawable
// can be destroyed while a page flip event is outstanding.
type DrawableID uint32

// A Drawable is a client-visible rendering target owned by the
// windowing system.
type Drawable interface {
	ID() DrawableID
	Kind() DrawableKind
	// Bounds gives the drawable's size and its position on the
	// screen.
	Bounds() image.Rectangle
	// Depth returns the drawable's color depth in bits and its
	// storage size in bits per pixel.
	Depth() (depth, bpp uint8)
	// BumpSerial forces the drawable's buffers to be re-validated,
	// and so possibly re-allocated, on the next frame.
	BumpSerial()
}

// A Surface is a pixel surface owned by the windowing system and
// backed by a buffer object. Retain and Release adjust its ownership
// count; the surface must not be destroyed while the count is held.
type Surface interface {
	// BO returns the surface's backing buffer object, or nil if it
	// has none.
	BO() *bo.BO
	// SetBO rebinds the surface to a different buffer object. The
	// caller manages the buffer references.
	SetBO(*bo.BO)
	Retain()
	Release()
}

// A Host binds a Session to the surrounding windowing system.
type Host interface {
	// Drawable resolves a drawable by id. ok is false if the
	// drawable has been destroyed.
	Drawable(id DrawableID) (d Drawable, ok bool)
	// WindowSurface returns the surface backing d itself.
	WindowSurface(d Drawable) Surface
	// CreateSurface creates an off-screen surface sized to d.
	// scanout asks for scanout-capable memory.
	CreateSurface(d Drawable, scanout bool) (Surface, error)
	// CopyArea synchronously copies r from src to dst.
	CopyArea(dst, src Surface, r image.Rectangle)
	// PageFlip programs every output bound to d to scan out fb. It
	// returns the number of outputs that will deliver an
	// asynchronous completion event carrying token; zero means no
	// output needed reprogramming. On error, the count is the
	// number of events already queued before the failure.
	PageFlip(d Drawable, fb uint32, token uint64) (int, error)
	// SetFlipMode and SetBlitMode switch the programming mode of
	// d's outputs.
	SetFlipMode(d Drawable) error
	SetBlitMode(d Drawable) error
	// ExchangeStorage swaps the storage identities of two surfaces
	// after a flip has exchanged which of them is on screen.
	ExchangeStorage(a, b Surface)
}

// CompleteKind classifies how a swap settled.
type CompleteKind int

const (
	FlipComplete CompleteKind = iota
	BlitComplete
)

func (k CompleteKind) String() string {
	switch k {
	case FlipComplete:
		return "flip"
	case BlitComplete:
		return "blit"
	default:
		return "unknown"
	}
}
