package dri2

import (
	"fmt"
	"image"
)

// A Buffer associates one of a drawable's attachment slots with the
// surface backing it.
type Buffer struct {
	attachment Attachment
	format     uint32
	name       uint32
	pitch      uint32
	cpp        uint32
	surface    Surface

	// canFlip result from the previous frame, -1 until the first
	// swap. Used to tell when the buffer should be re-allocated,
	// e.g. into scanout-capable memory once the drawable can flip.
	previousCanFlip int
}

func (buf *Buffer) Attachment() Attachment { return buf.attachment }

// Name returns the cross-process name of the buffer's backing
// memory.
func (buf *Buffer) Name() uint32 { return buf.name }

func (buf *Buffer) Pitch() uint32 { return buf.pitch }

// CPP returns the buffer's pixel size in whole bytes.
func (buf *Buffer) CPP() uint32 { return buf.cpp }

func (buf *Buffer) Format() uint32 { return buf.format }

func (buf *Buffer) Surface() Surface { return buf.surface }

// CreateBuffer wraps the surface backing d's attachment slot. The
// front attachment wraps d's own window surface; other attachments
// get a fresh off-screen surface, in scanout-capable memory when d
// can currently flip.
//
// format is the client's requested buffer format, which can differ
// from the drawable's own; it is passed through untouched.
func (s *Session) CreateBuffer(d Drawable, attachment Attachment, format uint32) (*Buffer, error) {
	var surface Surface
	if attachment == FrontLeft {
		surface = s.host.WindowSurface(d)
		surface.Retain()
	} else {
		var err error
		surface, err = s.host.CreateSurface(d, s.canFlip(d, nil))
		if err != nil {
			return nil, fmt.Errorf("create surface: %w", err)
		}
	}

	buf := surface.BO()
	if buf == nil {
		surface.Release()
		return nil, ErrNoBacking
	}
	name, err := buf.Name()
	if err != nil {
		surface.Release()
		return nil, fmt.Errorf("name buffer for attachment %v: %w", attachment, err)
	}

	_, bpp := d.Depth()
	return &Buffer{
		attachment:      attachment,
		format:          format,
		name:            name,
		pitch:           buf.Pitch(),
		cpp:             (uint32(bpp) + 7) / 8,
		surface:         surface,
		previousCanFlip: -1,
	}, nil
}

// DestroyBuffer drops the buffer's surface ownership. The drawable
// it was created for may already be gone; only the surface is
// touched.
func (s *Session) DestroyBuffer(buf *Buffer) {
	buf.surface.Release()
}

// ReuseBufferNotify re-syncs the buffer's exported name with its
// backing buffer object, which swaps may have rebound.
func (s *Session) ReuseBufferNotify(buf *Buffer) {
	b := buf.surface.BO()
	if b == nil {
		return
	}
	name, err := b.Name()
	if err == nil {
		buf.name = name
		buf.pitch = b.Pitch()
	}
}

// resolve returns the surface a buffer renders to for d. The front
// attachment resolves through the drawable itself, since its window
// surface can be reallocated from beneath the buffer.
func (s *Session) resolve(d Drawable, buf *Buffer) Surface {
	if buf.attachment == FrontLeft {
		return s.host.WindowSurface(d)
	}
	return buf.surface
}

// CopyRegion synchronously copies r between the surfaces backing two
// of d's buffers.
func (s *Session) CopyRegion(d Drawable, dst, src *Buffer, r image.Rectangle) {
	s.host.CopyArea(s.resolve(d, dst), s.resolve(d, src), r)
}
