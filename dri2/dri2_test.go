package dri2

import (
	"image"
	"testing"

	"github.com/markyzq/armsoc-rockchip/bo"
)

// testCard is just enough hardware for the bo package to hand out
// buffers with framebuffer ids.
type testCard struct {
	nextHandle uint32
	nextFB     uint32
	nextName   uint32

	vblankSeq uint32
	vblankSec int64
	vblankUs  int64
	vblankErr error
}

func (c *testCard) CreateBuffer(size uint64) (uint32, error) {
	c.nextHandle++
	return c.nextHandle, nil
}

func (c *testCard) DestroyBuffer(handle uint32) error { return nil }

func (c *testCard) MapBuffer(handle uint32, size uint64) ([]byte, error) {
	return make([]byte, size), nil
}

func (c *testCard) AddFB(width, height uint32, depth, bpp uint8, pitch, handle uint32) (uint32, error) {
	c.nextFB++
	return c.nextFB, nil
}

func (c *testCard) AddFB2(width, height, format uint32, handles, pitches, offsets [4]uint32) (uint32, error) {
	c.nextFB++
	return c.nextFB, nil
}

func (c *testCard) RmFB(fb uint32) error { return nil }

func (c *testCard) BufferName(handle uint32) (uint32, error) {
	c.nextName++
	return 0x2000 + c.nextName, nil
}

func (c *testCard) AcquireCPU(handle uint32, exclusive bool) error { return nil }
func (c *testCard) ReleaseCPU(handle uint32) error                 { return nil }

func (c *testCard) VBlank() (uint32, int64, int64, error) {
	if c.vblankErr != nil {
		return 0, 0, 0, c.vblankErr
	}
	return c.vblankSeq, c.vblankSec, c.vblankUs, nil
}

type fakeSurface struct {
	bo   *bo.BO
	refs int
}

func (s *fakeSurface) BO() *bo.BO     { return s.bo }
func (s *fakeSurface) SetBO(b *bo.BO) { s.bo = b }
func (s *fakeSurface) Retain()        { s.refs++ }

func (s *fakeSurface) Release() {
	s.refs--
	if s.refs < 0 {
		panic("fakeSurface: release below zero")
	}
}

type fakeDrawable struct {
	id     DrawableID
	kind   DrawableKind
	bounds image.Rectangle
	serial int
}

func (d *fakeDrawable) ID() DrawableID          { return d.id }
func (d *fakeDrawable) Kind() DrawableKind      { return d.kind }
func (d *fakeDrawable) Bounds() image.Rectangle { return d.bounds }
func (d *fakeDrawable) Depth() (uint8, uint8)   { return 24, 32 }
func (d *fakeDrawable) BumpSerial()             { d.serial++ }

type fakeHost struct {
	dev       *bo.Device
	drawables map[DrawableID]*fakeDrawable
	windows   map[DrawableID]*fakeSurface

	nilBacking bool
	created    []*fakeSurface

	copies []image.Rectangle

	flipN      int
	flipErr    error
	flipEvents int
	flips      []uint64

	flipModes   int
	blitModes   int
	flipModeErr error
	blitModeErr error

	exchanges int
}

func (h *fakeHost) Drawable(id DrawableID) (Drawable, bool) {
	d, ok := h.drawables[id]
	if !ok {
		return nil, false
	}
	return d, true
}

func (h *fakeHost) WindowSurface(d Drawable) Surface {
	return h.windows[d.ID()]
}

func (h *fakeHost) CreateSurface(d Drawable, scanout bool) (Surface, error) {
	s := &fakeSurface{refs: 1}
	if !h.nilBacking {
		bounds := d.Bounds()
		buf, err := h.dev.NewWithDepth(uint32(bounds.Dx()), uint32(bounds.Dy()), 24, 32)
		if err != nil {
			return nil, err
		}
		s.bo = buf
	}
	h.created = append(h.created, s)
	return s, nil
}

func (h *fakeHost) CopyArea(dst, src Surface, r image.Rectangle) {
	h.copies = append(h.copies, r)
}

func (h *fakeHost) PageFlip(d Drawable, fb uint32, token uint64) (int, error) {
	h.flips = append(h.flips, token)
	if h.flipErr != nil {
		return h.flipEvents, h.flipErr
	}
	return h.flipN, nil
}

func (h *fakeHost) SetFlipMode(d Drawable) error {
	h.flipModes++
	return h.flipModeErr
}

func (h *fakeHost) SetBlitMode(d Drawable) error {
	h.blitModes++
	return h.blitModeErr
}

func (h *fakeHost) ExchangeStorage(a, b Surface) {
	h.exchanges++
	as := a.(*fakeSurface)
	bs := b.(*fakeSurface)
	as.bo, bs.bo = bs.bo, as.bo
}

func newTestSession(t *testing.T) (*Session, *fakeHost, *testCard) {
	t.Helper()

	card := new(testCard)
	dev := bo.NewDevice(card)
	host := &fakeHost{
		dev:       dev,
		drawables: make(map[DrawableID]*fakeDrawable),
		windows:   make(map[DrawableID]*fakeSurface),
	}
	return NewSession(dev, host), host, card
}

// addWindow registers a drawable and a window surface backed by a
// buffer of the drawable's size.
func addWindow(t *testing.T, s *Session, host *fakeHost, id DrawableID, kind DrawableKind, bounds image.Rectangle) *fakeDrawable {
	t.Helper()

	d := &fakeDrawable{id: id, kind: kind, bounds: bounds}
	buf, err := s.Device().NewWithDepth(uint32(bounds.Dx()), uint32(bounds.Dy()), 24, 32)
	if err != nil {
		t.Fatal(err)
	}
	host.drawables[id] = d
	host.windows[id] = &fakeSurface{bo: buf, refs: 1}
	return d
}

// addScanout registers an output covering rect and returns its
// buffer.
func addScanout(t *testing.T, s *Session, crtc uint32, rect image.Rectangle) *bo.BO {
	t.Helper()

	buf, err := s.Device().NewWithDepth(uint32(rect.Dx()), uint32(rect.Dy()), 24, 32)
	if err != nil {
		t.Fatal(err)
	}
	s.AddScanout(crtc, buf, rect)
	buf.Unreference() // the registry holds its own reference
	return buf
}

// setFallback installs a fallback front buffer and returns it.
func setFallback(t *testing.T, s *Session) *bo.BO {
	t.Helper()

	buf, err := s.Device().NewWithDepth(1024, 768, 24, 32)
	if err != nil {
		t.Fatal(err)
	}
	s.SetFallback(buf)
	buf.Unreference()
	return buf
}

// newBuffers wraps a front and back buffer for d.
func newBuffers(t *testing.T, s *Session, d Drawable) (front, back *Buffer) {
	t.Helper()

	front, err := s.CreateBuffer(d, FrontLeft, 0)
	if err != nil {
		t.Fatal(err)
	}
	back, err = s.CreateBuffer(d, BackLeft, 0)
	if err != nil {
		t.Fatal(err)
	}
	return front, back
}
