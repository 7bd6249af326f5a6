package dri2

import (
	"image"
	"log"
	"sync"

	"github.com/markyzq/armsoc-rockchip/bo"
	"github.com/markyzq/armsoc-rockchip/drm"
	"github.com/markyzq/armsoc-rockchip/internal/debug"
	"github.com/markyzq/armsoc-rockchip/internal/ev"
	"github.com/markyzq/armsoc-rockchip/internal/objstore"
)

// A Scanout records which buffer object a display output is
// currently showing.
type Scanout struct {
	bo    *bo.BO
	crtc  uint32
	rect  image.Rectangle
	x, y  int
	valid bool
}

func (sc *Scanout) BO() *bo.BO { return sc.bo }

func (sc *Scanout) Crtc() uint32 { return sc.crtc }

func (sc *Scanout) Bounds() image.Rectangle { return sc.rect }

// Valid reports whether a flip or blit targeting this output has
// completed since the scanout was registered or last invalidated.
func (sc *Scanout) Valid() bool { return sc.valid }

// A Session owns the presentation state for one card: the scanout
// registry, the fallback front buffer, and the swap commands still
// awaiting hardware completion. It is created at driver attach and
// closed at detach.
type Session struct {
	host Host
	dev  *bo.Device

	scanouts []Scanout
	fallback *bo.BO

	hasResized   bool
	pendingFlips int
	cmds         *objstore.Store[*Cmd]

	mscLogBudget int

	queue *ev.Queue
	done  chan struct{}
	close sync.Once
}

func NewSession(dev *bo.Device, host Host) *Session {
	return &Session{
		host:         host,
		dev:          dev,
		cmds:         objstore.New[*Cmd](1),
		mscLogBudget: 5,
		queue:        ev.NewQueue(),
		done:         make(chan struct{}),
	}
}

func (s *Session) Device() *bo.Device {
	return s.dev
}

// AddScanout registers a display output covering rect whose current
// scanout buffer is b. The session takes a reference on b.
func (s *Session) AddScanout(crtc uint32, b *bo.BO, rect image.Rectangle) {
	b.Reference()
	s.scanouts = append(s.scanouts, Scanout{bo: b, crtc: crtc, rect: rect})
}

// Scanouts returns the registered outputs. The slice is shared with
// the session; callers must not retain it across session calls.
func (s *Session) Scanouts() []Scanout {
	return s.scanouts
}

// SetFallback sets the buffer swaps blit into when a drawable cannot
// flip. The session takes a reference.
func (s *Session) SetFallback(b *bo.BO) {
	if b != nil {
		b.Reference()
	}
	if s.fallback != nil {
		s.fallback.Unreference()
	}
	s.fallback = b
}

// NotifyResized flags pending output-geometry changes, for example
// from a hotplug. Flips are suppressed until the next blit absorbs
// the change.
func (s *Session) NotifyResized() {
	s.hasResized = true
}

// Pending returns the number of swap commands still awaiting
// completion.
func (s *Session) Pending() int {
	return s.pendingFlips
}

// scanoutFor returns the output d is shown on, or nil.
func (s *Session) scanoutFor(d Drawable) *Scanout {
	bounds := d.Bounds()
	for i := range s.scanouts {
		if bounds.Overlaps(s.scanouts[i].rect) {
			return &s.scanouts[i]
		}
	}
	return nil
}

// setScanout records the current position of b on the output showing
// it.
func (s *Session) setScanout(x, y int, b *bo.BO) {
	for i := range s.scanouts {
		if s.scanouts[i].bo == b {
			s.scanouts[i].x, s.scanouts[i].y = x, y
			return
		}
	}
}

// canFlip reports whether d's swaps can be realized as page flips,
// with back as the incoming buffer if non-nil. It is re-evaluated
// every swap because the drawable can change size or scanout binding
// between frames.
func (s *Session) canFlip(d Drawable, back *bo.BO) bool {
	if d.Kind() != Window {
		return false
	}
	if back != nil {
		bounds := d.Bounds()
		if back.Width() != uint32(bounds.Dx()) || back.Height() != uint32(bounds.Dy()) {
			return false
		}
	}
	return s.scanoutFor(d) != nil
}

// MSC returns the current frame counter and its timestamp in
// microseconds. Query failures are logged a bounded number of times
// per session.
func (s *Session) MSC() (msc, ust uint64, ok bool) {
	seq, sec, usec, err := s.dev.Card().VBlank()
	if err != nil {
		if s.mscLogBudget > 0 {
			log.Printf("get vblank counter failed: %v", err)
			s.mscLogBudget--
		}
		return 0, 0, false
	}

	return uint64(seq), uint64(sec)*1000000 + uint64(usec), true
}

// Post queues fn to run on the session thread at the next Flush.
// Hardware event readers use it to deliver completions.
func (s *Session) Post(fn func() error) {
	select {
	case <-s.done:
	case s.queue.Add() <- fn:
	}
}

// Flush runs any queued events. It never blocks.
func (s *Session) Flush() error {
	select {
	case queue := <-s.queue.Get():
		return queue.Flush()
	default:
		return nil
	}
}

// waitEvent blocks for the next batch of queued events and runs it.
func (s *Session) waitEvent() error {
	select {
	case <-s.done:
		return nil
	case queue := <-s.queue.Get():
		return queue.Flush()
	}
}

// Listen reads hardware events with read and queues the flip
// completions they carry until read fails. Run it on its own
// goroutine; the completions themselves run on the session thread.
func (s *Session) Listen(read func() ([]drm.Event, error)) {
	for {
		events, err := read()
		if err != nil {
			return
		}
		for _, e := range events {
			if e.Type != drm.EventFlipComplete {
				continue
			}
			token := e.Token
			s.Post(func() error {
				s.Complete(token)
				return nil
			})
		}
	}
}

// Close tears the session down. It first drains outstanding flips so
// that no completion event can fire into freed state, then drops the
// scanout registry's buffer references.
func (s *Session) Close() error {
	for s.pendingFlips > 0 {
		debug.Printf("waiting..")
		s.waitEvent()
	}
	for token := range s.cmds.All() {
		// Only reachable if a host reported more outputs than it
		// delivered events for.
		log.Printf("leaked swap command %v", token)
	}

	s.close.Do(func() { close(s.done) })
	s.queue.Stop()

	for i := range s.scanouts {
		s.scanouts[i].bo.Unreference()
	}
	s.scanouts = nil
	if s.fallback != nil {
		s.fallback.Unreference()
		s.fallback = nil
	}
	return nil
}
