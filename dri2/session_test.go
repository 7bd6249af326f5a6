package dri2

import (
	"errors"
	"image"
	"testing"

	"github.com/markyzq/armsoc-rockchip/drm"
)

func TestMSC(t *testing.T) {
	s, _, card := newTestSession(t)

	card.vblankSeq = 100
	card.vblankSec = 2
	card.vblankUs = 500000

	msc, ust, ok := s.MSC()
	if !ok {
		t.Fatal("vblank query failed")
	}
	if msc != 100 {
		t.Errorf("msc = %v, want 100", msc)
	}
	if ust != 2500000 {
		t.Errorf("ust = %v, want 2500000", ust)
	}
}

func TestMSCFailureLogsBounded(t *testing.T) {
	s, _, card := newTestSession(t)
	card.vblankErr = errors.New("no vblank support")

	for i := 0; i < 10; i++ {
		if _, _, ok := s.MSC(); ok {
			t.Fatal("vblank query succeeded despite error")
		}
	}
	if s.mscLogBudget != 0 {
		t.Errorf("log budget = %v after repeated failures, want 0", s.mscLogBudget)
	}
}

func TestScanoutReferences(t *testing.T) {
	s, _, _ := newTestSession(t)
	addScanout(t, s, 10, image.Rect(0, 0, 64, 64))
	setFallback(t, s)

	// Replacing the fallback drops the old one.
	buf, err := s.Device().NewWithDepth(64, 64, 24, 32)
	if err != nil {
		t.Fatal(err)
	}
	s.SetFallback(buf)
	buf.Unreference()

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if len(s.Scanouts()) != 0 {
		t.Errorf("scanouts = %v after close, want none", len(s.Scanouts()))
	}
}

func TestListenDeliversCompletions(t *testing.T) {
	s, host, _ := newTestSession(t)
	addScanout(t, s, 10, image.Rect(0, 0, 64, 64))
	d := addWindow(t, s, host, 1, Window, image.Rect(0, 0, 64, 64))
	front, back := newBuffers(t, s, d)

	host.flipN = 1
	var completions []CompleteKind
	err := s.ScheduleSwap(d, front, back, func(d Drawable, kind CompleteKind) {
		completions = append(completions, kind)
	})
	if err != nil {
		t.Fatal(err)
	}

	// A reader that hands out the flip's completion event once and
	// then fails, ending the listener.
	reads := make(chan []drm.Event, 1)
	reads <- []drm.Event{
		{Type: drm.EventVBlank, Sequence: 7},
		{Type: drm.EventFlipComplete, Token: host.flips[0]},
	}
	close(reads)
	go s.Listen(func() ([]drm.Event, error) {
		events, ok := <-reads
		if !ok {
			return nil, errors.New("card closed")
		}
		return events, nil
	})

	if err := s.waitEvent(); err != nil {
		t.Fatal(err)
	}
	if len(completions) != 1 || completions[0] != FlipComplete {
		t.Fatalf("completions = %v, want one flip", completions)
	}
	if s.Pending() != 0 {
		t.Fatalf("pending = %v, want 0", s.Pending())
	}

	s.DestroyBuffer(front)
	s.DestroyBuffer(back)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestCloseDrainsPendingFlips(t *testing.T) {
	s, host, _ := newTestSession(t)
	addScanout(t, s, 10, image.Rect(0, 0, 64, 64))
	d := addWindow(t, s, host, 1, Window, image.Rect(0, 0, 64, 64))
	front, back := newBuffers(t, s, d)

	host.flipN = 1
	if err := s.ScheduleSwap(d, front, back, nil); err != nil {
		t.Fatal(err)
	}

	// The completion arrives through the queue while Close is
	// draining.
	token := host.flips[0]
	go s.Post(func() error {
		s.Complete(token)
		return nil
	})

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.Pending() != 0 {
		t.Fatalf("pending = %v after close, want 0", s.Pending())
	}

	s.DestroyBuffer(front)
	s.DestroyBuffer(back)
}

func TestCreateBufferFront(t *testing.T) {
	s, host, _ := newTestSession(t)
	d := addWindow(t, s, host, 1, Window, image.Rect(0, 0, 64, 64))

	front, err := s.CreateBuffer(d, FrontLeft, 0)
	if err != nil {
		t.Fatal(err)
	}
	if host.windows[1].refs != 2 {
		t.Errorf("window surface refs = %v, want 2", host.windows[1].refs)
	}
	if front.Name() == 0 {
		t.Error("front buffer has no name")
	}
	if front.Pitch() != host.windows[1].bo.Pitch() {
		t.Errorf("pitch = %v, want %v", front.Pitch(), host.windows[1].bo.Pitch())
	}
	if front.CPP() != 4 {
		t.Errorf("cpp = %v, want 4", front.CPP())
	}

	s.DestroyBuffer(front)
	if host.windows[1].refs != 1 {
		t.Errorf("window surface refs = %v after destroy, want 1", host.windows[1].refs)
	}
}

func TestCreateBufferNoBacking(t *testing.T) {
	s, host, _ := newTestSession(t)
	d := addWindow(t, s, host, 1, Window, image.Rect(0, 0, 64, 64))

	host.nilBacking = true
	_, err := s.CreateBuffer(d, BackLeft, 0)
	if !errors.Is(err, ErrNoBacking) {
		t.Fatalf("err = %v, want ErrNoBacking", err)
	}
	if len(host.created) != 1 || host.created[0].refs != 0 {
		t.Error("backless surface not released")
	}
}

func TestReuseBufferNotify(t *testing.T) {
	s, host, _ := newTestSession(t)
	d := addWindow(t, s, host, 1, Window, image.Rect(0, 0, 64, 64))

	back, err := s.CreateBuffer(d, BackLeft, 0)
	if err != nil {
		t.Fatal(err)
	}
	oldName := back.Name()

	// Rebind the surface to fresh storage; the exported name must
	// follow.
	buf, err := s.Device().NewWithDepth(64, 64, 24, 32)
	if err != nil {
		t.Fatal(err)
	}
	back.Surface().BO().Unreference()
	back.Surface().SetBO(buf)
	s.ReuseBufferNotify(back)

	if back.Name() == oldName {
		t.Error("name unchanged after storage rebind")
	}
	s.DestroyBuffer(back)
}

func TestCopyRegion(t *testing.T) {
	s, host, _ := newTestSession(t)
	d := addWindow(t, s, host, 1, Window, image.Rect(0, 0, 64, 64))
	front, back := newBuffers(t, s, d)

	r := image.Rect(4, 4, 24, 16)
	s.CopyRegion(d, front, back, r)
	if len(host.copies) != 1 || host.copies[0] != r {
		t.Fatalf("copies = %v, want %v", host.copies, r)
	}

	s.DestroyBuffer(front)
	s.DestroyBuffer(back)
}
