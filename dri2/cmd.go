package dri2

import (
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/markyzq/armsoc-rockchip/internal/debug"
)

// A Cmd is one in-flight swap request. It is created by ScheduleSwap
// and destroyed exactly once, when its completion countdown reaches
// zero.
type Cmd struct {
	session *Session
	token   uint64
	kind    CompleteKind

	// The drawable is held by id: it can be destroyed while the
	// page flip event is outstanding, in which case there is simply
	// nothing to notify.
	drawID DrawableID

	src, dst Surface
	done     func(Drawable, CompleteKind)

	count    int
	failed   bool
	fakeFlip bool
	x, y     int
}

// Token returns the opaque id completion events use to find the
// command.
func (cmd *Cmd) Token() uint64 { return cmd.token }

// ScheduleSwap swaps d's src buffer into dst, as a page flip when d
// is flip-eligible and as an immediate copy otherwise. done, if
// non-nil, runs once the swap fully settles; for a page flip that is
// one hardware completion event per programmed output later, while
// the blit path settles before ScheduleSwap returns.
//
// Even when ScheduleSwap returns an error, a flip that was already
// partially programmed settles through the usual completion path,
// marked failed.
func (s *Session) ScheduleSwap(d Drawable, dst, src *Buffer, done func(Drawable, CompleteKind)) error {
	bounds := d.Bounds()
	cmd := Cmd{
		session: s,
		drawID:  d.ID(),
		src:     s.resolve(d, src),
		dst:     s.resolve(d, dst),
		done:    done,
		x:       bounds.Min.X,
		y:       bounds.Min.Y,
	}

	// Hold both surfaces while the swap is being scheduled; the
	// extra references guarding the asynchronous completion are
	// taken separately below.
	cmd.src.Retain()
	cmd.dst.Retain()
	defer cmd.src.Release()
	defer cmd.dst.Release()

	debug.Printf("%v -> %v", src.attachment, dst.attachment)

	srcBO := cmd.src.BO()
	dstBO := cmd.dst.BO()
	if srcBO == nil || dstBO == nil {
		return ErrNoBacking
	}

	canFlip := s.canFlip(d, srcBO)

	// If an output can scan the source out directly, rebind the
	// destination to that output's current scanout buffer so the
	// flip exchanges the right storage. Otherwise the destination
	// becomes the fallback front buffer and the outputs blit.
	var sc *Scanout
	if canFlip && !s.hasResized {
		sc = s.scanoutFor(d)
		old := dstBO
		sc.bo.Reference()
		cmd.dst.SetBO(sc.bo)
		old.Unreference()
		dstBO = sc.bo

		if err := s.host.SetFlipMode(d); err != nil {
			return fmt.Errorf("set flip mode: %w", err)
		}
	} else {
		if s.fallback == nil {
			return errors.New("dri2: no fallback scanout buffer")
		}
		s.fallback.Reference()
		dstBO.Unreference()
		cmd.dst.SetBO(s.fallback)
		dstBO = s.fallback

		if err := s.host.SetBlitMode(d); err != nil {
			return fmt.Errorf("set blit mode: %w", err)
		}
	}

	// Extra references so neither surface can go away while we
	// await the page flip event.
	cmd.src.Retain()
	cmd.dst.Retain()
	s.pendingFlips++
	cmd.token = s.cmds.Add(&cmd)

	srcFB := srcBO.FB()
	dstFB := dstBO.FB()

	if (src.previousCanFlip != -1 && src.previousCanFlip != b2i(canFlip)) ||
		(dst.previousCanFlip != -1 && dst.previousCanFlip != b2i(canFlip)) ||
		s.hasResized {
		// The drawable transitioned between flippable and not, or
		// the outputs changed geometry beneath it. Bump the serial
		// so its buffers get re-allocated next frame, into
		// scanout-capable memory or back out of it.
		d.BumpSerial()
	}
	src.previousCanFlip = b2i(canFlip)
	dst.previousCanFlip = b2i(canFlip)

	if srcFB != 0 && dstFB != 0 && canFlip && !s.hasResized {
		debug.Printf("can flip: %v -> %v", srcFB, dstFB)
		cmd.kind = FlipComplete

		n, err := s.host.PageFlip(d, srcFB, cmd.token)
		if err != nil {
			// Settle immediately as failed, except for outputs
			// that were already programmed before the failure:
			// their events still arrive and finish the command.
			log.Printf("page flip of drawable %v failed: %v", cmd.drawID, err)
			cmd.failed = true
			cmd.count = n
			if cmd.count == 0 {
				s.finish(&cmd)
			}
			return fmt.Errorf("page flip: %w", err)
		}

		if n == 0 {
			// No output needed reprogramming; the flip is
			// logically complete already.
			cmd.fakeFlip = true
		} else {
			// The outputs scan the source out from here on; keep
			// the registry slot in step so completion can match
			// it.
			srcBO.Reference()
			sc.bo.Unreference()
			sc.bo = srcBO
		}
		cmd.count = n
		if cmd.count == 0 {
			s.finish(&cmd)
		}
		return nil
	}

	// Fall back to an immediate copy of the whole drawable area.
	s.host.CopyArea(cmd.dst, cmd.src, image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	cmd.kind = BlitComplete
	s.finish(&cmd)
	s.hasResized = false
	return nil
}

// Complete records one output's completion signal for the command
// identified by token. Tokens that no longer match a command are
// ignored.
func (s *Session) Complete(token uint64) {
	cmd, ok := s.cmds.Get(token)
	if !ok {
		return
	}
	s.finish(cmd)
}

// finish counts down one completion signal and, at zero, finalizes
// the command: notify, update the scanout registry, release the
// surfaces, and destroy the command.
func (s *Session) finish(cmd *Cmd) {
	cmd.count--
	if cmd.count > 0 {
		return
	}

	if !cmd.failed {
		d, ok := s.host.Drawable(cmd.drawID)
		if ok {
			if cmd.kind == FlipComplete && !cmd.fakeFlip {
				// The flip exchanged which surface is on screen.
				s.host.ExchangeStorage(cmd.src, cmd.dst)
			}

			if cmd.done != nil {
				cmd.done(d, cmd.kind)
			}

			switch cmd.kind {
			case BlitComplete:
				// The blit bypassed scanout tracking entirely, so
				// every cached validity is stale.
				for i := range s.scanouts {
					s.scanouts[i].valid = false
				}
			case FlipComplete:
				dst := cmd.dst.BO()
				for i := range s.scanouts {
					if s.scanouts[i].bo == dst {
						s.scanouts[i].valid = true
						break
					}
				}
				if !cmd.fakeFlip {
					s.setScanout(cmd.x, cmd.y, dst)
				}
			}
		}
	}

	// Drop the references that kept the surfaces alive across the
	// flip.
	cmd.src.Release()
	cmd.dst.Release()
	s.pendingFlips--
	s.cmds.Delete(cmd.token)
}

func b2i(v bool) int {
	if v {
		return 1
	}
	return 0
}
