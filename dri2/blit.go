package dri2

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/markyzq/armsoc-rockchip/bo"
)

// SoftCopy is a CopyArea implementation for hosts without an
// accelerated blitter. It copies r between the surfaces' mapped
// buffer objects through the CPU, fencing both sides against the
// display engine for the duration.
func SoftCopy(dst, src Surface, r image.Rectangle) error {
	sb := src.BO()
	db := dst.BO()
	if sb == nil || db == nil {
		return ErrNoBacking
	}

	if err := sb.AcquireCPU(bo.Read); err != nil {
		return err
	}
	defer sb.ReleaseCPU()
	if err := db.AcquireCPU(bo.Write); err != nil {
		return err
	}
	defer db.ReleaseCPU()

	simg, err := sb.Image()
	if err != nil {
		return err
	}
	dimg, err := db.Image()
	if err != nil {
		return err
	}

	draw.Copy(dimg, r.Min, simg, r, draw.Src, nil)
	return nil
}
