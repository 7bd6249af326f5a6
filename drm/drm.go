package drm

import "github.com/markyzq/armsoc-rockchip/bo"

// A Card backs a bo.Device.
var _ bo.Card = (*Card)(nil)
