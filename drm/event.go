package drm

import (
	"fmt"

	"github.com/markyzq/armsoc-rockchip/internal/bin"
)

// Event types on the card's event stream.
const (
	EventVBlank       = 0x01
	EventFlipComplete = 0x02
)

const eventHeaderSize = 8

// Event is one decoded entry from the card's event stream. For
// EventFlipComplete, Token carries the user data supplied to
// PageFlip.
type Event struct {
	Type     uint32
	Token    uint64
	Sec      uint32
	Usec     uint32
	Sequence uint32
	Crtc     uint32
}

// ReadEvents reads pending events from the card and decodes them.
// It blocks until at least one event is available.
func (c *Card) ReadEvents() ([]Event, error) {
	var buf [1024]byte
	n, err := c.file.Read(buf[:])
	if err != nil {
		return nil, fmt.Errorf("read event stream: %w", err)
	}
	return DecodeEvents(buf[:n])
}

// DecodeEvents decodes a batch of events as read from the card's
// event stream.
func DecodeEvents(data []byte) ([]Event, error) {
	var events []Event
	for len(data) > 0 {
		if len(data) < eventHeaderSize {
			return events, fmt.Errorf("truncated event header: %v bytes", len(data))
		}
		typ := bin.Value[uint32]([4]byte(data[0:4]))
		length := bin.Value[uint32]([4]byte(data[4:8]))
		if length < eventHeaderSize || int(length) > len(data) {
			return events, fmt.Errorf("bad event length: %v", length)
		}

		switch typ {
		case EventVBlank, EventFlipComplete:
			body := data[eventHeaderSize:length]
			if len(body) < 20 {
				return events, fmt.Errorf("truncated event body: %v bytes", len(body))
			}
			ev := Event{
				Type:     typ,
				Token:    bin.Value64[uint64]([8]byte(body[0:8])),
				Sec:      bin.Value[uint32]([4]byte(body[8:12])),
				Usec:     bin.Value[uint32]([4]byte(body[12:16])),
				Sequence: bin.Value[uint32]([4]byte(body[16:20])),
			}
			// Older kernels do not include the crtc id.
			if len(body) >= 24 {
				ev.Crtc = bin.Value[uint32]([4]byte(body[20:24]))
			}
			events = append(events, ev)
		default:
			// Skip events we don't understand.
		}
		data = data[length:]
	}
	return events, nil
}
