// Package ev queues hardware completion events for delivery on the
// session's sequencing thread.
package ev

import (
	"errors"

	"deedles.dev/xsync/cq"
)

// Queue carries completion continuations from the card's event reader
// to the session. Continuations are sent to Add and drained in batches
// from Get.
type Queue = cq.BulkQueue[func() error, *Events]

func NewQueue() *Queue {
	return cq.New(func(v []func() error) *Events {
		return &Events{
			events: v,
		}
	})
}

// Events is one drained batch of completion continuations.
type Events struct {
	events []func() error
}

// Flush runs every continuation in the batch, collecting their
// errors.
func (q *Events) Flush() error {
	var errs []error
	for _, ev := range q.events {
		err := ev()
		if err != nil {
			errs = append(errs, err)
		}
	}
	q.events = nil
	return errors.Join(errs...)
}
