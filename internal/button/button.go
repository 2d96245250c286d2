// Package button turns a physical push button into press, release and long
// press events.
package button

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Event is a button edge or gesture.
type Event int

const (
	Press Event = iota
	Release
	LongPress
)

// String returns the event name
func (e Event) String() string {
	switch e {
	case Press:
		return "press"
	case Release:
		return "release"
	case LongPress:
		return "long-press"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// DefaultLongPress is the hold time that makes a press a long press.
const DefaultLongPress = time.Second

// HoldDetector derives long presses from raw edges. The release that ends
// a long press is suppressed. It is driven entirely by the timestamps it is
// given and is not safe for concurrent use.
type HoldDetector struct {
	Threshold time.Duration

	pressed   bool
	pressedAt time.Time
	fired     bool
}

// NewHoldDetector creates a detector. A non-positive threshold uses DefaultLongPress.
func NewHoldDetector(threshold time.Duration) *HoldDetector {
	if threshold <= 0 {
		threshold = DefaultLongPress
	}
	return &HoldDetector{Threshold: threshold}
}

// Press records the button going down.
func (d *HoldDetector) Press(at time.Time) (Event, bool) {
	if d.pressed {
		return 0, false
	}
	d.pressed = true
	d.pressedAt = at
	d.fired = false
	return Press, true
}

// Release records the button going up.
func (d *HoldDetector) Release(at time.Time) (Event, bool) {
	if !d.pressed {
		return 0, false
	}
	if !d.fired && at.Sub(d.pressedAt) >= d.Threshold {
		d.fired = true
		d.pressed = false
		return LongPress, true
	}
	d.pressed = false
	if d.fired {
		return 0, false
	}
	return Release, true
}

// Poll reports a long press once the button has been held past the threshold.
func (d *HoldDetector) Poll(at time.Time) (Event, bool) {
	if !d.pressed || d.fired || at.Sub(d.pressedAt) < d.Threshold {
		return 0, false
	}
	d.fired = true
	return LongPress, true
}

// Source produces button events until ctx is done. The channel is closed
// when the source stops.
type Source interface {
	Events(ctx context.Context) <-chan Event
}

// Merge fans several sources into one channel. The result is closed once
// every source has closed.
func Merge(ctx context.Context, sources ...Source) <-chan Event {
	out := make(chan Event, 8)
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(ch <-chan Event) {
			defer wg.Done()
			for ev := range ch {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}(src.Events(ctx))
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
