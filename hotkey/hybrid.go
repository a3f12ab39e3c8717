package hotkey

import (
	"time"
)

type Gesture int

const (
	// GestureTap is a press released before the hold threshold:
	// extract the recent window and send it.
	GestureTap Gesture = iota
	// GestureHoldStart fires when a press crosses the hold threshold:
	// begin a push-to-talk take.
	GestureHoldStart
	// GestureHoldEnd fires when a held key is released: finish the take.
	GestureHoldEnd
)

// Hybrid distinguishes taps from holds on a single key combination and
// emits the resulting gestures. The caller maps them onto the capture
// modes: tap triggers a window extraction, hold brackets a
// push-to-talk take.
type Hybrid struct {
	gestures chan Gesture
}

// NewHybrid wraps hk; a press held longer than holdThreshold counts as
// a hold, anything shorter is a tap.
func NewHybrid(hk Hotkey, holdThreshold time.Duration) *Hybrid {
	h := &Hybrid{
		gestures: make(chan Gesture, 4),
	}
	go h.run(hk, holdThreshold)
	return h
}

func (h *Hybrid) Gestures() <-chan Gesture { return h.gestures }

func (h *Hybrid) run(hk Hotkey, holdThreshold time.Duration) {
	for {
		<-hk.Keydown()
		timer := time.NewTimer(holdThreshold)
		select {
		case <-timer.C:
			h.gestures <- GestureHoldStart
			<-hk.Keyup()
			h.gestures <- GestureHoldEnd
		case <-hk.Keyup():
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			h.gestures <- GestureTap
		}
	}
}
