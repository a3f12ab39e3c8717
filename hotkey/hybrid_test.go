package hotkey

import (
	"testing"
	"time"
)

func waitGesture(t *testing.T, hy *Hybrid, want Gesture) {
	t.Helper()
	select {
	case got := <-hy.Gestures():
		if got != want {
			t.Fatalf("gesture = %v, want %v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for gesture %v", want)
	}
}

func TestHybridTap(t *testing.T) {
	fk := NewFake()
	hy := NewHybrid(fk, 200*time.Millisecond)

	fk.SimKeydown()
	fk.SimKeyup()
	waitGesture(t, hy, GestureTap)
}

func TestHybridHold(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	hy := NewHybrid(fk, threshold)

	fk.SimKeydown()
	waitGesture(t, hy, GestureHoldStart)
	fk.SimKeyup()
	waitGesture(t, hy, GestureHoldEnd)
}

func TestHybridMixedCycles(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	hy := NewHybrid(fk, threshold)

	// Hold
	fk.SimKeydown()
	waitGesture(t, hy, GestureHoldStart)
	fk.SimKeyup()
	waitGesture(t, hy, GestureHoldEnd)

	// Tap
	fk.SimKeydown()
	fk.SimKeyup()
	waitGesture(t, hy, GestureTap)

	// Hold again
	fk.SimKeydown()
	waitGesture(t, hy, GestureHoldStart)
	fk.SimKeyup()
	waitGesture(t, hy, GestureHoldEnd)
}

func TestHybridTapNeverEmitsHold(t *testing.T) {
	fk := NewFake()
	hy := NewHybrid(fk, 100*time.Millisecond)

	fk.SimKeydown()
	fk.SimKeyup()
	waitGesture(t, hy, GestureTap)

	select {
	case g := <-hy.Gestures():
		t.Fatalf("unexpected extra gesture %v", g)
	case <-time.After(150 * time.Millisecond):
	}
}
