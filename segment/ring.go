package segment

import (
	"sync"
	"time"
)

// Ring retains the most recent segments up to a maximum total span.
// Appends happen at the tail from the recorder callback while window
// extraction reads concurrently; a single mutex covers both since every
// operation is a short copy.
type Ring struct {
	mu           sync.Mutex
	maxDuration  time.Duration
	segments     []Segment
	sessionStart time.Time

	now func() time.Time
}

func NewRing(maxDuration time.Duration) *Ring {
	return &Ring{
		maxDuration:  maxDuration,
		sessionStart: time.Now(),
		now:          time.Now,
	}
}

// Append adds a segment at the tail and evicts from the head until the
// retained span fits maxDuration again.
func (r *Ring) Append(seg Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments = append(r.segments, seg)
	r.evictLocked()
}

// evictLocked drops head segments while the span exceeds maxDuration.
// A single segment is never evicted on its own: an oversized lone
// segment is still the best (only) answer the buffer has, so the span
// bound is relaxed for that one case. Unreachable with validated
// config, where a segment (<=30s) is far shorter than the buffer
// (>=300s).
func (r *Ring) evictLocked() {
	for len(r.segments) > 1 {
		span := r.segments[len(r.segments)-1].End.Sub(r.segments[0].Start)
		if span <= r.maxDuration {
			return
		}
		r.segments[0] = Segment{}
		r.segments = r.segments[1:]
	}
}

// ExtractWindow returns audio covering the last `minutes` minutes.
//
// Segments are independent containers and cannot be concatenated into
// one decodable unit without a remux step, so this returns only the
// single most recent segment whose end falls inside the window — a
// deliberate, documented trade-off, not full-window coverage. Older
// qualifying segments stay retained and keep counting toward eviction.
// The second return value is false when no segment qualifies.
func (r *Ring) ExtractWindow(minutes int) (Segment, bool) {
	cutoff := r.now().Add(-time.Duration(minutes) * time.Minute)

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.segments) - 1; i >= 0; i-- {
		if r.segments[i].End.After(cutoff) {
			seg := r.segments[i]
			data := make([]byte, len(seg.Data))
			copy(data, seg.Data)
			seg.Data = data
			return seg, true
		}
	}
	return Segment{}, false
}

// Span reports current buffer occupancy: the time covered by retained
// segments, or time since session start while none has been emitted yet.
func (r *Ring) Span() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.segments) == 0 {
		return r.now().Sub(r.sessionStart)
	}
	return r.segments[len(r.segments)-1].End.Sub(r.segments[0].Start)
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.segments)
}
