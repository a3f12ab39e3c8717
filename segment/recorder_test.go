package segment

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"recap/audio"
	"recap/encoder"
)

func testStream(t *testing.T) (*audio.MixedStream, *audio.FakeContext) {
	t.Helper()
	ctx := audio.NewFakeContext()
	ms, err := audio.Acquire(ctx, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}, audio.MixOptions{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	return ms, ctx
}

func pcmChunk(n int) []byte {
	data := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(i%500))
	}
	return data
}

type segmentSink struct {
	mu   sync.Mutex
	segs []Segment
}

func (s *segmentSink) add(seg Segment) {
	s.mu.Lock()
	s.segs = append(s.segs, seg)
	s.mu.Unlock()
}

func (s *segmentSink) all() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Segment, len(s.segs))
	copy(out, s.segs)
	return out
}

func TestRecorderEmitsSegmentsInOrder(t *testing.T) {
	ms, ctx := testStream(t)
	defer ms.Release()

	var sink segmentSink
	rec, err := StartRecorder(ms, "wav", 40*time.Millisecond, sink.add)
	if err != nil {
		t.Fatalf("StartRecorder: %v", err)
	}

	// Feed across several cycles.
	for i := 0; i < 6; i++ {
		ctx.MicCapture().Feed(pcmChunk(256))
		time.Sleep(30 * time.Millisecond)
	}
	rec.Stop()

	segs := sink.all()
	if len(segs) < 2 {
		t.Fatalf("got %d segments, want at least 2", len(segs))
	}
	for i, seg := range segs {
		if seg.Empty() {
			t.Errorf("segment %d is empty", i)
		}
		if !seg.End.After(seg.Start) {
			t.Errorf("segment %d: End %v not after Start %v", i, seg.End, seg.Start)
		}
		if seg.MIME != "audio/wav" {
			t.Errorf("segment %d MIME = %q", i, seg.MIME)
		}
		if i > 0 && segs[i].Start.Before(segs[i-1].Start) {
			t.Errorf("segment %d out of order", i)
		}
		if len(seg.Data) < 44 || string(seg.Data[:4]) != "RIFF" {
			t.Errorf("segment %d is not a standalone WAV container", i)
		}
	}
}

func TestRecorderDropsEmptyCycles(t *testing.T) {
	ms, _ := testStream(t)
	defer ms.Release()

	var sink segmentSink
	rec, err := StartRecorder(ms, "wav", 25*time.Millisecond, sink.add)
	if err != nil {
		t.Fatalf("StartRecorder: %v", err)
	}

	// No data fed at all: several cycles elapse, nothing may be emitted.
	time.Sleep(120 * time.Millisecond)
	rec.Stop()

	if got := sink.all(); len(got) != 0 {
		t.Errorf("got %d segments from silence-free capture, want 0", len(got))
	}
}

func TestRecorderStopFlushesTrailingAudio(t *testing.T) {
	ms, ctx := testStream(t)
	defer ms.Release()

	var sink segmentSink
	rec, err := StartRecorder(ms, "wav", time.Hour, sink.add)
	if err != nil {
		t.Fatalf("StartRecorder: %v", err)
	}

	ctx.MicCapture().Feed(pcmChunk(512))
	rec.Stop()

	segs := sink.all()
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1 flushed on stop", len(segs))
	}
	if segs[0].Empty() {
		t.Error("flushed segment is empty")
	}
}

func TestRecorderStopIdempotent(t *testing.T) {
	ms, _ := testStream(t)
	defer ms.Release()

	var sink segmentSink
	rec, err := StartRecorder(ms, "wav", 50*time.Millisecond, sink.add)
	if err != nil {
		t.Fatalf("StartRecorder: %v", err)
	}
	rec.Stop()
	rec.Stop() // second stop must not panic or double-flush

	if n := len(sink.all()); n != 0 {
		t.Errorf("got %d segments, want 0", n)
	}
}

func TestRecorderRejectsZeroDuration(t *testing.T) {
	ms, _ := testStream(t)
	defer ms.Release()

	if _, err := StartRecorder(ms, "wav", 0, func(Segment) {}); err == nil {
		t.Error("expected error for zero segment duration")
	}
}

func TestRecorderFillsRingWithinBudget(t *testing.T) {
	ms, ctx := testStream(t)
	defer ms.Release()

	ring := NewRing(200 * time.Millisecond)
	rec, err := StartRecorder(ms, "wav", 40*time.Millisecond, ring.Append)
	if err != nil {
		t.Fatalf("StartRecorder: %v", err)
	}

	deadline := time.Now().Add(350 * time.Millisecond)
	for time.Now().Before(deadline) {
		ctx.MicCapture().Feed(pcmChunk(128))
		time.Sleep(20 * time.Millisecond)
	}
	rec.Stop()

	if ring.Len() == 0 {
		t.Fatal("ring is empty after sustained capture")
	}
	if span := ring.Span(); span > 250*time.Millisecond {
		t.Errorf("ring span %v exceeds configured bound", span)
	}
}
