package segment

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"recap/audio"
	"recap/encoder"
)

// Recorder drives a mixed stream through a cyclic record-emit-restart
// loop: accumulate PCM for one segment duration, finalize a container,
// hand it to the callback, start over. Stop flushes the in-progress
// cycle so no trailing audio is lost.
//
// The capture callback only appends raw samples under a lock; all
// encoding happens on the cycle goroutine.
type Recorder struct {
	stream    *audio.MixedStream
	format    string
	duration  time.Duration
	onSegment func(Segment)

	mu         sync.Mutex
	sampleBuf  []int16
	cycleStart time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartRecorder attaches to the stream and begins the segment cycle.
// The recorder does not own the stream: releasing it stays with the
// caller.
func StartRecorder(stream *audio.MixedStream, format string, duration time.Duration, onSegment func(Segment)) (*Recorder, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("segment duration must be positive, got %v", duration)
	}
	r := &Recorder{
		stream:    stream,
		format:    format,
		duration:  duration,
		onSegment: onSegment,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	stream.SetCallback(r.onData)
	if err := stream.Start(); err != nil {
		stream.ClearCallback()
		return nil, err
	}

	r.cycleStart = time.Now()
	go r.run()
	return r, nil
}

func (r *Recorder) onData(data []byte, _ uint32) {
	r.mu.Lock()
	for i := 0; i+1 < len(data); i += 2 {
		r.sampleBuf = append(r.sampleBuf, int16(binary.LittleEndian.Uint16(data[i:])))
	}
	r.mu.Unlock()
}

func (r *Recorder) run() {
	defer close(r.done)
	timer := time.NewTimer(r.duration)
	defer timer.Stop()
	for {
		select {
		case <-r.stop:
			r.emitCycle()
			return
		case <-timer.C:
			r.emitCycle()
			timer.Reset(r.duration)
		}
	}
}

// emitCycle finalizes the current cycle and starts the next one.
// Cycles that produced no data are dropped, not emitted: capture
// backends occasionally deliver nothing in an interval and an empty
// container is not content.
func (r *Recorder) emitCycle() {
	now := time.Now()

	r.mu.Lock()
	pcm := r.sampleBuf
	r.sampleBuf = nil
	start := r.cycleStart
	r.cycleStart = now
	r.mu.Unlock()

	if len(pcm) == 0 {
		return
	}

	data, err := encodePCM(r.format, pcm)
	if err != nil || len(data) == 0 {
		return
	}

	r.onSegment(Segment{
		Data:  data,
		Start: start,
		End:   now,
		MIME:  encoder.MIMEType(r.format),
	})
}

// Stop halts capture and the cycle loop. The final partial segment, if
// it holds any data, is delivered through the callback before Stop
// returns. Idempotent.
func (r *Recorder) Stop() {
	r.once.Do(func() {
		r.stream.Stop()
		r.stream.ClearCallback()
		close(r.stop)
	})
	<-r.done
}

func encodePCM(format string, pcm []int16) ([]byte, error) {
	enc, err := encoder.New(format)
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(pcm); i += encoder.BlockSize {
		end := min(i+encoder.BlockSize, len(pcm))
		if err := enc.EncodeBlock(pcm[i:end]); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}
