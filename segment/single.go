package segment

import (
	"encoding/binary"
	"sync"
	"time"

	"recap/audio"
	"recap/encoder"
)

// SingleShot records one continuous take from explicit start to explicit
// stop, with no intermediate segmentation. Used for push-to-talk.
type SingleShot struct {
	stream *audio.MixedStream
	format string
	start  time.Time

	mu        sync.Mutex
	sampleBuf []int16
	stopped   bool
}

func StartSingleShot(stream *audio.MixedStream, format string) (*SingleShot, error) {
	s := &SingleShot{
		stream: stream,
		format: format,
	}
	stream.SetCallback(s.onData)
	if err := stream.Start(); err != nil {
		stream.ClearCallback()
		return nil, err
	}
	s.start = time.Now()
	return s, nil
}

func (s *SingleShot) onData(data []byte, _ uint32) {
	s.mu.Lock()
	if !s.stopped {
		for i := 0; i+1 < len(data); i += 2 {
			s.sampleBuf = append(s.sampleBuf, int16(binary.LittleEndian.Uint16(data[i:])))
		}
	}
	s.mu.Unlock()
}

// Stop halts capture and returns the whole take as one segment. The
// underlying stream's stop joins its capture goroutine, so every byte
// delivered before Stop is included — the tail is never truncated.
// A take with no data returns an empty segment, not an error; the
// caller decides whether empty is a problem.
func (s *SingleShot) Stop() (Segment, error) {
	s.stream.Stop()
	s.stream.ClearCallback()

	s.mu.Lock()
	s.stopped = true
	pcm := s.sampleBuf
	s.sampleBuf = nil
	s.mu.Unlock()

	end := time.Now()
	seg := Segment{
		Start: s.start,
		End:   end,
		MIME:  encoder.MIMEType(s.format),
	}
	if len(pcm) == 0 {
		return seg, nil
	}

	data, err := encodePCM(s.format, pcm)
	if err != nil {
		return Segment{}, err
	}
	seg.Data = data
	return seg, nil
}
