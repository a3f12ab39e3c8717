// Package segment implements the capture side of the rolling recall
// engine: discrete, independently decodable audio segments, the cyclic
// recorder that produces them, the time-bounded ring that retains them,
// and the single-shot recorder used for push-to-talk takes.
package segment

import "time"

// Segment is one independently recorded and independently decodable
// slice of audio. Data holds a complete container (WAV or FLAC), never
// a bare PCM run.
type Segment struct {
	Data  []byte
	Start time.Time
	End   time.Time
	MIME  string
}

func (s Segment) Empty() bool { return len(s.Data) == 0 }

func (s Segment) Duration() time.Duration { return s.End.Sub(s.Start) }
