package encoder

import "fmt"

// Fixed capture profile. 16 kHz mono s16 is what the transcription
// services expect; fidelity is not a goal.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Encoder turns raw PCM blocks into one self-contained container
// (a segment). Close finalizes the container; Bytes is only valid
// after Close.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}

func New(format string) (Encoder, error) {
	switch format {
	case "wav":
		return NewWav()
	case "flac":
		return NewFlac()
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// MIMEType maps a container format to the MIME type sent to the
// transcription service.
func MIMEType(format string) string {
	switch format {
	case "flac":
		return "audio/flac"
	default:
		return "audio/wav"
	}
}
