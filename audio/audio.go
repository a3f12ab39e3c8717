package audio

import (
	"errors"
	"strings"
)

// ErrSourceUnavailable indicates the microphone could not be acquired.
// Unlike the system-audio source, the microphone is mandatory.
var ErrSourceUnavailable = errors.New("microphone source unavailable")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

// DefaultCaptureConfig is the fixed capture profile: 16 kHz mono s16le,
// what the transcription models expect.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{SampleRate: 16000, Channels: 1}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	// MonitorDevice returns a source carrying desktop/system audio, or nil
	// when the platform has none. Absence is not an error condition.
	MonitorDevice() (*DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}
