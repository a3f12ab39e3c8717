package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
)

// sysQueueCap bounds how much system audio can pile up between mic
// callbacks before the oldest samples are dropped (one second at 16 kHz).
const sysQueueCap = 16000

type MixOptions struct {
	Device      *DeviceInfo // nil = system default microphone
	SystemAudio bool
}

// MixedStream merges the microphone with the desktop/system monitor source
// into a single mono stream. The microphone drives the output clock: each
// mic chunk is summed with whatever system audio arrived since the last
// chunk, missing system samples count as silence.
//
// The microphone is mandatory. The system source is best-effort: when it
// cannot be acquired the stream still works and Degraded reports true.
type MixedStream struct {
	mic      CaptureDevice
	sys      CaptureDevice
	degraded bool

	callback atomic.Pointer[DataCallback]

	mu       sync.Mutex
	sysQueue []int16

	releaseOnce sync.Once
}

// Acquire opens the capture sources described by opts. A microphone failure
// aborts with ErrSourceUnavailable; a system-audio failure only degrades.
func Acquire(ctx Context, config CaptureConfig, opts MixOptions) (*MixedStream, error) {
	mic, err := ctx.NewCapture(opts.Device, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	ms := &MixedStream{mic: mic}
	mic.SetCallback(ms.onMic)

	if opts.SystemAudio {
		mon, err := ctx.MonitorDevice()
		if err != nil || mon == nil {
			ms.degraded = true
		} else {
			sys, err := ctx.NewCapture(mon, config)
			if err != nil {
				ms.degraded = true
			} else {
				sys.SetCallback(ms.onSystem)
				ms.sys = sys
			}
		}
	}

	return ms, nil
}

// Degraded reports whether system audio was requested but unavailable.
func (ms *MixedStream) Degraded() bool { return ms.degraded }

func (ms *MixedStream) MicName() string { return ms.mic.DeviceName() }

func (ms *MixedStream) SetCallback(cb DataCallback) {
	ms.callback.Store(&cb)
}

func (ms *MixedStream) ClearCallback() {
	ms.callback.Store(nil)
}

// Start begins capture on both sources. A microphone start failure is
// fatal; a system-source start failure drops that source and degrades.
// The system source starts first: ms.sys and ms.degraded must not be
// written after the mic is live, mic callbacks read them unsynchronized.
func (ms *MixedStream) Start() error {
	if ms.sys != nil {
		if err := ms.sys.Start(); err != nil {
			ms.sys.ClearCallback()
			ms.sys.Close()
			ms.sys = nil
			ms.degraded = true
		}
	}
	if err := ms.mic.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return nil
}

func (ms *MixedStream) Stop() {
	ms.mic.Stop()
	if ms.sys != nil {
		ms.sys.Stop()
	}
}

// Release stops and closes every underlying source. Idempotent.
func (ms *MixedStream) Release() {
	ms.releaseOnce.Do(func() {
		ms.ClearCallback()
		ms.mic.ClearCallback()
		ms.mic.Stop()
		ms.mic.Close()
		if ms.sys != nil {
			ms.sys.ClearCallback()
			ms.sys.Stop()
			ms.sys.Close()
		}
	})
}

func (ms *MixedStream) onSystem(data []byte, _ uint32) {
	ms.mu.Lock()
	for i := 0; i+1 < len(data); i += 2 {
		ms.sysQueue = append(ms.sysQueue, int16(binary.LittleEndian.Uint16(data[i:])))
	}
	// Drop oldest on overflow; the capture callback must never block.
	if overflow := len(ms.sysQueue) - sysQueueCap; overflow > 0 {
		ms.sysQueue = ms.sysQueue[overflow:]
	}
	ms.mu.Unlock()
}

func (ms *MixedStream) onMic(data []byte, frameCount uint32) {
	cb := ms.callback.Load()
	if cb == nil {
		ms.mu.Lock()
		ms.sysQueue = ms.sysQueue[:0]
		ms.mu.Unlock()
		return
	}

	if ms.sys == nil {
		out := make([]byte, len(data))
		copy(out, data)
		(*cb)(out, frameCount)
		return
	}

	n := len(data) / 2
	ms.mu.Lock()
	take := min(n, len(ms.sysQueue))
	sys := make([]int16, take)
	copy(sys, ms.sysQueue[:take])
	ms.sysQueue = ms.sysQueue[take:]
	ms.mu.Unlock()

	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		sample := int32(int16(binary.LittleEndian.Uint16(data[i*2:])))
		if i < take {
			sample += int32(sys[i])
		}
		if sample > 32767 {
			sample = 32767
		} else if sample < -32768 {
			sample = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sample)))
	}
	(*cb)(out, uint32(n))
}
