package audio

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
)

func pcmBytes(samples ...int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

func pcmSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

type collector struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (c *collector) cb(data []byte, _ uint32) {
	c.mu.Lock()
	c.chunks = append(c.chunks, data)
	c.mu.Unlock()
}

func (c *collector) all() []int16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []int16
	for _, chunk := range c.chunks {
		out = append(out, pcmSamples(chunk)...)
	}
	return out
}

func cfg() CaptureConfig {
	return CaptureConfig{SampleRate: 16000, Channels: 1}
}

func TestAcquireMicOnly(t *testing.T) {
	ctx := NewFakeContext()
	ms, err := Acquire(ctx, cfg(), MixOptions{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer ms.Release()

	if ms.Degraded() {
		t.Error("mic-only acquire should not be degraded")
	}

	var col collector
	ms.SetCallback(col.cb)
	if err := ms.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx.MicCapture().Feed(pcmBytes(100, -200, 300))
	got := col.all()
	want := []int16{100, -200, 300}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestAcquireMicFailure(t *testing.T) {
	ctx := NewFakeContext()
	ctx.FailCapture = true
	_, err := Acquire(ctx, cfg(), MixOptions{})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestAcquireSystemAudioMixes(t *testing.T) {
	ctx := NewFakeContext()
	ctx.Monitor = &DeviceInfo{ID: "mon", Name: "Monitor of Built-in"}

	ms, err := Acquire(ctx, cfg(), MixOptions{SystemAudio: true})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer ms.Release()

	if ms.Degraded() {
		t.Fatal("system source available, should not be degraded")
	}

	var col collector
	ms.SetCallback(col.cb)
	if err := ms.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	captures := ctx.Captures()
	var mic, sys *FakeCapture
	for _, c := range captures {
		if c.IsMonitor() {
			sys = c
		} else {
			mic = c
		}
	}
	if mic == nil || sys == nil {
		t.Fatal("expected both mic and monitor captures")
	}

	// System audio arrives first, then the mic chunk clocks it out.
	sys.Feed(pcmBytes(10, 20, 30))
	mic.Feed(pcmBytes(1, 2, 3))

	got := col.all()
	want := []int16{11, 22, 33}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMixSaturates(t *testing.T) {
	ctx := NewFakeContext()
	ctx.Monitor = &DeviceInfo{ID: "mon", Name: "Monitor"}

	ms, err := Acquire(ctx, cfg(), MixOptions{SystemAudio: true})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer ms.Release()

	var col collector
	ms.SetCallback(col.cb)
	if err := ms.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var mic, sys *FakeCapture
	for _, c := range ctx.Captures() {
		if c.IsMonitor() {
			sys = c
		} else {
			mic = c
		}
	}

	sys.Feed(pcmBytes(32767, -32768))
	mic.Feed(pcmBytes(32767, -32768))

	got := col.all()
	if got[0] != 32767 {
		t.Errorf("positive overflow = %d, want clipped 32767", got[0])
	}
	if got[1] != -32768 {
		t.Errorf("negative overflow = %d, want clipped -32768", got[1])
	}
}

func TestMixMissingSystemSamplesAreSilence(t *testing.T) {
	ctx := NewFakeContext()
	ctx.Monitor = &DeviceInfo{ID: "mon", Name: "Monitor"}

	ms, err := Acquire(ctx, cfg(), MixOptions{SystemAudio: true})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer ms.Release()

	var col collector
	ms.SetCallback(col.cb)
	if err := ms.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var mic, sys *FakeCapture
	for _, c := range ctx.Captures() {
		if c.IsMonitor() {
			sys = c
		} else {
			mic = c
		}
	}

	sys.Feed(pcmBytes(5)) // only one system sample for a three-sample mic chunk
	mic.Feed(pcmBytes(1, 2, 3))

	got := col.all()
	want := []int16{6, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestAcquireDegradedWhenMonitorMissing(t *testing.T) {
	ctx := NewFakeContext() // no Monitor configured
	ms, err := Acquire(ctx, cfg(), MixOptions{SystemAudio: true})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer ms.Release()

	if !ms.Degraded() {
		t.Error("expected degraded stream when no monitor source exists")
	}

	// Mic capture still works.
	var col collector
	ms.SetCallback(col.cb)
	if err := ms.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx.MicCapture().Feed(pcmBytes(7))
	if got := col.all(); len(got) != 1 || got[0] != 7 {
		t.Errorf("mic passthrough = %v, want [7]", got)
	}
}

func TestAcquireDegradedWhenMonitorCaptureFails(t *testing.T) {
	ctx := NewFakeContext()
	ctx.Monitor = &DeviceInfo{ID: "mon", Name: "Monitor"}
	ctx.FailMonitorCapture = true

	ms, err := Acquire(ctx, cfg(), MixOptions{SystemAudio: true})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer ms.Release()

	if !ms.Degraded() {
		t.Error("expected degraded stream when monitor capture open fails")
	}
}

// A system source that fails to start is dropped before the mic goes
// live: once mic callbacks can run, ms.sys and ms.degraded are final.
func TestStartSystemFailureDegrades(t *testing.T) {
	ctx := NewFakeContext()
	ctx.Monitor = &DeviceInfo{ID: "mon", Name: "Monitor"}

	ms, err := Acquire(ctx, cfg(), MixOptions{SystemAudio: true})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer ms.Release()

	var mic, sys *FakeCapture
	for _, c := range ctx.Captures() {
		if c.IsMonitor() {
			sys = c
		} else {
			mic = c
		}
	}
	sys.FailStart = true

	var col collector
	ms.SetCallback(col.cb)

	// Drive mic callbacks from the moment the mic is live, the way
	// hardware does, while Start handles the system-source failure.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if mic.Started() {
				mic.Feed(pcmBytes(9))
			}
		}
	}()

	err = ms.Start()
	close(stop)
	wg.Wait()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if !ms.Degraded() {
		t.Error("expected degraded stream after system source start failure")
	}
	if sys.CloseCount() != 1 {
		t.Errorf("system capture close count = %d, want 1", sys.CloseCount())
	}
	if !mic.Started() {
		t.Error("mic capture not started")
	}

	mic.Feed(pcmBytes(9))
	got := col.all()
	if len(got) == 0 {
		t.Fatal("no mic samples delivered")
	}
	for i, s := range got {
		if s != 9 {
			t.Fatalf("sample %d = %d, want mic passthrough 9", i, s)
		}
	}
}

func TestReleaseIdempotent(t *testing.T) {
	ctx := NewFakeContext()
	ms, err := Acquire(ctx, cfg(), MixOptions{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := ms.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ms.Release()
	ms.Release()

	mic := ctx.MicCapture()
	if mic.CloseCount() != 1 {
		t.Errorf("CloseCount = %d, want 1 (release must be idempotent)", mic.CloseCount())
	}
}

func TestSysQueueDropsOldest(t *testing.T) {
	ctx := NewFakeContext()
	ctx.Monitor = &DeviceInfo{ID: "mon", Name: "Monitor"}

	ms, err := Acquire(ctx, cfg(), MixOptions{SystemAudio: true})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer ms.Release()

	var col collector
	ms.SetCallback(col.cb)
	if err := ms.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var mic, sys *FakeCapture
	for _, c := range ctx.Captures() {
		if c.IsMonitor() {
			sys = c
		} else {
			mic = c
		}
	}

	// Overfill the system queue: capacity + 2 samples, oldest two must go.
	chunk := make([]int16, sysQueueCap)
	for i := range chunk {
		chunk[i] = int16(i % 100)
	}
	sys.Feed(pcmBytes(1, 2))
	sys.Feed(pcmBytes(chunk...))

	mic.Feed(pcmBytes(0))
	got := col.all()
	if got[0] != chunk[0] {
		t.Errorf("first mixed sample = %d, want %d (oldest samples dropped)", got[0], chunk[0])
	}
}
