package audio

import (
	"fmt"
	"sync"
)

// FakeContext is an in-memory Context for tests. Captures are driven
// manually with Feed instead of real hardware callbacks.
type FakeContext struct {
	DeviceList []DeviceInfo
	Monitor    *DeviceInfo

	FailCapture        bool // every NewCapture fails
	FailMonitor        bool // MonitorDevice returns an error
	FailMonitorCapture bool // NewCapture fails for the monitor device only

	mu       sync.Mutex
	captures []*FakeCapture
}

func NewFakeContext() *FakeContext {
	return &FakeContext{
		DeviceList: []DeviceInfo{{ID: "fake-mic", Name: "fake mic"}},
	}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return f.DeviceList, nil }

func (f *FakeContext) MonitorDevice() (*DeviceInfo, error) {
	if f.FailMonitor {
		return nil, fmt.Errorf("fake monitor enumeration failure")
	}
	return f.Monitor, nil
}

func (f *FakeContext) NewCapture(device *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	if f.FailCapture {
		return nil, fmt.Errorf("fake capture open failure")
	}
	isMonitor := f.Monitor != nil && device != nil && device.ID == f.Monitor.ID
	if isMonitor && f.FailMonitorCapture {
		return nil, fmt.Errorf("fake monitor capture open failure")
	}
	c := &FakeCapture{device: device, monitor: isMonitor}
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

func (f *FakeContext) Close() {}

// Captures returns every capture handed out so far, in creation order.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeCapture, len(f.captures))
	copy(out, f.captures)
	return out
}

// MicCapture returns the most recent non-monitor capture, or nil.
func (f *FakeContext) MicCapture() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.captures) - 1; i >= 0; i-- {
		if !f.captures[i].monitor {
			return f.captures[i]
		}
	}
	return nil
}

type FakeCapture struct {
	device  *DeviceInfo
	monitor bool

	FailStart bool

	mu      sync.Mutex
	cb      DataCallback
	started bool
	stops   int
	closes  int
}

func (c *FakeCapture) Start() error {
	if c.FailStart {
		return fmt.Errorf("fake capture start failure")
	}
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	return nil
}

func (c *FakeCapture) Stop() {
	c.mu.Lock()
	c.started = false
	c.stops++
	c.mu.Unlock()
}

func (c *FakeCapture) Close() {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
}

func (c *FakeCapture) SetCallback(cb DataCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *FakeCapture) ClearCallback() {
	c.mu.Lock()
	c.cb = nil
	c.mu.Unlock()
}

func (c *FakeCapture) DeviceName() string {
	if c.device != nil {
		return c.device.Name
	}
	return "fake default"
}

func (c *FakeCapture) IsMonitor() bool { return c.monitor }

func (c *FakeCapture) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *FakeCapture) StopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

func (c *FakeCapture) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Feed delivers raw s16le bytes to the registered callback, simulating
// a hardware data-ready event.
func (c *FakeCapture) Feed(data []byte) {
	c.mu.Lock()
	cb := c.cb
	c.mu.Unlock()
	if cb != nil {
		cb(data, uint32(len(data)/2))
	}
}
