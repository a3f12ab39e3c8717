// Package controller drives the capture state machine: it owns the
// mixer stream, the active recorder, the ring buffer and the pipeline
// calls, and exposes the stage transitions the frontend renders.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"recap/audio"
	"recap/log"
	"recap/pipeline"
	"recap/segment"
)

type Stage int

const (
	StageIdle Stage = iota
	StageRecording
	StageExtracting
	StageTranscribing
	StageThinking
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageRecording:
		return "recording"
	case StageExtracting:
		return "extracting"
	case StageTranscribing:
		return "transcribing"
	case StageThinking:
		return "thinking"
	}
	return "unknown"
}

type Mode int

const (
	ModeContinuous Mode = iota
	ModePushToTalk
)

func (m Mode) String() string {
	if m == ModePushToTalk {
		return "push-to-talk"
	}
	return "continuous"
}

var (
	// ErrActive rejects a start while a session is already running.
	ErrActive = errors.New("capture already active")
	// ErrNotRecording rejects extraction or stop-and-send while idle.
	ErrNotRecording = errors.New("not recording")
	// ErrBusy rejects a second pipeline trigger while one is in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrEmptyBuffer means window extraction found no qualifying segment.
	ErrEmptyBuffer = errors.New("no audio in the requested window")
	// ErrEmptyAudio means a push-to-talk take produced zero bytes.
	ErrEmptyAudio = errors.New("recorded audio is empty")
	// ErrEmptyTranscript means transcription succeeded but returned no text.
	ErrEmptyTranscript = errors.New("transcription returned no text")
	// ErrStopped means the session was torn down while the pipeline call
	// was in flight; the result was discarded.
	ErrStopped = errors.New("stopped before the result arrived")
)

type EventKind int

const (
	KindTranscript EventKind = iota
	KindAnswer
	KindWarning
	KindError
)

// Event is the notification surface for the frontend: transcripts,
// answers, warnings and pipeline failures.
type Event struct {
	ID        uuid.UUID
	Kind      EventKind
	Text      string
	Err       error
	Timestamp time.Time
}

// Outcome is the transcript/answer pair returned to the caller that
// triggered a pipeline run.
type Outcome struct {
	Transcript string
	Answer     string
}

// Options is the per-session configuration snapshot. It is read at
// Start; changing it mid-session has no effect until the next Start.
type Options struct {
	Device          *audio.DeviceInfo
	SystemAudio     bool
	Format          string
	SegmentDuration time.Duration
	BufferMax       time.Duration
	SendDirect      bool // skip transcription, send audio to the reasoner
	Instruction     string
	Window          int // extraction window in minutes
}

// Controller is a single-owner state machine. One instance owns one
// mode and at most one recording session; pipeline runs are
// single-flight. All hardware handles it acquires are released by
// Stop, unconditionally and idempotently.
type Controller struct {
	actx        audio.Context
	captureCfg  audio.CaptureConfig
	transcriber pipeline.Transcriber
	reasoner    pipeline.Reasoner

	mu         sync.Mutex
	mode       Mode
	stage      Stage
	generation uint64
	opts       Options
	stream     *audio.MixedStream
	recorder   *segment.Recorder
	single     *segment.SingleShot
	ring       *segment.Ring

	events chan Event
}

func New(actx audio.Context, mode Mode, opts Options, t pipeline.Transcriber, r pipeline.Reasoner) *Controller {
	return &Controller{
		actx:        actx,
		captureCfg:  audio.DefaultCaptureConfig(),
		transcriber: t,
		reasoner:    r,
		mode:        mode,
		opts:        opts,
		events:      make(chan Event, 16),
	}
}

// Events returns the notification channel. Sends never block: when the
// consumer lags, events are dropped rather than stalling capture.
func (c *Controller) Events() <-chan Event { return c.events }

func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// BufferSpan reports ring occupancy for the frontend, zero when no
// continuous session is active.
func (c *Controller) BufferSpan() time.Duration {
	c.mu.Lock()
	r := c.ring
	c.mu.Unlock()
	if r == nil {
		return 0
	}
	return r.Span()
}

// Start acquires the audio sources and begins capturing in the current
// mode. A microphone failure aborts back to Idle; a missing system
// source only emits a degraded warning.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stage != StageIdle {
		return ErrActive
	}

	stream, err := audio.Acquire(c.actx, c.captureCfg, audio.MixOptions{
		Device:      c.opts.Device,
		SystemAudio: c.opts.SystemAudio,
	})
	if err != nil {
		return fmt.Errorf("acquiring audio sources: %w", err)
	}

	switch c.mode {
	case ModeContinuous:
		// A fresh ring per activation: leftover audio from a previous
		// session must never leak into a new one.
		ring := segment.NewRing(c.opts.BufferMax)
		rec, err := segment.StartRecorder(stream, c.opts.Format, c.opts.SegmentDuration, ring.Append)
		if err != nil {
			stream.Release()
			return fmt.Errorf("starting recorder: %w", err)
		}
		c.ring = ring
		c.recorder = rec
	case ModePushToTalk:
		single, err := segment.StartSingleShot(stream, c.opts.Format)
		if err != nil {
			stream.Release()
			return fmt.Errorf("starting capture: %w", err)
		}
		c.single = single
	}

	c.stream = stream
	c.stage = StageRecording
	log.SessionStart(c.mode.String(), c.opts.Format)

	if stream.Degraded() {
		log.Warn("system audio unavailable, capturing microphone only")
		c.emit(Event{Kind: KindWarning, Text: "system audio unavailable, capturing microphone only"})
	}
	return nil
}

// ExtractAndSend pulls the last `minutes` minutes from the ring and
// runs them through the pipeline. Recording continues in the
// background throughout. Only one extraction may be in flight; a
// second call while the first is mid-pipeline returns ErrBusy.
func (c *Controller) ExtractAndSend(ctx context.Context, minutes int) (Outcome, error) {
	c.mu.Lock()
	if c.mode != ModeContinuous {
		c.mu.Unlock()
		return Outcome{}, fmt.Errorf("extraction requires continuous mode")
	}
	switch c.stage {
	case StageRecording:
	case StageIdle:
		c.mu.Unlock()
		return Outcome{}, ErrNotRecording
	default:
		c.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	gen := c.generation
	ring := c.ring
	opts := c.opts
	c.stage = StageExtracting
	c.mu.Unlock()

	seg, ok := ring.ExtractWindow(minutes)
	if !ok {
		c.settle(gen, StageRecording)
		log.Info("window extraction found no audio")
		c.emit(Event{Kind: KindWarning, Text: "no audio in the requested window", Err: ErrEmptyBuffer})
		return Outcome{}, ErrEmptyBuffer
	}

	return c.process(ctx, gen, seg, opts, StageRecording)
}

// StopAndSend ends a push-to-talk take and runs it through the
// pipeline. The session always ends Idle with the sources released,
// whether the take was empty, the pipeline failed, or everything
// succeeded.
func (c *Controller) StopAndSend(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.mode != ModePushToTalk {
		c.mu.Unlock()
		return Outcome{}, fmt.Errorf("stop-and-send requires push-to-talk mode")
	}
	switch c.stage {
	case StageRecording:
	case StageIdle:
		c.mu.Unlock()
		return Outcome{}, ErrNotRecording
	default:
		c.mu.Unlock()
		return Outcome{}, ErrBusy
	}
	gen := c.generation
	single := c.single
	stream := c.stream
	opts := c.opts
	c.single = nil
	c.stream = nil
	c.stage = StageTranscribing
	c.mu.Unlock()

	seg, err := single.Stop()
	stream.Release()
	if err != nil {
		c.settle(gen, StageIdle)
		return Outcome{}, fmt.Errorf("flushing take: %w", err)
	}
	if seg.Empty() {
		c.settle(gen, StageIdle)
		log.Info("push-to-talk take was empty")
		c.emit(Event{Kind: KindWarning, Text: "recorded audio is empty", Err: ErrEmptyAudio})
		return Outcome{}, ErrEmptyAudio
	}

	return c.process(ctx, gen, seg, opts, StageIdle)
}

// process runs one segment through the pipeline and settles the stage
// back to resume (Recording for continuous, Idle for push-to-talk).
// Every transition is generation-checked: once a teardown has bumped
// the generation this run can no longer touch controller state, and
// its result is discarded.
func (c *Controller) process(ctx context.Context, gen uint64, seg segment.Segment, opts Options, resume Stage) (Outcome, error) {
	var out Outcome

	if opts.SendDirect {
		if !c.advance(gen, StageThinking) {
			return Outcome{}, ErrStopped
		}
		resp, err := c.reasoner.ReasonAudio(ctx, seg.Data, seg.MIME, opts.Instruction)
		if !c.settle(gen, resume) {
			return Outcome{}, ErrStopped
		}
		if err != nil {
			c.reportFailure("reasoning", err)
			return Outcome{}, fmt.Errorf("reasoning failed: %w", err)
		}
		out.Answer = resp.Text
		c.emit(Event{Kind: KindAnswer, Text: resp.Text})
		return out, nil
	}

	if !c.advance(gen, StageTranscribing) {
		return Outcome{}, ErrStopped
	}
	tr, err := c.transcriber.Transcribe(ctx, seg.Data, seg.MIME)
	if err != nil {
		if !c.settle(gen, resume) {
			return Outcome{}, ErrStopped
		}
		c.reportFailure("transcription", err)
		return Outcome{}, fmt.Errorf("transcription failed: %w", err)
	}
	if tr.Text == "" {
		if !c.settle(gen, resume) {
			return Outcome{}, ErrStopped
		}
		c.emit(Event{Kind: KindWarning, Text: "transcription returned no text", Err: ErrEmptyTranscript})
		return Outcome{}, ErrEmptyTranscript
	}
	// The transcript is published only once the generation check confirms
	// the session is still live; a teardown during Transcribe discards it.
	if !c.advance(gen, StageThinking) {
		return Outcome{}, ErrStopped
	}
	out.Transcript = tr.Text
	log.TranscriptionText(tr.Text)
	c.emit(Event{Kind: KindTranscript, Text: tr.Text})
	resp, err := c.reasoner.Reason(ctx, tr.Text, opts.Instruction)
	if !c.settle(gen, resume) {
		return out, ErrStopped
	}
	if err != nil {
		c.reportFailure("reasoning", err)
		return out, fmt.Errorf("reasoning failed: %w", err)
	}
	out.Answer = resp.Text
	c.emit(Event{Kind: KindAnswer, Text: resp.Text})
	return out, nil
}

// Stop tears the session down unconditionally from any stage: recorder
// stopped and flushed, sources released, stage Idle. An in-flight
// pipeline call is not waited for; bumping the generation makes its
// eventual result a no-op. Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

func (c *Controller) teardownLocked() {
	c.generation++

	if c.recorder != nil {
		c.recorder.Stop()
		c.recorder = nil
	}
	if c.single != nil {
		c.single.Stop()
		c.single = nil
	}
	if c.stream != nil {
		c.stream.Release()
		c.stream = nil
	}
	if c.stage != StageIdle {
		log.SessionEnd(c.ringLen())
	}
	c.ring = nil
	c.stage = StageIdle
}

func (c *Controller) ringLen() int {
	if c.ring == nil {
		return 0
	}
	return c.ring.Len()
}

// SetMode switches between continuous and push-to-talk. Rejected while
// a pipeline run is in flight; otherwise any active session is torn
// down first and the controller ends Idle in the new mode.
func (c *Controller) SetMode(m Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.stage {
	case StageExtracting, StageTranscribing, StageThinking:
		return ErrBusy
	}
	c.teardownLocked()
	c.mode = m
	return nil
}

// SetOptions replaces the config snapshot used by the next Start.
func (c *Controller) SetOptions(opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

// advance moves to stage s if the session generation still matches.
func (c *Controller) advance(gen uint64, s Stage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.stage = s
	return true
}

// settle is advance for the end of a pipeline run: it restores the
// resume stage unless a teardown got there first.
func (c *Controller) settle(gen uint64, s Stage) bool {
	return c.advance(gen, s)
}

func (c *Controller) reportFailure(service string, err error) {
	var apiErr *pipeline.APIError
	if errors.As(err, &apiErr) {
		log.Errorf("%s failed: status %d: %s", service, apiErr.StatusCode, apiErr.Body)
	} else {
		log.Errorf("%s failed: %v", service, err)
	}
	c.emit(Event{Kind: KindError, Err: err})
}

func (c *Controller) emit(ev Event) {
	ev.ID = uuid.New()
	ev.Timestamp = time.Now()
	select {
	case c.events <- ev:
	default:
	}
}
