package main

import (
	"time"

	"recap/controller"
)

// EventSink abstracts the display layer so the engine never depends on
// how status is rendered.
type EventSink interface {
	StageChanged(stage controller.Stage)
	BufferSpan(d time.Duration)
	Transcript(text string)
	Answer(text string)
	Warning(text string)
	Failure(err error)
}

// pumpEvents forwards controller notifications and periodic status
// into the sink until the controller's event channel would block
// forever (it never closes, so the pump runs for the process lifetime).
func pumpEvents(c *controller.Controller, sink EventSink) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case ev := <-c.Events():
			switch ev.Kind {
			case controller.KindTranscript:
				sink.Transcript(ev.Text)
			case controller.KindAnswer:
				sink.Answer(ev.Text)
			case controller.KindWarning:
				sink.Warning(ev.Text)
			case controller.KindError:
				sink.Failure(ev.Err)
			}
		case <-ticker.C:
			sink.StageChanged(c.Stage())
			sink.BufferSpan(c.BufferSpan())
		}
	}
}

// nullSink is used in headless mode.
type nullSink struct{}

func (nullSink) StageChanged(controller.Stage) {}
func (nullSink) BufferSpan(time.Duration)      {}
func (nullSink) Transcript(string)             {}
func (nullSink) Answer(string)                 {}
func (nullSink) Warning(string)                {}
func (nullSink) Failure(error)                 {}
