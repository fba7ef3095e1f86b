package notify

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// Sink receives toasts. Implementations must not block the caller for long.
type Sink interface {
	Notify(Toast)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Toast)

// Notify calls f.
func (f SinkFunc) Notify(toast Toast) {
	if f != nil {
		f(toast)
	}
}

// Discard drops every toast.
var Discard Sink = SinkFunc(func(Toast) {})

// LogSink renders toasts into the process log.
type LogSink struct {
	Localizer Localizer
}

// Notify logs the rendered toast.
func (s LogSink) Notify(toast Toast) {
	log.Printf("toast %s: %s", toast.Level, Render(s.Localizer, toast))
}

// WriterSink renders toasts as lines on w.
type WriterSink struct {
	mu  sync.Mutex
	w   io.Writer
	loc Localizer
}

// NewWriterSink builds a sink writing to w.
func NewWriterSink(w io.Writer, loc Localizer) *WriterSink {
	return &WriterSink{w: w, loc: loc}
}

// Notify writes one line per toast.
func (s *WriterSink) Notify(toast Toast) {
	if s == nil || s.w == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "[%s] %s\n", toast.Level, Render(s.loc, toast)); err != nil {
		log.Printf("write toast: %v", err)
	}
}

// Recorder keeps every toast it receives.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

// Notify records toast.
func (r *Recorder) Notify(toast Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, toast)
}

// Toasts returns a copy of the recorded toasts.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// OrDiscard returns sink, or Discard when sink is nil.
func OrDiscard(sink Sink) Sink {
	if sink == nil {
		return Discard
	}
	return sink
}
