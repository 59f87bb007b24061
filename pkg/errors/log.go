package errors

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// LogHandler is an ErrorHandler that writes structured log events.
type LogHandler struct {
	// Verbose adds stack traces to the logged events.
	Verbose bool

	log zerolog.Logger
}

// NewLogHandler returns a LogHandler writing JSON events to w.
// A nil writer logs to stderr.
func NewLogHandler(w io.Writer) *LogHandler {
	if w == nil {
		w = os.Stderr
	}
	return &LogHandler{log: zerolog.New(w).With().Timestamp().Str("component", "motion").Logger()}
}

// NewLogHandlerWithLogger returns a LogHandler that logs through l.
func NewLogHandlerWithLogger(l zerolog.Logger) *LogHandler {
	return &LogHandler{log: l}
}

// HandleError logs a MotionError.
func (h *LogHandler) HandleError(err *MotionError) {
	if err == nil {
		return
	}
	ev := h.log.Error().
		Str("op", err.Op).
		Str("kind", err.Kind.String()).
		Time("at", err.Timestamp)
	if err.Handle != 0 {
		ev = ev.Uint64("handle", err.Handle)
	}
	if h.Verbose && err.StackTrace != "" {
		ev = ev.Str("stack", err.StackTrace)
	}
	ev.Err(err.Err).Msg("motion error")
}

// HandlePanic logs a PanicError.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	ev := h.log.Error().
		Str("kind", KindPanic.String()).
		Interface("value", err.Value)
	if err.Op != "" {
		ev = ev.Str("op", err.Op)
	}
	if err.Handle != 0 {
		ev = ev.Uint64("handle", err.Handle)
	}
	if h.Verbose && err.StackTrace != "" {
		ev = ev.Str("stack", err.StackTrace)
	}
	ev.Msg("motion panic")
}
