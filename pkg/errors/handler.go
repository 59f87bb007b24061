package errors

import (
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

type handlerBox struct{ h ErrorHandler }

var current atomic.Pointer[handlerBox]

func init() {
	current.Store(&handlerBox{NewLogHandler(nil)})
}

// SetHandler installs h as the process-wide handler and returns the one it
// replaces. A nil h restores a LogHandler writing to stderr.
func SetHandler(h ErrorHandler) ErrorHandler {
	if h == nil {
		h = NewLogHandler(nil)
	}
	return current.Swap(&handlerBox{h}).h
}

// Handler returns the installed handler.
func Handler() ErrorHandler {
	return current.Load().h
}

// Report sends err to the installed handler, stamping it if needed.
func Report(err *MotionError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandleError(err)
}

// ReportPanic sends err to the installed handler, stamping it if needed.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandlePanic(err)
}

// Guard runs a caller-supplied callback for the animation identified by
// handle (zero when there is none). A panic is reported through ReportPanic
// and returned; the caller carries on with the next callback.
func Guard(op string, handle uint64, fn func()) (perr *PanicError) {
	defer func() {
		if r := recover(); r != nil {
			perr = newPanicError(op, handle, r)
			ReportPanic(perr)
		}
	}()
	fn()
	return nil
}

// Catch runs fn and turns a panic into a returned *PanicError without
// reporting it, for callers that fail the animation and report the failure
// themselves.
func Catch(op string, handle uint64, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(op, handle, r)
		}
	}()
	return fn()
}

func newPanicError(op string, handle uint64, value any) *PanicError {
	return &PanicError{
		Op:         op,
		Handle:     handle,
		Value:      value,
		StackTrace: panicStack(),
		Timestamp:  time.Now(),
	}
}

// panicStack formats the stack of a recovering goroutine starting at the
// frame that panicked. Runtime frames and this package's recovery frames
// are left out.
func panicStack() string {
	const (
		guardFunc = "github.com/go-drift/motion/pkg/errors.Guard"
		catchFunc = "github.com/go-drift/motion/pkg/errors.Catch"
	)
	const maxDepth = 48
	var pcs [maxDepth]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var sb strings.Builder
	seenPanic := false
	for {
		frame, more := frames.Next()
		switch {
		case frame.Function == "runtime.gopanic":
			seenPanic = true
		case !seenPanic, strings.HasPrefix(frame.Function, "runtime."),
			frame.Function == guardFunc, frame.Function == catchFunc:
		default:
			sb.WriteString(frame.Function)
			sb.WriteString("\n\t")
			sb.WriteString(frame.File)
			sb.WriteByte(':')
			sb.WriteString(strconv.Itoa(frame.Line))
			sb.WriteByte('\n')
		}
		if !more {
			break
		}
	}
	return sb.String()
}
