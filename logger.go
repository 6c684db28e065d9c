package signalr

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TraceLevel controls how much the client logs.
type TraceLevel int

const (
	TraceVerbose TraceLevel = iota
	TraceDebug
	TraceInfo
	TraceWarning
	TraceError
	TraceCritical
	TraceNone
)

func (l TraceLevel) marker() string {
	switch l {
	case TraceVerbose:
		return "verbose  "
	case TraceDebug:
		return "debug    "
	case TraceInfo:
		return "info     "
	case TraceWarning:
		return "warning  "
	case TraceError:
		return "error    "
	case TraceCritical:
		return "critical "
	}
	return "none     "
}

// LogWriter is the sink the client writes trace lines to. Write receives a
// complete, newline-terminated line.
type LogWriter interface {
	Write(message string)
}

// LevelLogWriter is an optional extension of LogWriter. Sinks that implement
// it receive the raw level and entry instead of a preformatted line, so they
// can map entries onto their own level scheme.
type LevelLogWriter interface {
	WriteLevel(level TraceLevel, entry string)
}

// NewWriterLogSink returns a LogWriter that appends lines to out. Writes are
// serialized; errors from out are ignored.
func NewWriterLogSink(out io.Writer) LogWriter {
	return &writerLogSink{out: out}
}

type writerLogSink struct {
	mu  sync.Mutex
	out io.Writer
}

func (s *writerLogSink) Write(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	io.WriteString(s.out, message)
}

// NewZerologSink returns a LogWriter that forwards entries to a zerolog
// logger, mapping trace levels onto zerolog levels.
func NewZerologSink(l zerolog.Logger) LogWriter {
	return &zerologSink{l: l}
}

type zerologSink struct {
	l zerolog.Logger
}

func (s *zerologSink) Write(message string) {
	s.l.Info().Msg(strings.TrimRight(message, "\n"))
}

func (s *zerologSink) WriteLevel(level TraceLevel, entry string) {
	var ev *zerolog.Event
	switch level {
	case TraceVerbose:
		ev = s.l.Trace()
	case TraceDebug:
		ev = s.l.Debug()
	case TraceInfo:
		ev = s.l.Info()
	case TraceWarning:
		ev = s.l.Warn()
	case TraceError:
		ev = s.l.Error()
	default:
		ev = s.l.WithLevel(zerolog.FatalLevel)
	}
	ev.Msg(entry)
}

// logger formats entries as ISO-8601 UTC prefixed lines with an inlined level
// marker and hands them to the configured sink. A nil writer discards
// everything.
type logger struct {
	writer   LogWriter
	minLevel TraceLevel
}

func (l logger) isEnabled(level TraceLevel) bool {
	return l.writer != nil && level >= l.minLevel
}

func (l logger) log(level TraceLevel, entry string) {
	if !l.isEnabled(level) {
		return
	}
	if lw, ok := l.writer.(LevelLogWriter); ok {
		lw.WriteLevel(level, entry)
		return
	}
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.0000000Z")
	l.writer.Write(ts + " [" + level.marker() + "] " + entry + "\n")
}
