package signalr

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	lines []string
}

func (s *recordingSink) Write(message string) { s.lines = append(s.lines, message) }

func TestLoggerFormatsLines(t *testing.T) {
	sink := &recordingSink{}
	l := logger{writer: sink, minLevel: TraceInfo}

	l.log(TraceInfo, "hello")
	require.Len(t, sink.lines, 1)

	line := sink.lines[0]
	assert.True(t, strings.HasSuffix(line, "[info     ] hello\n"), "line %q", line)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{7}Z `, line)
}

func TestLoggerRespectsMinimumLevel(t *testing.T) {
	sink := &recordingSink{}
	l := logger{writer: sink, minLevel: TraceWarning}

	l.log(TraceDebug, "dropped")
	l.log(TraceError, "kept")

	require.Len(t, sink.lines, 1)
	assert.Contains(t, sink.lines[0], "[error    ] kept")
}

func TestLoggerNilWriterDiscards(t *testing.T) {
	l := logger{}
	assert.False(t, l.isEnabled(TraceCritical))
	l.log(TraceCritical, "nowhere")
}

func TestZerologSinkMapsLevels(t *testing.T) {
	var out strings.Builder
	zl := zerolog.New(&out)
	l := logger{writer: NewZerologSink(zl), minLevel: TraceVerbose}

	l.log(TraceWarning, "careful")

	assert.Contains(t, out.String(), `"level":"warn"`)
	assert.Contains(t, out.String(), "careful")
}
