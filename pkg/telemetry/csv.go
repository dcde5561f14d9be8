package telemetry

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// TimestampLayout is the timestamp format of CSV rows.
const TimestampLayout = "2006-01-02 15:04:05"

// CSVSink appends one row per event:
//
//	timestamp, subject, throttle, front_s, rear_s, pan, tilt
type CSVSink struct {
	mu     sync.Mutex
	out    io.WriteCloser
	w      *csv.Writer
	closed bool
}

var _ Sink = (*CSVSink)(nil)

// NewCSVSink writes rows to path, rotating once the file passes maxSizeMB.
func NewCSVSink(path string, maxSizeMB, maxBackups int) *CSVSink {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return NewCSVSinkWriter(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	})
}

// NewCSVSinkWriter writes rows to out.
func NewCSVSinkWriter(out io.WriteCloser) *CSVSink {
	return &CSVSink{out: out, w: csv.NewWriter(out)}
}

// Emit writes and flushes one row.
func (s *CSVSink) Emit(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	st := e.State
	row := []string{
		e.Time.Format(TimestampLayout),
		e.Subject,
		strconv.Itoa(st.Throttle),
		strconv.Itoa(st.FrontSteer),
		strconv.Itoa(st.RearSteer),
		strconv.Itoa(st.Pan),
		strconv.Itoa(st.Tilt),
	}
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.w.Flush()
	return s.out.Close()
}
