package logger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// sink is one log destination. A sink with a component prefix only receives
// lines from components under that prefix.
type sink struct {
	name   string
	prefix string
	buf    *bufio.Writer
}

func (s sink) accepts(component string) bool {
	if s.prefix == "" {
		return true
	}
	return component == s.prefix || strings.HasPrefix(component, s.prefix+".")
}

// line is a queued record, or a flush barrier when ack is set.
type line struct {
	component string
	data      []byte
	ack       chan error
}

// sinkWriter fans formatted lines out to sinks on a single goroutine so that
// slow files never stall handlers.
type sinkWriter struct {
	queue chan line
	done  chan struct{}
	sinks []sink

	// state guards queue sends against Close.
	state  sync.RWMutex
	closed bool

	mu  sync.Mutex
	err error
}

const sinkQueueSize = 512

var errWriterClosed = errors.New("logger: writer closed")

func newSinkWriter(sinks []sink) *sinkWriter {
	w := &sinkWriter{
		queue: make(chan line, sinkQueueSize),
		done:  make(chan struct{}),
		sinks: sinks,
	}
	go w.run()
	return w
}

// writerSink builds an unfiltered sink.
func writerSink(name string, out io.Writer) sink {
	return sink{name: name, buf: bufio.NewWriterSize(out, 32*1024)}
}

// componentSink builds a sink that only receives lines from prefix and its children.
func componentSink(name, prefix string, out io.Writer) sink {
	s := writerSink(name, out)
	s.prefix = prefix
	return s
}

func (w *sinkWriter) run() {
	defer close(w.done)
	for ln := range w.queue {
		if ln.ack != nil {
			ln.ack <- w.flush()
			continue
		}
		w.write(ln)
		// Keep stdout and files current between bursts.
		if len(w.queue) == 0 {
			if err := w.flush(); err != nil {
				w.fail(err)
			}
		}
	}
	if err := w.flush(); err != nil {
		w.fail(err)
	}
}

func (w *sinkWriter) write(ln line) {
	for _, s := range w.sinks {
		if !s.accepts(ln.component) {
			continue
		}
		if _, err := s.buf.Write(ln.data); err != nil {
			w.fail(err)
		}
	}
}

func (w *sinkWriter) flush() error {
	var errs []error
	for _, s := range w.sinks {
		if err := s.buf.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// WriteLine queues one formatted record for the sinks accepting component.
func (w *sinkWriter) WriteLine(component string, data []byte) error {
	if err := w.failed(); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	w.state.RLock()
	defer w.state.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.queue <- line{component: component, data: append([]byte(nil), data...)}
	return nil
}

// Flush blocks until every line queued before it has reached the sinks.
func (w *sinkWriter) Flush() error {
	w.state.RLock()
	if w.closed {
		w.state.RUnlock()
		return w.failed()
	}
	ack := make(chan error, 1)
	w.queue <- line{ack: ack}
	w.state.RUnlock()
	return <-ack
}

// Close drains the queue and returns the first write error.
func (w *sinkWriter) Close() error {
	w.state.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.state.Unlock()
	<-w.done
	return w.failed()
}

func (w *sinkWriter) failed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *sinkWriter) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
