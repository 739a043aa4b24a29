// Package gauge manages the side-channel output streams of fixed probe
// locations. Solvers append records during evolution; the run driver flushes
// every stream after each output point and closes them when the run ends.
package gauge

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Probe is a gauge location resolved to a cell of the grid.
type Probe struct {
	ID       int
	Location float64
	Cell     int
}

// FileName is the file a gauge with the given id is written to.
func FileName(id int) string {
	return fmt.Sprintf("gauge%04d.txt", id)
}

// Stream is one open gauge output file.
type Stream struct {
	Probe
	path   string
	file   *os.File
	w      *bufio.Writer
	closed bool
}

func (s *Stream) Path() string { return s.path }

// Record appends one line "t q0 q1 ...".
func (s *Stream) Record(t float64, q []float64) error {
	if s.closed {
		return fmt.Errorf("gauge %d: write after close", s.ID)
	}
	var b strings.Builder
	b.WriteString(strconv.FormatFloat(t, 'e', 10, 64))
	for _, v := range q {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(v, 'e', 10, 64))
	}
	b.WriteByte('\n')
	if _, err := s.w.WriteString(b.String()); err != nil {
		return fmt.Errorf("gauge %d: %w", s.ID, err)
	}
	return nil
}

func (s *Stream) flush() error {
	if s.closed {
		return nil
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("gauge %d: flush: %w", s.ID, err)
	}
	return nil
}

func (s *Stream) close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	flushErr := s.w.Flush()
	closeErr := s.file.Close()
	if err := errors.Join(flushErr, closeErr); err != nil {
		return fmt.Errorf("gauge %d: close: %w", s.ID, err)
	}
	return nil
}

// Registry is the set of gauge streams tied to one run. All methods accept a
// nil receiver so grids without gauges need no special casing.
type Registry struct {
	dir     string
	streams []*Stream
}

// Open creates dir if needed and opens (truncating) one file per probe.
// On failure every stream opened so far is closed again.
func Open(dir string, probes []Probe) (*Registry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("gauge: create %s: %w", dir, err)
	}
	r := &Registry{dir: dir, streams: make([]*Stream, 0, len(probes))}
	for _, p := range probes {
		path := filepath.Join(dir, FileName(p.ID))
		f, err := os.Create(path)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("gauge: open %s: %w", path, err)
		}
		s := &Stream{Probe: p, path: path, file: f, w: bufio.NewWriter(f)}
		fmt.Fprintf(s.w, "# gauge %d x=%g cell=%d\n", p.ID, p.Location, p.Cell)
		r.streams = append(r.streams, s)
	}
	return r, nil
}

func (r *Registry) Dir() string {
	if r == nil {
		return ""
	}
	return r.dir
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.streams)
}

func (r *Registry) Streams() []*Stream {
	if r == nil {
		return nil
	}
	return r.streams
}

// Open reports how many streams are still open.
func (r *Registry) Open() int {
	n := 0
	for _, s := range r.Streams() {
		if !s.closed {
			n++
		}
	}
	return n
}

// Flush flushes every open stream.
func (r *Registry) Flush() error {
	var errs []error
	for _, s := range r.Streams() {
		errs = append(errs, s.flush())
	}
	return errors.Join(errs...)
}

// Close closes every stream exactly once. Later calls are no-ops.
func (r *Registry) Close() error {
	var errs []error
	for _, s := range r.Streams() {
		errs = append(errs, s.close())
	}
	return errors.Join(errs...)
}
