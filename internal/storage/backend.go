// Package storage persists output frames through named backends and keeps a
// catalog of completed runs.
//
// A backend is selected by an (io handler, file format) pair:
//
//	native/ascii   fort.tNNNN + fort.qNNNN (+ fort.aNNNN) text files
//	native/csv     one CSV table per frame (write only)
//	native/json    one JSON document per frame
//	native/yaml    one YAML document per frame
//	sqlite/sqlite  all frames of a directory in <prefix>.db
//
// A handler or format of "none" (or empty) disables output.
package storage

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownBackend = errors.New("storage: unknown io handler/format")
	ErrFileExists     = errors.New("storage: refusing to overwrite existing frame")
	ErrFrameNotFound  = errors.New("storage: frame not found")
)

const (
	HandlerNative = "native"
	HandlerSQLite = "sqlite"
	HandlerNone   = "none"
)

// Frame is the backend-neutral record of one output point. Q holds NumEqn
// components over NumCells cells, component-major.
type Frame struct {
	Frame       int                `json:"frame" yaml:"frame"`
	T           float64            `json:"t" yaml:"t"`
	NumEqn      int                `json:"num_eqn" yaml:"num_eqn"`
	NumAux      int                `json:"num_aux" yaml:"num_aux"`
	NumCells    int                `json:"num_cells" yaml:"num_cells"`
	Lower       float64            `json:"lower" yaml:"lower"`
	Upper       float64            `json:"upper" yaml:"upper"`
	Q           []float64          `json:"q" yaml:"q"`
	Aux         []float64          `json:"aux,omitempty" yaml:"aux,omitempty"`
	ProblemData map[string]float64 `json:"problem_data,omitempty" yaml:"problem_data,omitempty"`
}

// Delta is the cell width.
func (f *Frame) Delta() float64 {
	if f.NumCells == 0 {
		return 0
	}
	return (f.Upper - f.Lower) / float64(f.NumCells)
}

// WriteOptions are the per-write knobs a run passes through to a backend.
type WriteOptions struct {
	Clobber  bool
	WriteAux bool
	Options  map[string]string
}

// Backend writes and reads frames under a directory.
type Backend interface {
	Write(dir, prefix string, f *Frame, opts WriteOptions) error
	Read(dir, prefix string, frame int) (*Frame, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

func key(handler, format string) string {
	return strings.ToLower(handler) + "/" + strings.ToLower(format)
}

// Register makes a backend available under (handler, format).
func Register(handler, format string, b Backend) {
	mu.Lock()
	defer mu.Unlock()
	backends[key(handler, format)] = b
}

// Disabled reports whether the pair turns output off.
func Disabled(handler, format string) bool {
	h, f := strings.TrimSpace(handler), strings.TrimSpace(format)
	return h == "" || f == "" || strings.EqualFold(h, HandlerNone) || strings.EqualFold(f, HandlerNone)
}

// Lookup resolves a backend.
func Lookup(handler, format string) (Backend, error) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := backends[key(handler, format)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s (available: %s)", ErrUnknownBackend, handler, format, strings.Join(available(), ", "))
	}
	return b, nil
}

// Available lists the registered pairs.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()
	return available()
}

func available() []string {
	names := make([]string, 0, len(backends))
	for k := range backends {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(HandlerNative, "ascii", asciiBackend{})
	Register(HandlerNative, "csv", csvBackend{})
	Register(HandlerNative, "json", documentBackend{format: "json"})
	Register(HandlerNative, "yaml", documentBackend{format: "yaml"})
	Register(HandlerSQLite, "sqlite", sqliteBackend{})
}

// checkClobber refuses to replace path unless clobbering is allowed.
func checkClobber(path string, clobber bool) error {
	if clobber {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrFileExists, path)
	}
	return nil
}

func withDefault(prefix, def string) string {
	if strings.TrimSpace(prefix) == "" {
		return def
	}
	return prefix
}
