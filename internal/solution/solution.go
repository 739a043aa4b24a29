// Package solution is the simulation state handed between the run driver and
// a solver: one or more patches of field data, the current time, and the
// frame a resumed run starts from.
package solution

import (
	"fmt"

	"github.com/san-kum/simrun/internal/storage"
)

type Solution struct {
	States []*State

	startFrame int
}

func New(states ...*State) *Solution {
	return &Solution{States: states}
}

// State returns the first patch, or nil for an empty solution.
func (s *Solution) State() *State {
	if len(s.States) == 0 {
		return nil
	}
	return s.States[0]
}

func (s *Solution) Grid() *Grid {
	if st := s.State(); st != nil {
		return st.Grid
	}
	return nil
}

// T is the current simulation time.
func (s *Solution) T() float64 {
	if st := s.State(); st != nil {
		return st.T
	}
	return 0
}

// SetT moves every patch to time t. Only solvers call this.
func (s *Solution) SetT(t float64) {
	for _, st := range s.States {
		st.T = t
	}
}

func (s *Solution) StartFrame() int     { return s.startFrame }
func (s *Solution) SetStartFrame(n int) { s.startFrame = n }

// IsValid checks the solution as a whole; per-state checks are separate.
func (s *Solution) IsValid() bool {
	if len(s.States) == 0 || s.States[0] == nil {
		return false
	}
	t := s.States[0].T
	for _, st := range s.States {
		if st == nil || st.T != t {
			return false
		}
	}
	return s.startFrame >= 0
}

// Clone deep-copies every patch.
func (s *Solution) Clone() *Solution {
	c := &Solution{startFrame: s.startFrame, States: make([]*State, len(s.States))}
	for i, st := range s.States {
		c.States[i] = st.Clone()
	}
	return c
}

// WriteSpec selects the backend and per-write policy.
type WriteSpec struct {
	Handler  string
	Format   string
	Clobber  bool
	WriteAux bool
	// WriteP writes the derived quantities P in place of Q.
	WriteP  bool
	Options map[string]string
}

func (st *State) record(frame int, writeP bool) *storage.Frame {
	f := &storage.Frame{
		Frame:       frame,
		T:           st.T,
		NumEqn:      st.NumEqn,
		NumAux:      st.NumAux,
		NumCells:    st.Grid.NumCells,
		Lower:       st.Grid.Lower,
		Upper:       st.Grid.Upper,
		Q:           st.Q,
		Aux:         st.Aux,
		ProblemData: st.ProblemData,
	}
	if writeP {
		f.NumEqn = st.NumP
		f.Q = st.P
	}
	return f
}

// Write persists the first patch as frame number frame under path.
func (s *Solution) Write(frame int, path, prefix string, spec WriteSpec) error {
	if storage.Disabled(spec.Handler, spec.Format) {
		return nil
	}
	st := s.State()
	if st == nil {
		return fmt.Errorf("write frame %d: empty solution", frame)
	}
	b, err := storage.Lookup(spec.Handler, spec.Format)
	if err != nil {
		return err
	}
	opts := storage.WriteOptions{Clobber: spec.Clobber, WriteAux: spec.WriteAux && !spec.WriteP, Options: spec.Options}
	if err := b.Write(path, prefix, st.record(frame, spec.WriteP), opts); err != nil {
		return fmt.Errorf("write frame %d: %w", frame, err)
	}
	return nil
}

// Read restores the first patch from a previously written frame and marks
// that frame as the one a resumed run starts from.
func (s *Solution) Read(frame int, path, prefix string, spec WriteSpec) error {
	st := s.State()
	if st == nil {
		return fmt.Errorf("read frame %d: empty solution", frame)
	}
	b, err := storage.Lookup(spec.Handler, spec.Format)
	if err != nil {
		return err
	}
	f, err := b.Read(path, prefix, frame)
	if err != nil {
		return fmt.Errorf("read frame %d: %w", frame, err)
	}
	if f.NumEqn != st.NumEqn || f.NumCells != st.Grid.NumCells {
		return fmt.Errorf("read frame %d: layout %dx%d does not match solution %dx%d",
			frame, f.NumEqn, f.NumCells, st.NumEqn, st.Grid.NumCells)
	}
	copy(st.Q, f.Q)
	if f.NumAux == st.NumAux && len(f.Aux) == len(st.Aux) {
		copy(st.Aux, f.Aux)
	}
	for k, v := range f.ProblemData {
		st.ProblemData[k] = v
	}
	s.SetT(f.T)
	s.startFrame = frame
	return nil
}
