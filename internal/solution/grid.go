package solution

import (
	"fmt"
	"math"

	"github.com/san-kum/simrun/internal/gauge"
)

// Dimension is a uniformly discretized interval.
type Dimension struct {
	Name     string
	Lower    float64
	Upper    float64
	NumCells int
}

func NewDimension(name string, lower, upper float64, numCells int) Dimension {
	return Dimension{Name: name, Lower: lower, Upper: upper, NumCells: numCells}
}

func (d Dimension) Delta() float64 {
	if d.NumCells == 0 {
		return 0
	}
	return (d.Upper - d.Lower) / float64(d.NumCells)
}

func (d Dimension) Centers() []float64 {
	dx := d.Delta()
	c := make([]float64, d.NumCells)
	for i := range c {
		c[i] = d.Lower + (float64(i)+0.5)*dx
	}
	return c
}

// Grid is a 1-D grid plus the gauge locations declared on it. The grid owns
// the gauge output streams once SetupGaugeFiles has been called.
type Grid struct {
	Dimension
	Gauges []float64

	streams *gauge.Registry
}

func NewGrid(d Dimension, gauges ...float64) *Grid {
	return &Grid{Dimension: d, Gauges: gauges}
}

// CellOf maps a location to the cell containing it, clamped to the grid.
func (g *Grid) CellOf(x float64) int {
	if g.NumCells <= 1 {
		return 0
	}
	i := int(math.Floor((x - g.Lower) / g.Delta()))
	return min(max(i, 0), g.NumCells-1)
}

func (g *Grid) IsValid() bool {
	if g.NumCells < 1 || !(g.Upper > g.Lower) {
		return false
	}
	for _, x := range g.Gauges {
		if x < g.Lower || x > g.Upper {
			return false
		}
	}
	return true
}

// SetupGaugeFiles opens one output stream per gauge in outdir. Any previously
// opened streams are closed first.
func (g *Grid) SetupGaugeFiles(outdir string) error {
	if err := g.streams.Close(); err != nil {
		return err
	}
	probes := make([]gauge.Probe, len(g.Gauges))
	for i, x := range g.Gauges {
		probes[i] = gauge.Probe{ID: i + 1, Location: x, Cell: g.CellOf(x)}
	}
	r, err := gauge.Open(outdir, probes)
	if err != nil {
		return fmt.Errorf("setup gauge files: %w", err)
	}
	g.streams = r
	return nil
}

// GaugeStreams returns the open streams, or nil before SetupGaugeFiles.
func (g *Grid) GaugeStreams() *gauge.Registry { return g.streams }

// clone copies the geometry only; streams stay with the original.
func (g *Grid) clone() *Grid {
	c := &Grid{Dimension: g.Dimension}
	c.Gauges = append([]float64(nil), g.Gauges...)
	return c
}
