// Package frame numbers output snapshots.
package frame

import "fmt"

// Counter identifies the next output snapshot. The zero value starts at 0.
type Counter struct {
	n int
}

// Set seeds the counter, typically with a solution's start frame when a run
// is resumed.
func (c *Counter) Set(n int) { c.n = n }

func (c *Counter) Increment() { c.n++ }

func (c *Counter) Value() int { return c.n }

// String renders the fixed-width form embedded in output filenames.
func (c *Counter) String() string {
	return fmt.Sprintf("%04d", c.n)
}
