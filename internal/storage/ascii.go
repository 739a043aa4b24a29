package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// asciiBackend writes the classic fort.t/fort.q/fort.a text triplet.
type asciiBackend struct{}

func asciiPaths(dir, prefix string, frame int) (t, q, a string) {
	prefix = withDefault(prefix, "fort")
	id := fmt.Sprintf("%04d", frame)
	return filepath.Join(dir, prefix+".t"+id),
		filepath.Join(dir, prefix+".q"+id),
		filepath.Join(dir, prefix+".a"+id)
}

func (asciiBackend) Write(dir, prefix string, f *Frame, opts WriteOptions) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tPath, qPath, aPath := asciiPaths(dir, prefix, f.Frame)
	if err := checkClobber(qPath, opts.Clobber); err != nil {
		return err
	}

	numAux := 0
	if opts.WriteAux {
		numAux = f.NumAux
	}
	header := fmt.Sprintf("%22.14e    time\n%5d                 num_eqn\n%5d                 num_grids\n%5d                 num_aux\n%5d                 num_dim\n",
		f.T, f.NumEqn, 1, numAux, 1)
	if err := os.WriteFile(tPath, []byte(header), 0644); err != nil {
		return err
	}

	if err := writeASCIIArray(qPath, f, f.Q, f.NumEqn); err != nil {
		return err
	}
	if opts.WriteAux && f.NumAux > 0 {
		return writeASCIIArray(aPath, f, f.Aux, f.NumAux)
	}
	return nil
}

func writeASCIIArray(path string, f *Frame, data []float64, ncomp int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "%5d                 grid_number\n", 1)
	fmt.Fprintf(w, "%5d                 AMR_level\n", 1)
	fmt.Fprintf(w, "%5d                 mx\n", f.NumCells)
	fmt.Fprintf(w, "%22.14e    xlow\n", f.Lower)
	fmt.Fprintf(w, "%22.14e    dx\n", f.Delta())
	w.WriteString("\n")
	for i := 0; i < f.NumCells; i++ {
		for m := 0; m < ncomp; m++ {
			fmt.Fprintf(w, "%22.14e", data[m*f.NumCells+i])
		}
		w.WriteString("\n")
	}
	return w.Flush()
}

func (asciiBackend) Read(dir, prefix string, frame int) (*Frame, error) {
	tPath, qPath, aPath := asciiPaths(dir, prefix, frame)

	tLines, err := readLeadingFields(tPath)
	if err != nil {
		return nil, err
	}
	if len(tLines) < 4 {
		return nil, fmt.Errorf("storage: %s: truncated header", tPath)
	}
	f := &Frame{Frame: frame}
	if f.T, err = strconv.ParseFloat(tLines[0], 64); err != nil {
		return nil, fmt.Errorf("storage: %s: time: %w", tPath, err)
	}
	if f.NumEqn, err = strconv.Atoi(tLines[1]); err != nil {
		return nil, fmt.Errorf("storage: %s: num_eqn: %w", tPath, err)
	}
	if f.NumAux, err = strconv.Atoi(tLines[3]); err != nil {
		return nil, fmt.Errorf("storage: %s: num_aux: %w", tPath, err)
	}

	if f.Q, err = readASCIIArray(qPath, f, f.NumEqn); err != nil {
		return nil, err
	}
	if f.NumAux > 0 {
		if f.Aux, err = readASCIIArray(aPath, f, f.NumAux); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// readLeadingFields returns the first field of every non-empty line.
func readLeadingFields(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, path)
		}
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out, nil
}

func readASCIIArray(path string, f *Frame, ncomp int) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, path)
		}
		return nil, err
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) < 6 {
		return nil, fmt.Errorf("storage: %s: truncated header", path)
	}
	head := make([]string, 5)
	for i := range head {
		fields := strings.Fields(lines[i])
		if len(fields) == 0 {
			return nil, fmt.Errorf("storage: %s: malformed header line %d", path, i+1)
		}
		head[i] = fields[0]
	}
	mx, err := strconv.Atoi(head[2])
	if err != nil {
		return nil, fmt.Errorf("storage: %s: mx: %w", path, err)
	}
	xlow, err := strconv.ParseFloat(head[3], 64)
	if err != nil {
		return nil, fmt.Errorf("storage: %s: xlow: %w", path, err)
	}
	dx, err := strconv.ParseFloat(head[4], 64)
	if err != nil {
		return nil, fmt.Errorf("storage: %s: dx: %w", path, err)
	}
	f.NumCells, f.Lower, f.Upper = mx, xlow, xlow+float64(mx)*dx

	out := make([]float64, ncomp*mx)
	cell := 0
	for _, line := range lines[5:] {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if cell >= mx || len(fields) != ncomp {
			return nil, fmt.Errorf("storage: %s: unexpected row %q", path, line)
		}
		for m, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("storage: %s: %w", path, err)
			}
			out[m*mx+cell] = v
		}
		cell++
	}
	if cell != mx {
		return nil, fmt.Errorf("storage: %s: expected %d cells, got %d", path, mx, cell)
	}
	return out, nil
}
