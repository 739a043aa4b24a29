package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// csvBackend writes one row per cell: frame, t, x, q0.., aux0...
type csvBackend struct{}

func csvPath(dir, prefix string, frame int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%04d.csv", withDefault(prefix, "frame"), frame))
}

func (csvBackend) Write(dir, prefix string, f *Frame, opts WriteOptions) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := csvPath(dir, prefix, f.Frame)
	if err := checkClobber(path, opts.Clobber); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)

	header := []string{"frame", "t", "x"}
	for m := 0; m < f.NumEqn; m++ {
		header = append(header, fmt.Sprintf("q%d", m))
	}
	writeAux := opts.WriteAux && f.NumAux > 0
	if writeAux {
		for m := 0; m < f.NumAux; m++ {
			header = append(header, fmt.Sprintf("aux%d", m))
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	dx := f.Delta()
	frameID := strconv.Itoa(f.Frame)
	t := strconv.FormatFloat(f.T, 'f', 6, 64)
	for i := 0; i < f.NumCells; i++ {
		x := f.Lower + (float64(i)+0.5)*dx
		row := []string{frameID, t, strconv.FormatFloat(x, 'f', 6, 64)}
		for m := 0; m < f.NumEqn; m++ {
			row = append(row, strconv.FormatFloat(f.Q[m*f.NumCells+i], 'g', -1, 64))
		}
		if writeAux {
			for m := 0; m < f.NumAux; m++ {
				row = append(row, strconv.FormatFloat(f.Aux[m*f.NumCells+i], 'g', -1, 64))
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// Read is not supported: the table does not carry the grid bounds exactly.
func (csvBackend) Read(dir, prefix string, frame int) (*Frame, error) {
	return nil, fmt.Errorf("storage: csv frames cannot be read back: %w", errors.ErrUnsupported)
}
