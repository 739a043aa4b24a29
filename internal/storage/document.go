package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// documentBackend stores each frame as one JSON or YAML document.
type documentBackend struct {
	format string
}

func (b documentBackend) path(dir, prefix string, frame int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%04d.%s", withDefault(prefix, "frame"), frame, b.format))
}

func (b documentBackend) Write(dir, prefix string, f *Frame, opts WriteOptions) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := b.path(dir, prefix, f.Frame)
	if err := checkClobber(path, opts.Clobber); err != nil {
		return err
	}

	out := *f
	if !opts.WriteAux {
		out.Aux = nil
		out.NumAux = 0
	}

	var (
		data []byte
		err  error
	)
	switch b.format {
	case "yaml":
		data, err = yaml.Marshal(&out)
	default:
		data, err = json.MarshalIndent(&out, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("storage: encode frame %d: %w", f.Frame, err)
	}
	return os.WriteFile(path, data, 0644)
}

func (b documentBackend) Read(dir, prefix string, frame int) (*Frame, error) {
	path := b.path(dir, prefix, frame)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFrameNotFound, path)
		}
		return nil, err
	}

	var f Frame
	switch b.format {
	case "yaml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", path, err)
	}
	return &f, nil
}
