package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/san-kum/simrun/internal/dynamo"
)

// Store is the catalog of runs under a data directory. Each run gets a
// directory holding metadata.json; frame output lives wherever the run's
// output directory points.
type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string    `json:"id"`
	Model       string    `json:"model"`
	Integrator  string    `json:"integrator"`
	Timestamp   time.Time `json:"timestamp"`
	Style       string    `json:"output_style"`
	TFinal      float64   `json:"tfinal"`
	OutDir      string    `json:"outdir"`
	Format      string    `json:"output_format"`
	StartFrame  int       `json:"start_frame"`
	NextFrame   int       `json:"next_frame"`
	Outcome     string    `json:"outcome"`
	FinalTime   float64   `json:"final_time"`
	Functionals []string  `json:"functionals,omitempty"`
	// FunctionalLog is the path of the functional log, empty when none.
	FunctionalLog string        `json:"functional_log,omitempty"`
	Status        dynamo.Status `json:"status"`
	Error         string        `json:"error,omitempty"`
}

// Save records meta under a fresh run id and returns it.
func (s *Store) Save(meta RunMetadata) (string, error) {
	ts := s.now()
	runID := fmt.Sprintf("%s_%d", meta.Model, ts.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = ts

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}
	return runID, nil
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Latest returns the most recent run of model, for resuming.
func (s *Store) Latest(model string) (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	for i := len(runs) - 1; i >= 0; i-- {
		if model == "" || runs[i].Model == model {
			return &runs[i], nil
		}
	}
	return nil, fmt.Errorf("no recorded runs for model %q", model)
}
