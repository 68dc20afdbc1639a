// Package storage keeps finished runs on disk for the list and plot
// commands. Each run is a directory holding metadata.json and
// trace.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when no stored run matches an id.
var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// LevelChange records a supervisor transition during a run.
type LevelChange struct {
	Time float64 `json:"time"`
	From string  `json:"from"`
	To   string  `json:"to"`
}

type Pose struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Phi float64 `json:"phi"`
}

type RunMetadata struct {
	ID             string             `json:"id"`
	Preset         string             `json:"preset,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
	Dt             float64            `json:"dt"`
	Duration       float64            `json:"duration"`
	Ticks          int                `json:"ticks"`
	Integrator     string             `json:"integrator"`
	ControllerForm string             `json:"controller_form"`
	FinalLevel     string             `json:"final_level"`
	FinalPose      Pose               `json:"final_pose"`
	Levels         []LevelChange      `json:"levels,omitempty"`
	Metrics        map[string]float64 `json:"metrics"`
}

// Trace is a time series with one supervisor level and a fixed set of
// numeric columns per row.
type Trace struct {
	Columns []string
	Times   []float64
	Levels  []string
	Rows    [][]float64
}

func NewTrace(columns ...string) *Trace {
	return &Trace{Columns: columns}
}

// Append adds a row. Missing trailing values are stored as zero.
func (t *Trace) Append(at float64, level string, values ...float64) {
	row := make([]float64, len(t.Columns))
	copy(row, values)
	t.Times = append(t.Times, at)
	t.Levels = append(t.Levels, level)
	t.Rows = append(t.Rows, row)
}

func (t *Trace) Len() int { return len(t.Times) }

// Column returns the named series.
func (t *Trace) Column(name string) ([]float64, error) {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("unknown column %q (available: %s)", name, strings.Join(t.Columns, ", "))
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Save writes a run and returns its id. An empty meta.ID is replaced
// by a fresh UUID.
func (s *Store) Save(meta RunMetadata, trace *Trace) (string, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

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

	csvFile, err := os.Create(filepath.Join(runDir, "trace.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	header := append([]string{"time", "level"}, trace.Columns...)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for i, row := range trace.Rows {
		rec := make([]string, 0, len(row)+2)
		rec = append(rec, strconv.FormatFloat(trace.Times[i], 'f', 6, 64), trace.Levels[i])
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', 10, 64))
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return meta.ID, nil
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

// Resolve expands a unique id prefix to a full run id.
func (s *Store) Resolve(prefix string) (string, error) {
	runs, err := s.List()
	if err != nil {
		return "", err
	}
	var match []string
	for _, r := range runs {
		if r.ID == prefix {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, prefix) {
			match = append(match, r.ID)
		}
	}
	switch len(match) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return match[0], nil
	default:
		return "", fmt.Errorf("run id %s is ambiguous: %s", prefix, strings.Join(match, ", "))
	}
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadTrace(runID string) (*Trace, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "trace.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || len(records[0]) < 2 {
		return nil, fmt.Errorf("run %s: trace has no header", runID)
	}

	trace := NewTrace(records[0][2:]...)
	for line, rec := range records[1:] {
		at, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("run %s: line %d: %w", runID, line+2, err)
		}
		values := make([]float64, 0, len(rec)-2)
		for _, field := range rec[2:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s: line %d: %w", runID, line+2, err)
			}
			values = append(values, v)
		}
		trace.Append(at, rec[1], values...)
	}
	return trace, nil
}
