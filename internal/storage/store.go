package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/san-kum/flexsim/internal/config"
	"github.com/san-kum/flexsim/internal/scenario"
)

const (
	metadataFile  = "metadata.json"
	positionsFile = "positions.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Scenario  string             `json:"scenario"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Dt        float64            `json:"dt"`
	Duration  float64            `json:"duration"`
	Substeps  int                `json:"substeps"`
	Particles int                `json:"particles"`
	Frames    int                `json:"frames"`
	Metrics   map[string]float64 `json:"metrics"`
	Config    *config.Config     `json:"config,omitempty"`
}

// Save writes result under a fresh run id and returns the id.
func (s *Store) Save(cfg *config.Config, result *scenario.Result) (string, error) {
	runID := fmt.Sprintf("%s_%s", result.Scenario, uuid.NewString())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Scenario:  result.Scenario,
		Timestamp: time.Now(),
		Seed:      cfg.Seed,
		Dt:        cfg.Dt,
		Duration:  cfg.Duration,
		Substeps:  cfg.Substeps,
		Particles: len(result.Particles),
		Frames:    len(result.Frames),
		Metrics:   result.Metrics,
		Config:    cfg,
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writePositions(filepath.Join(runDir, positionsFile), result); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writePositions stores one row per frame: the time, then x, y and z of
// every particle.
func writePositions(path string, result *scenario.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"time"}
	for _, p := range result.Particles {
		header = append(header, fmt.Sprintf("p%d_x", p), fmt.Sprintf("p%d_y", p), fmt.Sprintf("p%d_z", p))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i, frame := range result.Frames {
		row := make([]string, 0, 1+3*len(frame))
		row = append(row, strconv.FormatFloat(result.Times[i], 'f', 6, 64))
		for _, p := range frame {
			for _, v := range p {
				row = append(row, strconv.FormatFloat(float64(v), 'g', -1, 32))
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every readable run, newest first.
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
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadFrames reads the positions written by Save.
func (s *Store) LoadFrames(runID string) ([]float64, [][]mgl32.Vec3, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, positionsFile))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) < 2 {
		return []float64{}, [][]mgl32.Vec3{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	frames := make([][]mgl32.Vec3, 0, len(records)-1)
	for line, record := range records[1:] {
		if (len(record)-1)%3 != 0 {
			return nil, nil, fmt.Errorf("%s line %d: %d position columns", positionsFile, line+2, len(record)-1)
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: %w", positionsFile, line+2, err)
		}
		frame := make([]mgl32.Vec3, (len(record)-1)/3)
		for j := 1; j < len(record); j++ {
			v, err := strconv.ParseFloat(record[j], 32)
			if err != nil {
				return nil, nil, fmt.Errorf("%s line %d: %w", positionsFile, line+2, err)
			}
			frame[(j-1)/3][(j-1)%3] = float32(v)
		}
		times = append(times, t)
		frames = append(frames, frame)
	}
	return times, frames, nil
}
