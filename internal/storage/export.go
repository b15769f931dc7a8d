package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/flexsim/internal/config"
	"github.com/san-kum/flexsim/internal/scenario"
)

type ExportData struct {
	Scenario  string             `json:"scenario"`
	Dt        float64            `json:"dt"`
	Duration  float64            `json:"duration"`
	Substeps  int                `json:"substeps"`
	Particles []int              `json:"particles"`
	Times     []float64          `json:"times"`
	Frames    [][]mgl32.Vec3     `json:"frames"`
	Metrics   map[string]float64 `json:"metrics"`
}

func newExportData(cfg *config.Config, result *scenario.Result) ExportData {
	return ExportData{
		Scenario:  result.Scenario,
		Dt:        cfg.Dt,
		Duration:  cfg.Duration,
		Substeps:  cfg.Substeps,
		Particles: result.Particles,
		Times:     result.Times,
		Frames:    result.Frames,
		Metrics:   result.Metrics,
	}
}

// WriteJSON encodes a run as one indented JSON document.
func WriteJSON(w io.Writer, cfg *config.Config, result *scenario.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newExportData(cfg, result))
}

func ExportJSON(path string, cfg *config.Config, result *scenario.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, cfg, result)
}
