package config

import "sort"

func preset(scenario string, edit func(c *Config)) *Config {
	c := DefaultConfig()
	c.Scenario = scenario
	if edit != nil {
		edit(c)
	}
	return c
}

var Presets = map[string]map[string]*Config{
	"rope": {
		"short": preset("rope", func(c *Config) {
			c.Scene.Count = 8
		}),
		"long": preset("rope", func(c *Config) {
			c.Scene.Count = 64
			c.Duration = 10
			c.Constraints = map[string]ConstraintConfig{"distance": {Iterations: 4}}
		}),
		"elastic": preset("rope", func(c *Config) {
			c.Scene.Count = 24
			c.Scene.Compliance = 1e-4
		}),
	},
	"cloth": {
		"small": preset("cloth", func(c *Config) {
			c.Scene.Count = 8
		}),
		"large": preset("cloth", func(c *Config) {
			c.Scene.Count = 24
			c.Substeps = 8
		}),
		"windy": preset("cloth", func(c *Config) {
			c.Scene.Count = 12
			c.Scene.Wind = [3]float32{3, 0, 1}
			c.Solver.Damping = 0.1
		}),
	},
	"jelly": {
		"cube": preset("jelly", func(c *Config) {
			c.Scene.Count = 4
			c.Scene.Height = 0.5
		}),
		"soft": preset("jelly", func(c *Config) {
			c.Scene.Count = 5
			c.Scene.Compliance = 1e-3
		}),
	},
	"fluid": {
		"dam": preset("fluid", func(c *Config) {
			c.Scene.Count = 8
			c.Substeps = 6
		}),
		"drop": preset("fluid", func(c *Config) {
			c.Scene.Count = 6
			c.Scene.Height = 1.5
		}),
	},
	"pile": {
		"small": preset("pile", func(c *Config) {
			c.Scene.Count = 4
		}),
		"tall": preset("pile", func(c *Config) {
			c.Scene.Count = 6
			c.Scene.Height = 2
			c.Solver.ShockPropagation = 0.5
		}),
		"planar": preset("pile", func(c *Config) {
			c.Scene.Count = 8
			c.Solver.Mode = "2d"
		}),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(scenario, name string) *Config {
	scenarioPresets, ok := Presets[scenario]
	if !ok {
		return nil
	}
	cfg, ok := scenarioPresets[name]
	if !ok {
		return nil
	}
	out := *cfg
	return &out
}

func ListPresets(scenario string) []string {
	scenarioPresets, ok := Presets[scenario]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(scenarioPresets))
	for name := range scenarioPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
