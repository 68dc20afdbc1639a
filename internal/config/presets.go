package config

import "sort"

// Presets are named starting points for the run command. Each builds on
// DefaultConfig.
var Presets = map[string]func() *Config{
	"default": DefaultConfig,
	"discrete": func() *Config {
		cfg := DefaultConfig()
		cfg.Controller.Form = FormDiscrete
		return cfg
	},
	"emergency": func() *Config {
		cfg := DefaultConfig()
		cfg.Duration = 16
		cfg.Script = []ScriptStep{
			{At: 8, Action: ActionPress, Input: cfg.HAL.ButtonPause},
			{At: 8.5, Action: ActionRelease, Input: cfg.HAL.ButtonPause},
			{At: 11, Action: ActionPress, Input: cfg.HAL.ButtonMode},
			{At: 11.5, Action: ActionRelease, Input: cfg.HAL.ButtonMode},
		}
		return cfg
	},
	"lab": func() *Config {
		cfg := DefaultConfig()
		cfg.Duration = 30
		cfg.Integrator = "euler"
		cfg.Supervisor.PowerOnWait = 2
		cfg.Supervisor.MovingWait = 10
		cfg.Motion = MotionConfig{LeftSpeed: 1.5, RightSpeed: 2.5}
		cfg.Script = []ScriptStep{
			{At: 25, Action: ActionEvent, Event: "abort"},
		}
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
