package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/diffbot/internal/dynamo"
)

const (
	DefaultDt            = 0.01
	DefaultDuration      = 20.0
	DefaultOmega0        = 10.0
	DefaultZeta          = 0.7
	DefaultMass          = 0.05
	DefaultFTask         = 100.0
	DefaultS             = 5.0
	DefaultTrackWidth    = 0.3
	DefaultWheelRadius   = 0.05
	DefaultSystemOnWait  = 1.0
	DefaultPowerOnWait   = 5.0
	DefaultMovingWait    = 5.0
	DefaultHaltThreshold = 0.01
	DefaultInertia       = 0.05
	DefaultFriction      = 0.01
	DefaultWheelSpeed    = 2.0
)

// Controller forms.
const (
	FormContinuous = "continuous"
	FormDiscrete   = "discrete"
)

// Script actions.
const (
	ActionPress   = "press"
	ActionRelease = "release"
	ActionEvent   = "event"
)

type Config struct {
	Dt         float64          `yaml:"dt"`
	Duration   float64          `yaml:"duration"`
	Integrator string           `yaml:"integrator"`
	Controller ControllerConfig `yaml:"controller"`
	Odometry   OdometryConfig   `yaml:"odometry"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	HAL        HALConfig        `yaml:"hal"`
	Plant      PlantConfig      `yaml:"plant"`
	Motion     MotionConfig     `yaml:"motion"`
	Script     []ScriptStep     `yaml:"script,omitempty"`
}

// ControllerConfig selects the continuous (omega0, zeta, mass) or the
// discrete (f_task, zeta, s, mass) parametrisation.
type ControllerConfig struct {
	Form   string  `yaml:"form"`
	Omega0 float64 `yaml:"omega0"`
	Zeta   float64 `yaml:"zeta"`
	Mass   float64 `yaml:"mass"`
	FTask  float64 `yaml:"f_task"`
	S      float64 `yaml:"s"`
}

type OdometryConfig struct {
	TrackWidth  float64 `yaml:"track_width"`
	WheelRadius float64 `yaml:"wheel_radius"`
	// Jacobian overrides the matrix derived from track width and radius.
	Jacobian *[3][2]float64 `yaml:"jacobian,omitempty"`
	InitPose PoseConfig     `yaml:"init_pose"`
}

type PoseConfig struct {
	X   float64 `yaml:"x"`
	Y   float64 `yaml:"y"`
	Phi float64 `yaml:"phi"`
}

// SupervisorConfig holds residency times in seconds and the wheel speed
// below which the motors count as halted.
type SupervisorConfig struct {
	SystemOnWait  float64 `yaml:"system_on_wait"`
	PowerOnWait   float64 `yaml:"power_on_wait"`
	MovingWait    float64 `yaml:"moving_wait"`
	HaltThreshold float64 `yaml:"halt_threshold"`
}

// HALConfig maps the supervisor's critical I/O to logical HAL names.
type HALConfig struct {
	ButtonPause string `yaml:"button_pause"`
	ButtonMode  string `yaml:"button_mode"`
	LEDGreen    string `yaml:"led_green"`
	LEDRed      string `yaml:"led_red"`
}

type PlantConfig struct {
	Inertia  float64 `yaml:"inertia"`
	Friction float64 `yaml:"friction"`
}

// MotionConfig sets the wheel speeds, in rad/s, commanded while moving.
type MotionConfig struct {
	LeftSpeed  float64 `yaml:"left_speed"`
	RightSpeed float64 `yaml:"right_speed"`
}

// ScriptStep edits a HAL input or fires an event at a given time.
type ScriptStep struct {
	At     float64 `yaml:"at"`
	Action string  `yaml:"action"`
	Input  string  `yaml:"input,omitempty"`
	Event  string  `yaml:"event,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Integrator: "rk4",
		Controller: ControllerConfig{
			Form:   FormContinuous,
			Omega0: DefaultOmega0,
			Zeta:   DefaultZeta,
			Mass:   DefaultMass,
			FTask:  DefaultFTask,
			S:      DefaultS,
		},
		Odometry: OdometryConfig{
			TrackWidth:  DefaultTrackWidth,
			WheelRadius: DefaultWheelRadius,
		},
		Supervisor: SupervisorConfig{
			SystemOnWait:  DefaultSystemOnWait,
			PowerOnWait:   DefaultPowerOnWait,
			MovingWait:    DefaultMovingWait,
			HaltThreshold: DefaultHaltThreshold,
		},
		HAL: HALConfig{
			ButtonPause: "onBoardButtonPause",
			ButtonMode:  "onBoardButtonMode",
			LEDGreen:    "onBoardLEDGreen",
			LEDRed:      "onBoardLEDRed",
		},
		Plant: PlantConfig{
			Inertia:  DefaultInertia,
			Friction: DefaultFriction,
		},
		Motion: MotionConfig{
			LeftSpeed:  DefaultWheelSpeed,
			RightSpeed: DefaultWheelSpeed,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every out-of-range value; each error wraps
// dynamo.ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field string, v any) {
		errs = append(errs, fmt.Errorf("%w: %s = %v", dynamo.ErrInvalidConfig, field, v))
	}

	if c.Dt <= 0 {
		bad("dt", c.Dt)
	}
	if c.Duration < 0 {
		bad("duration", c.Duration)
	}
	if c.Integrator == "" {
		bad("integrator", `""`)
	}

	ctl := c.Controller
	switch ctl.Form {
	case FormContinuous:
		if ctl.Omega0 <= 0 {
			bad("controller.omega0", ctl.Omega0)
		}
	case FormDiscrete:
		if ctl.FTask <= 0 {
			bad("controller.f_task", ctl.FTask)
		}
		if ctl.S <= 0 {
			bad("controller.s", ctl.S)
		}
	default:
		bad("controller.form", ctl.Form)
	}
	if ctl.Zeta <= 0 {
		bad("controller.zeta", ctl.Zeta)
	}
	if ctl.Mass <= 0 {
		bad("controller.mass", ctl.Mass)
	}

	if c.Odometry.Jacobian == nil {
		if c.Odometry.TrackWidth <= 0 {
			bad("odometry.track_width", c.Odometry.TrackWidth)
		}
		if c.Odometry.WheelRadius <= 0 {
			bad("odometry.wheel_radius", c.Odometry.WheelRadius)
		}
	}

	sup := c.Supervisor
	for _, w := range []struct {
		field string
		v     float64
	}{
		{"supervisor.system_on_wait", sup.SystemOnWait},
		{"supervisor.power_on_wait", sup.PowerOnWait},
		{"supervisor.moving_wait", sup.MovingWait},
	} {
		if w.v < 0 {
			bad(w.field, w.v)
		}
	}
	if sup.HaltThreshold <= 0 {
		bad("supervisor.halt_threshold", sup.HaltThreshold)
	}

	for _, n := range []struct {
		field, name string
	}{
		{"hal.button_pause", c.HAL.ButtonPause},
		{"hal.button_mode", c.HAL.ButtonMode},
		{"hal.led_green", c.HAL.LEDGreen},
		{"hal.led_red", c.HAL.LEDRed},
	} {
		if n.name == "" {
			bad(n.field, `""`)
		}
	}

	if c.Plant.Inertia <= 0 {
		bad("plant.inertia", c.Plant.Inertia)
	}
	if c.Plant.Friction < 0 {
		bad("plant.friction", c.Plant.Friction)
	}

	for i, s := range c.Script {
		field := fmt.Sprintf("script[%d]", i)
		switch {
		case s.At < 0:
			bad(field+".at", s.At)
		case (s.Action == ActionPress || s.Action == ActionRelease) && s.Input == "":
			bad(field+".input", `""`)
		case s.Action == ActionEvent && s.Event == "":
			bad(field+".event", `""`)
		case s.Action != ActionPress && s.Action != ActionRelease && s.Action != ActionEvent:
			bad(field+".action", s.Action)
		}
	}

	return errors.Join(errs...)
}

// Ticks is the number of periods covered by Duration.
func (c *Config) Ticks() int {
	return int(c.Duration/c.Dt + 0.5)
}
