package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/diffbot/internal/config"
	"github.com/san-kum/diffbot/internal/dynamo"
	"github.com/san-kum/diffbot/internal/hal"
	"github.com/san-kum/diffbot/internal/plant"
	"github.com/san-kum/diffbot/internal/robot"
)

// Tunable controller parameters.
const (
	ParamOmega0 = "omega0"
	ParamZeta   = "zeta"
	ParamMass   = "mass"
	ParamFTask  = "f_task"
	ParamS      = "s"
)

// Apply returns a copy of base with the controller parameters replaced.
func Apply(base *config.Config, params map[string]float64) (*config.Config, error) {
	cfg := *base
	for name, v := range params {
		switch name {
		case ParamOmega0:
			cfg.Controller.Omega0 = v
		case ParamZeta:
			cfg.Controller.Zeta = v
		case ParamMass:
			cfg.Controller.Mass = v
		case ParamFTask:
			cfg.Controller.FTask = v
		case ParamS:
			cfg.Controller.S = v
		default:
			return nil, fmt.Errorf("%w: unknown controller parameter %q", dynamo.ErrInvalidConfig, name)
		}
	}
	return &cfg, cfg.Validate()
}

// Grids holds the candidate values of each tunable gain.
type Grids struct {
	Omega0 []float64
	Zeta   []float64
	FTask  []float64
	S      []float64
}

// NewTuningSearch builds a grid over the gains read by the configured
// controller form: omega0 and zeta for the continuous form, f_task, s
// and zeta for the discrete one.
func NewTuningSearch(cfg *config.Config, grids Grids) (*GridSearch, error) {
	var (
		names  []string
		ranges [][]float64
	)
	add := func(name string, values []float64) error {
		if len(values) == 0 {
			return fmt.Errorf("%w: no candidates for %s with the %s controller", dynamo.ErrInvalidConfig, name, cfg.Controller.Form)
		}
		names = append(names, name)
		ranges = append(ranges, values)
		return nil
	}

	var errs []error
	switch cfg.Controller.Form {
	case config.FormContinuous:
		errs = append(errs, add(ParamOmega0, grids.Omega0))
	case config.FormDiscrete:
		errs = append(errs, add(ParamFTask, grids.FTask), add(ParamS, grids.S))
	default:
		return nil, fmt.Errorf("%w: controller.form = %s", dynamo.ErrInvalidConfig, cfg.Controller.Form)
	}
	errs = append(errs, add(ParamZeta, grids.Zeta))
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return NewGridSearch(names, ranges), nil
}

// TrackingObjective powers up a robot on the simulated plant for the
// configured duration and scores the RMS wheel position error while the
// robot is in SystemMoving.
func TrackingObjective(base *config.Config) Objective {
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg, err := Apply(base, params)
		if err != nil {
			return 0, err
		}
		sim, err := plant.NewSim(plant.NewWheels(cfg.Plant.Inertia, cfg.Plant.Friction), cfg.Integrator, cfg.Dt)
		if err != nil {
			return 0, err
		}
		io := hal.NewSim(
			[]string{cfg.HAL.ButtonPause, cfg.HAL.ButtonMode},
			[]string{cfg.HAL.LEDGreen, cfg.HAL.LEDRed},
		)

		var (
			r   *robot.Robot
			sum float64
			n   int
		)
		r, err = robot.New(cfg, robot.Options{
			HAL:   io,
			Plant: sim,
			OnTick: func(s robot.Sample) {
				if s.Level != r.Levels().SystemMoving {
					return
				}
				e := s.Reference.Sub(s.Measured)
				sum += e[0]*e[0] + e[1]*e[1]
				n += 2
			},
		})
		if err != nil {
			return 0, err
		}
		r.PowerUp()
		if _, err := r.RunSteps(ctx, cfg.Ticks()); err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, fmt.Errorf("robot never reached %s within %.1fs", r.Levels().SystemMoving.ID(), cfg.Duration)
		}
		return math.Sqrt(sum / float64(n)), nil
	}
}
