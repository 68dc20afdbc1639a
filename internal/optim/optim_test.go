package optim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/diffbot/internal/config"
	"github.com/san-kum/diffbot/internal/dynamo"
)

func TestGridSearch_Points(t *testing.T) {
	g := NewGridSearch([]string{"a", "b"}, [][]float64{{1, 2}, {10, 20, 30}})
	pts := g.Points()
	if len(pts) != 6 {
		t.Fatalf("got %d points, want 6", len(pts))
	}
	if pts[0]["a"] != 1 || pts[0]["b"] != 10 || pts[5]["a"] != 2 || pts[5]["b"] != 30 {
		t.Errorf("unexpected order: %v", pts)
	}
}

func TestGridSearch_Minimum(t *testing.T) {
	g := NewGridSearch([]string{"x", "y"}, [][]float64{{-1, 0, 1, 2}, {-2, 0, 3}})
	g.SetWorkers(3)

	obj := func(_ context.Context, p map[string]float64) (float64, error) {
		if p["x"] == 2 {
			return 0, errors.New("out of range")
		}
		return math.Pow(p["x"]-1, 2) + math.Pow(p["y"], 2), nil
	}

	res, err := g.Search(context.Background(), obj)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Params["x"] != 1 || res.Params["y"] != 0 || res.Value != 0 {
		t.Errorf("best = %v (%v), want x=1 y=0", res.Params, res.Value)
	}
	if res.Evaluated != 9 || res.Failed != 3 {
		t.Errorf("evaluated %d failed %d, want 9 and 3", res.Evaluated, res.Failed)
	}
}

func TestGridSearch_AllFailed(t *testing.T) {
	g := NewGridSearch([]string{"x"}, [][]float64{{1, 2}})
	_, err := g.Search(context.Background(), func(context.Context, map[string]float64) (float64, error) {
		return math.NaN(), nil
	})
	if !errors.Is(err, ErrNoCandidate) {
		t.Errorf("got %v, want ErrNoCandidate", err)
	}
}

func TestNewTuningSearch_FollowsControllerForm(t *testing.T) {
	grids := Grids{
		Omega0: []float64{5, 10},
		Zeta:   []float64{0.7},
		FTask:  []float64{50, 100},
		S:      []float64{3, 5},
	}

	tests := []struct {
		form   string
		params []string
		points int
	}{
		{config.FormContinuous, []string{ParamOmega0, ParamZeta}, 2},
		{config.FormDiscrete, []string{ParamFTask, ParamS, ParamZeta}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.form, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Controller.Form = tt.form
			g, err := NewTuningSearch(cfg, grids)
			if err != nil {
				t.Fatalf("NewTuningSearch: %v", err)
			}
			pts := g.Points()
			if len(pts) != tt.points {
				t.Fatalf("got %d points, want %d", len(pts), tt.points)
			}
			for _, p := range pts {
				if len(p) != len(tt.params) {
					t.Fatalf("point %v, want parameters %v", p, tt.params)
				}
				for _, name := range tt.params {
					if _, ok := p[name]; !ok {
						t.Fatalf("point %v lacks %s", p, name)
					}
				}
			}
		})
	}
}

func TestNewTuningSearch_MissingCandidates(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Controller.Form = config.FormDiscrete
	_, err := NewTuningSearch(cfg, Grids{Omega0: []float64{10}, Zeta: []float64{0.7}, FTask: []float64{100}})
	if !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("got %v, want ErrInvalidConfig", err)
	}
}

func TestApply(t *testing.T) {
	base := config.DefaultConfig()
	cfg, err := Apply(base, map[string]float64{ParamOmega0: 20, ParamZeta: 1})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.Controller.Omega0 != 20 || cfg.Controller.Zeta != 1 {
		t.Errorf("parameters not applied: %+v", cfg.Controller)
	}
	if base.Controller.Omega0 != config.DefaultOmega0 {
		t.Error("Apply modified the base config")
	}

	if _, err := Apply(base, map[string]float64{"kp": 1}); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("unknown parameter: got %v", err)
	}
	if _, err := Apply(base, map[string]float64{ParamOmega0: -1}); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("negative omega0: got %v", err)
	}
}

func shortRun() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Duration = 2
	cfg.Supervisor.SystemOnWait = 0.1
	cfg.Supervisor.PowerOnWait = 0.1
	cfg.Supervisor.MovingWait = 1.5
	return cfg
}

func TestTrackingObjective_PrefersStifferLoop(t *testing.T) {
	g := NewGridSearch([]string{ParamOmega0}, [][]float64{{3, 15}})
	res, err := g.Search(context.Background(), TrackingObjective(shortRun()))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Params[ParamOmega0] != 15 {
		t.Errorf("best omega0 = %v, want 15", res.Params[ParamOmega0])
	}
	if res.Value <= 0 || res.Value > 0.5 {
		t.Errorf("tracking error = %v", res.Value)
	}
}

func TestTrackingObjective_NeverMoving(t *testing.T) {
	cfg := shortRun()
	cfg.Supervisor.PowerOnWait = 10
	_, err := TrackingObjective(cfg)(context.Background(), nil)
	if err == nil {
		t.Error("expected an error when the robot never moves")
	}
}
