package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrNoCandidate is returned when every grid point failed to evaluate.
var ErrNoCandidate = errors.New("no grid point could be evaluated")

// Objective scores one parameter set; lower is better.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

type Result struct {
	Params    map[string]float64
	Value     float64
	Evaluated int
	Failed    int
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, workers: runtime.NumCPU()}
}

// SetWorkers bounds the number of concurrent evaluations.
func (g *GridSearch) SetWorkers(n int) {
	if n > 0 {
		g.workers = n
	}
}

// Points enumerates the cartesian product of the ranges, first
// parameter slowest.
func (g *GridSearch) Points() []map[string]float64 {
	var out []map[string]float64
	g.enumerate(0, make(map[string]float64), &out)
	return out
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		p := make(map[string]float64, len(current))
		for k, v := range current {
			p[k] = v
		}
		*out = append(*out, p)
		return
	}
	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[name] = val
		g.enumerate(depth+1, current, out)
	}
	delete(current, name)
}

// Search evaluates every grid point and returns the lowest score. Points
// whose evaluation fails or scores NaN are skipped; ties go to the
// earlier point.
func (g *GridSearch) Search(ctx context.Context, obj Objective) (Result, error) {
	if len(g.paramNames) != len(g.ranges) {
		return Result{}, fmt.Errorf("grid search: %d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}

	points := g.Points()
	values := make([]float64, len(points))
	errs := make([]error, len(points))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, p := range points {
		i, p := i, p
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			values[i], errs[i] = obj(egCtx, p)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{Value: math.Inf(1)}
	for i, p := range points {
		if errs[i] != nil || math.IsNaN(values[i]) {
			res.Failed++
			continue
		}
		res.Evaluated++
		if values[i] < res.Value {
			res.Value = values[i]
			res.Params = p
		}
	}
	if res.Params == nil {
		return res, fmt.Errorf("%w: %w", ErrNoCandidate, errors.Join(errs...))
	}
	return res, nil
}
