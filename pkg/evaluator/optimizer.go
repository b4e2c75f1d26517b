package evaluator

import (
	"fmt"
	"sync"

	"github.com/cognitive-bandwidth/router/pkg/policy"
)

// optimizeMaxWorkers bounds how many grid points Optimize evaluates
// concurrently. Evaluate is pure CPU work over an in-memory record set, so
// this is sized for parallelism rather than for any external resource
// limit.
const optimizeMaxWorkers = 8

// Objective scores a Report for Optimize. The built-in objectives below
// cover spec.md §4.8's named objectives; callers may also supply any
// other scalar function of a Report.
type Objective func(Report) float64

// ObjectiveHumanRate minimizes RouterHumanRate.
func ObjectiveHumanRate(r Report) float64 { return r.RouterHumanRate }

// ObjectivePriorityMean maximizes AveragePriority — Optimize always
// minimizes its objective's return value, so this negates the mean to
// turn "maximize priority" into "minimize -priority".
func ObjectivePriorityMean(r Report) float64 { return -r.AveragePriority }

// GridAxis is one parameter dimension of a Cartesian grid search: a
// name (for labeling candidates) and the ordered set of values to try.
type GridAxis struct {
	Name   string
	Values []float64
}

// Candidate is one point in the grid, plus the Report and score it
// produced.
type Candidate struct {
	Label  string
	Params policy.Params
	Report Report
	Score  float64
}

// Optimize enumerates the Cartesian product of grid's axes in the order
// supplied, building a policy.Params from base overridden by each
// combination, evaluating it, and scoring it with objective. Grid points
// are evaluated concurrently across a worker pool bounded by
// optimizeMaxWorkers — Evaluate is read-only over records, so the only
// shared mutable state is the pre-sized candidates slice, and each worker
// writes only its own index. That keeps the result deterministic
// regardless of which worker finishes first: candidates[i] is always the
// grid point at combinations[i], and ties keep the first-encountered
// candidate by walking the finished slice in grid order afterward.
func Optimize(records []HistoricalRecord, base policy.Params, grid []GridAxis, objective Objective) (Candidate, []Candidate, error) {
	if len(records) == 0 {
		return Candidate{}, nil, fmt.Errorf("optimize: no records supplied")
	}
	if objective == nil {
		objective = ObjectiveHumanRate
	}

	combinations := cartesianProduct(grid)
	candidates := make([]Candidate, len(combinations))
	errs := make([]error, len(combinations))

	sem := make(chan struct{}, optimizeMaxWorkers)
	var wg sync.WaitGroup

	for i, combo := range combinations {
		i, combo := i, combo
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			params := applyOverrides(base, grid, combo)
			p, err := policy.New(params)
			if err != nil {
				errs[i] = fmt.Errorf("optimize: grid point %d produced an invalid policy: %w", i, err)
				return
			}

			label := fmt.Sprintf("policy-%d", i+1)
			report, err := Evaluate(records, p, label)
			if err != nil {
				errs[i] = err
				return
			}

			candidates[i] = Candidate{Label: label, Params: params, Report: report, Score: objective(report)}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return Candidate{}, nil, err
		}
	}

	var best Candidate
	haveBest := false
	for _, candidate := range candidates {
		if !haveBest || candidate.Score < best.Score {
			best = candidate
			haveBest = true
		}
	}

	return best, candidates, nil
}

// cartesianProduct enumerates every combination of grid axis values, in
// caller-supplied axis and value order — combinations[i][j] is the
// value chosen for grid[j] in combination i.
func cartesianProduct(grid []GridAxis) [][]float64 {
	if len(grid) == 0 {
		return [][]float64{{}}
	}

	rest := cartesianProduct(grid[1:])
	combos := make([][]float64, 0, len(grid[0].Values)*len(rest))
	for _, v := range grid[0].Values {
		for _, r := range rest {
			combo := append([]float64{v}, r...)
			combos = append(combos, combo)
		}
	}
	return combos
}

func applyOverrides(base policy.Params, grid []GridAxis, combo []float64) policy.Params {
	p := base
	for i, axis := range grid {
		setParam(&p, axis.Name, combo[i])
	}
	return p
}

// setParam writes value into the named field of p. Unknown names are
// silently ignored rather than erroring, so a grid file that targets a
// future field degrades gracefully instead of failing a whole sweep.
func setParam(p *policy.Params, name string, value float64) {
	switch name {
	case "slo_weight":
		p.SLOWeight = value
	case "uncertainty_weight":
		p.UncertaintyWeight = value
	case "severity_weight":
		p.SeverityWeight = value
	case "attention_weight":
		p.AttentionWeight = value
	case "slo_horizon_minutes":
		p.SLOHorizonMinutes = value
	case "immediate_threshold":
		p.ImmediateThreshold = value
	case "batch_threshold":
		p.BatchThreshold = value
	case "min_confidence_for_auto":
		p.MinConfidenceForAuto = value
	case "max_severity_for_auto":
		p.MaxSeverityForAuto = int(value)
	case "park_load_threshold":
		p.ParkLoadThreshold = value
	case "auto_min_slo_minutes":
		p.AutoMinSLOMinutes = value
	}
}
