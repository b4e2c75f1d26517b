// Package policy implements the routing policy: a pure, validated
// configuration record and the scoring/strategy-selection function that
// turns a TaskIntent plus attention context into a WorkItem.
package policy

import (
	"time"

	"github.com/cognitive-bandwidth/router/pkg/errs"
	"github.com/cognitive-bandwidth/router/pkg/models"
)

// Policy is the immutable, validated configuration driving routing
// decisions. Build one with New; it is never mutated after
// construction — pkg/router replaces the pointer atomically.
type Policy struct {
	SLOWeight         float64
	UncertaintyWeight float64
	SeverityWeight    float64
	AttentionWeight   float64

	SLOHorizonMinutes    float64
	ImmediateThreshold   float64
	BatchThreshold       float64
	MinConfidenceForAuto float64
	MaxSeverityForAuto   int
	ParkLoadThreshold    float64
	AutoMinSLOMinutes    float64
}

// Default returns the policy defaults named throughout spec.md §8's
// concrete scenarios.
func Default() *Policy {
	p, err := New(Params{
		SLOWeight:            0.4,
		UncertaintyWeight:    0.25,
		SeverityWeight:       0.25,
		AttentionWeight:      0.1,
		SLOHorizonMinutes:    60,
		ImmediateThreshold:   0.75,
		BatchThreshold:       0.45,
		MinConfidenceForAuto: 0.85,
		MaxSeverityForAuto:   2,
		ParkLoadThreshold:    0.7,
		AutoMinSLOMinutes:    15,
	})
	if err != nil {
		// Default() is constructed from constants documented in spec.md
		// §4.4/§8; a failure here is a programmer error, not a runtime
		// condition a caller can recover from.
		panic(err)
	}
	return p
}

// Params is the unvalidated input to New. See spec.md §3 for the
// constraints each field must satisfy.
type Params struct {
	SLOWeight         float64
	UncertaintyWeight float64
	SeverityWeight    float64
	AttentionWeight   float64

	SLOHorizonMinutes    float64
	ImmediateThreshold   float64
	BatchThreshold       float64
	MinConfidenceForAuto float64
	MaxSeverityForAuto   int
	ParkLoadThreshold    float64
	AutoMinSLOMinutes    float64
}

// New validates Params and normalizes the four scoring weights to sum to
// 1, rejecting negative weights and out-of-range thresholds with
// errs.ConfigError.
func New(p Params) (*Policy, error) {
	if p.SLOWeight < 0 || p.UncertaintyWeight < 0 || p.SeverityWeight < 0 || p.AttentionWeight < 0 {
		return nil, errs.New(errs.ConfigError, "policy weights must be non-negative")
	}
	sum := p.SLOWeight + p.UncertaintyWeight + p.SeverityWeight + p.AttentionWeight
	if sum <= 0 {
		return nil, errs.New(errs.ConfigError, "policy weights must sum to a positive value")
	}

	if p.ImmediateThreshold <= 0 || p.ImmediateThreshold >= 1 {
		return nil, errs.New(errs.ConfigError, "immediate_threshold must be in (0,1)")
	}
	if p.BatchThreshold <= 0 || p.BatchThreshold >= 1 {
		return nil, errs.New(errs.ConfigError, "batch_threshold must be in (0,1)")
	}
	if p.ImmediateThreshold <= p.BatchThreshold {
		return nil, errs.New(errs.ConfigError, "immediate_threshold must be greater than batch_threshold")
	}
	if p.MinConfidenceForAuto <= 0 || p.MinConfidenceForAuto > 1 {
		return nil, errs.New(errs.ConfigError, "min_confidence_for_auto must be in (0,1]")
	}
	if p.MaxSeverityForAuto < 1 || p.MaxSeverityForAuto > 5 {
		return nil, errs.New(errs.ConfigError, "max_severity_for_auto must be in {1..5}")
	}
	if p.ParkLoadThreshold <= 0 || p.ParkLoadThreshold >= 1 {
		return nil, errs.New(errs.ConfigError, "park_load_threshold must be in (0,1)")
	}
	if p.SLOHorizonMinutes <= 0 {
		return nil, errs.New(errs.ConfigError, "slo_horizon_minutes must be positive")
	}
	if p.AutoMinSLOMinutes < 0 {
		return nil, errs.New(errs.ConfigError, "auto_min_slo_minutes must be non-negative")
	}

	return &Policy{
		SLOWeight:            p.SLOWeight / sum,
		UncertaintyWeight:    p.UncertaintyWeight / sum,
		SeverityWeight:       p.SeverityWeight / sum,
		AttentionWeight:      p.AttentionWeight / sum,
		SLOHorizonMinutes:    p.SLOHorizonMinutes,
		ImmediateThreshold:   p.ImmediateThreshold,
		BatchThreshold:       p.BatchThreshold,
		MinConfidenceForAuto: p.MinConfidenceForAuto,
		MaxSeverityForAuto:   p.MaxSeverityForAuto,
		ParkLoadThreshold:    p.ParkLoadThreshold,
		AutoMinSLOMinutes:    p.AutoMinSLOMinutes,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Decide scores task against the current attention load and produces the
// full WorkItem, including rationale. It is total and pure given
// well-formed inputs; only errs.InvalidArgument ever escapes.
func (p *Policy) Decide(task models.TaskIntent, queueDepth int, load float64, decidedAt time.Time) (models.WorkItem, error) {
	if err := task.Validate(); err != nil {
		return models.WorkItem{}, err
	}

	sloComponent := clamp01(1 - minF(1, task.SLORiskMinutes/p.SLOHorizonMinutes))
	uncertaintyComponent := clamp01(1 - task.ModelConfidence)
	severityComponent := clamp01(float64(task.Severity) / 5.0)
	attentionComponent := clamp01(1 - load)

	priority := clamp01(
		p.SLOWeight*sloComponent +
			p.UncertaintyWeight*uncertaintyComponent +
			p.SeverityWeight*severityComponent +
			p.AttentionWeight*attentionComponent,
	)

	strategy, rule := p.routeStrategy(task, priority, load)

	rationale := models.Rationale{
		RuleFired: rule,
		Components: []models.RationaleComponent{
			{Name: "slo_risk", Weight: p.SLOWeight, Value: sloComponent, Contribution: p.SLOWeight * sloComponent},
			{Name: "uncertainty", Weight: p.UncertaintyWeight, Value: uncertaintyComponent, Contribution: p.UncertaintyWeight * uncertaintyComponent},
			{Name: "severity", Weight: p.SeverityWeight, Value: severityComponent, Contribution: p.SeverityWeight * severityComponent},
			{Name: "attention", Weight: p.AttentionWeight, Value: attentionComponent, Contribution: p.AttentionWeight * attentionComponent},
		},
	}

	return models.WorkItem{
		Task:          task,
		Strategy:      strategy,
		Priority:      priority,
		AttentionLoad: load,
		QueueDepth:    queueDepth,
		Rationale:     rationale,
		DecidedAt:     decidedAt,
	}, nil
}

// routeStrategy implements the fixed-order decision boundary from
// spec.md §4.4. Boundary ties resolve upward (toward the higher-urgency
// bucket), which the >=/>= comparisons below already express.
func (p *Policy) routeStrategy(task models.TaskIntent, priority, load float64) (models.Strategy, string) {
	if task.ModelConfidence >= p.MinConfidenceForAuto &&
		task.Severity <= p.MaxSeverityForAuto &&
		task.SLORiskMinutes >= p.AutoMinSLOMinutes {
		return models.StrategyAuto, "auto: confident, low severity, no immediate deadline"
	}

	regulated := task.SensitivityTag == models.SensitivityRegulated

	if load >= p.ParkLoadThreshold && priority < p.ImmediateThreshold {
		if regulated {
			return models.StrategyBatch, "batch: regulated task exempt from park under load"
		}
		return models.StrategyPark, "park: operator overloaded, below immediate threshold"
	}

	if priority >= p.ImmediateThreshold {
		return models.StrategyImmediate, "immediate: priority at or above immediate_threshold"
	}

	if priority >= p.BatchThreshold {
		return models.StrategyBatch, "batch: priority at or above batch_threshold"
	}

	if regulated {
		return models.StrategyBatch, "batch: regulated task exempt from park"
	}
	return models.StrategyPark, "park: below every other threshold"
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
