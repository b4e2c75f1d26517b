// Package evaluator implements the Offline Evaluator & Optimizer: pure
// functions that replay historical records through a policy and report
// aggregate routing outcomes, plus a deterministic grid search over
// policy weights. Evaluate, Sweep and Optimize perform no I/O; file
// loading lives in records.go.
package evaluator

import (
	"fmt"

	"github.com/cognitive-bandwidth/router/pkg/attention"
	"github.com/cognitive-bandwidth/router/pkg/models"
	"github.com/cognitive-bandwidth/router/pkg/policy"
)

// HistoricalRecord bundles one past routing decision's inputs plus
// whether a human actually intervened (the baseline to compare the
// policy against).
type HistoricalRecord struct {
	RecordID      string
	Telemetry     models.TelemetrySummary
	Context       models.AttentionContext
	Task          models.TaskIntent
	BaselineHuman bool
}

// Report is the aggregate outcome of replaying a set of records through
// one policy.
type Report struct {
	PolicyLabel                string
	TotalTasks                 int
	StrategyCounts             map[models.Strategy]int
	AveragePriority            float64
	AverageAttentionLoad       float64
	BaselineHumanRate          float64
	RouterHumanRate            float64
	HumanInterventionReduction float64
}

// Evaluate replays every record through p and aggregates the resulting
// WorkItems into a Report. It is pure: identical records and p always
// produce an identical Report. Evaluate returns an error only if
// records is empty or a record's task fails Decide's validation.
func Evaluate(records []HistoricalRecord, p *policy.Policy, label string) (Report, error) {
	if len(records) == 0 {
		return Report{}, fmt.Errorf("evaluate: no records supplied")
	}

	report := Report{
		PolicyLabel:    label,
		StrategyCounts: make(map[models.Strategy]int),
	}

	var prioritySum, loadSum float64
	var baselineHumans, routerHumans int

	for _, record := range records {
		depth := record.Context.QueueDepth
		load := attentionLoadFor(record)

		item, err := p.Decide(record.Task, depth, load, record.Task.SubmittedAt)
		if err != nil {
			return Report{}, fmt.Errorf("evaluate record %q: %w", record.RecordID, err)
		}

		report.StrategyCounts[item.Strategy]++
		prioritySum += item.Priority
		loadSum += item.AttentionLoad

		if record.BaselineHuman {
			baselineHumans++
		}
		if item.Strategy == models.StrategyImmediate || item.Strategy == models.StrategyBatch {
			routerHumans++
		}
	}

	n := float64(len(records))
	report.TotalTasks = len(records)
	report.AveragePriority = prioritySum / n
	report.AverageAttentionLoad = loadSum / n
	report.BaselineHumanRate = float64(baselineHumans) / n
	report.RouterHumanRate = float64(routerHumans) / n
	report.HumanInterventionReduction = humanInterventionReduction(report.BaselineHumanRate, report.RouterHumanRate)

	return report, nil
}

var defaultAttentionModel = attention.NewDefault()

// attentionLoadFor scores a record's own (TelemetrySummary,
// AttentionContext) pair through the same default attention.Model the
// live router uses, since a HistoricalRecord carries a pre-computed
// summary rather than raw samples to feed a telemetry.Collector.
func attentionLoadFor(record HistoricalRecord) float64 {
	return defaultAttentionModel.Score(record.Telemetry, record.Context)
}

func humanInterventionReduction(baselineRate, routerRate float64) float64 {
	if baselineRate == 0 {
		return 0
	}
	return (baselineRate - routerRate) / baselineRate
}

// Sweep evaluates records against every labeled policy in order,
// returning one Report per policy in the same order.
func Sweep(records []HistoricalRecord, labeled []LabeledPolicy) ([]Report, error) {
	reports := make([]Report, 0, len(labeled))
	for _, lp := range labeled {
		report, err := Evaluate(records, lp.Policy, lp.Label)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// LabeledPolicy names a policy for Sweep/Optimize reporting.
type LabeledPolicy struct {
	Label  string
	Policy *policy.Policy
}
