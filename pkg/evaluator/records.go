package evaluator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognitive-bandwidth/router/pkg/models"
)

// recordFile is the on-disk shape of one HistoricalRecord, decoded from
// either JSON or YAML — both use the same field names, differing only
// in syntax, so a single struct carrying both json and yaml tags covers
// both.
type recordFile struct {
	ID        string  `json:"id" yaml:"id"`
	Telemetry struct {
		KeystrokeRate     float64 `json:"keystroke_rate" yaml:"keystroke_rate"`
		PagerRate         float64 `json:"pager_rate" yaml:"pager_rate"`
		QueueDepth        float64 `json:"queue_depth" yaml:"queue_depth"`
		CalendarLoadRatio float64 `json:"calendar_load_ratio" yaml:"calendar_load_ratio"`
		SampleCount       int     `json:"sample_count" yaml:"sample_count"`
	} `json:"telemetry" yaml:"telemetry"`
	Context struct {
		QueueDepth        int     `json:"queue_depth" yaml:"queue_depth"`
		CalendarLoad      float64 `json:"calendar_load" yaml:"calendar_load"`
		ContextSwitchRate float64 `json:"context_switch_rate" yaml:"context_switch_rate"`
	} `json:"context" yaml:"context"`
	Task struct {
		TaskID          string  `json:"task_id" yaml:"task_id"`
		Severity        int     `json:"severity" yaml:"severity"`
		SLORiskMinutes  float64 `json:"slo_risk_minutes" yaml:"slo_risk_minutes"`
		ModelConfidence float64 `json:"model_confidence" yaml:"model_confidence"`
		Explanation     string  `json:"explanation" yaml:"explanation"`
		SensitivityTag  string  `json:"sensitivity_tag" yaml:"sensitivity_tag"`
		Source          string     `json:"source" yaml:"source"`
		SubmittedAt     *time.Time `json:"submitted_at" yaml:"submitted_at"`
	} `json:"task" yaml:"task"`
	Baseline struct {
		HumanIntervention bool `json:"human_intervention" yaml:"human_intervention"`
	} `json:"baseline" yaml:"baseline"`
}

// LoadRecords reads a JSON or YAML array of historical records from
// path, dispatching on file extension (.yaml/.yml vs everything else).
// Unknown fields are tolerated per spec.md §6.
func LoadRecords(path string) ([]HistoricalRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records file %q: %w", path, err)
	}

	var files []recordFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &files); err != nil {
			return nil, fmt.Errorf("parse YAML records file %q: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, &files); err != nil {
			return nil, fmt.Errorf("parse JSON records file %q: %w", path, err)
		}
	}

	records := make([]HistoricalRecord, 0, len(files))
	for _, f := range files {
		sensitivity := models.SensitivityTag(f.Task.SensitivityTag)
		if sensitivity == "" {
			sensitivity = models.SensitivityStandard
		}
		submittedAt := time.Now()
		if f.Task.SubmittedAt != nil {
			submittedAt = *f.Task.SubmittedAt
		}

		recordID := f.ID
		if recordID == "" {
			recordID = f.Task.TaskID
		}

		records = append(records, HistoricalRecord{
			RecordID: recordID,
			Telemetry: models.TelemetrySummary{
				KeystrokeRate:     f.Telemetry.KeystrokeRate,
				PagerRate:         f.Telemetry.PagerRate,
				QueueDepth:        f.Telemetry.QueueDepth,
				CalendarLoadRatio: f.Telemetry.CalendarLoadRatio,
				SampleCount:       f.Telemetry.SampleCount,
			},
			Context: models.AttentionContext{
				QueueDepth:        f.Context.QueueDepth,
				CalendarLoad:      f.Context.CalendarLoad,
				ContextSwitchRate: f.Context.ContextSwitchRate,
			},
			Task: models.TaskIntent{
				TaskID:          f.Task.TaskID,
				Severity:        f.Task.Severity,
				SLORiskMinutes:  f.Task.SLORiskMinutes,
				ModelConfidence: f.Task.ModelConfidence,
				Explanation:     f.Task.Explanation,
				SensitivityTag:  sensitivity,
				Source:          f.Task.Source,
				SubmittedAt:     submittedAt,
			},
			BaselineHuman: f.Baseline.HumanIntervention,
		})
	}

	return records, nil
}
