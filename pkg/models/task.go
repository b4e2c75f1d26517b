// Package models defines the wire- and memory-level data types shared by
// every component of the router: tasks, telemetry, context, and the
// routing decisions produced from them.
package models

import (
	"time"

	"github.com/cognitive-bandwidth/router/pkg/errs"
)

// SensitivityTag classifies how a task's payload should be handled.
type SensitivityTag string

const (
	SensitivityStandard     SensitivityTag = "standard"
	SensitivityConfidential SensitivityTag = "confidential"
	SensitivityRegulated    SensitivityTag = "regulated"
)

// Strategy is the router's decision for a task.
type Strategy string

const (
	StrategyImmediate Strategy = "immediate"
	StrategyBatch     Strategy = "batch"
	StrategyAuto      Strategy = "auto"
	StrategyPark      Strategy = "park"

	// StrategyWildcard is a sink-registration key, never a decision.
	StrategyWildcard Strategy = "*"
)

// TaskIntent is an agent/alerting request for human time. It is immutable
// once constructed; task_id is expected to be unique within a routing
// session.
type TaskIntent struct {
	TaskID          string         `json:"task_id"`
	Severity        int            `json:"severity"`
	SLORiskMinutes  float64        `json:"slo_risk_minutes"`
	ModelConfidence float64        `json:"model_confidence"`
	Explanation     string         `json:"explanation"`
	SensitivityTag  SensitivityTag `json:"sensitivity_tag"`
	Source          string         `json:"source"`
	SubmittedAt     time.Time      `json:"submitted_at"`
}

// Validate checks the documented constraints on TaskIntent fields. It does
// not mutate the receiver: TaskIntent is immutable after creation.
func (t TaskIntent) Validate() error {
	switch {
	case t.TaskID == "":
		return errs.New(errs.InvalidArgument, "task_id must not be empty")
	case t.Severity < 1 || t.Severity > 5:
		return errs.New(errs.InvalidArgument, "severity must be in {1..5}")
	case t.SLORiskMinutes < 0:
		return errs.New(errs.InvalidArgument, "slo_risk_minutes must be non-negative")
	case t.ModelConfidence < 0 || t.ModelConfidence > 1:
		return errs.New(errs.InvalidArgument, "model_confidence must be in [0,1]")
	case t.SensitivityTag != SensitivityStandard && t.SensitivityTag != SensitivityConfidential && t.SensitivityTag != SensitivityRegulated:
		return errs.New(errs.InvalidArgument, "sensitivity_tag must be one of standard|confidential|regulated")
	}
	return nil
}
