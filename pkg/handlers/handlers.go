// Package handlers implements the HTTP handler functions mounted by
// pkg/server: policy inspection/replacement, telemetry snapshot, queue
// depth, task submission, and liveness, following the same mux.Vars /
// json.Decode / http.Error idiom as the teacher's AgentMessage and
// CustomerResponse handlers.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cognitive-bandwidth/router/pkg/errs"
	"github.com/cognitive-bandwidth/router/pkg/models"
	"github.com/cognitive-bandwidth/router/pkg/policy"
	"github.com/cognitive-bandwidth/router/pkg/telemetry"
	"github.com/cognitive-bandwidth/router/pkg/workflow"
)

// TaskRouter is satisfied by *router.Service. Kept narrow and defined
// here, rather than importing pkg/router, so pkg/handlers only depends
// on the collaborators it actually calls.
type TaskRouter interface {
	HandleTask(ctx context.Context, task models.TaskIntent) (models.WorkItem, error)
	Policy() *policy.Policy
	UpdatePolicy(p *policy.Policy)
	Collector() *telemetry.Collector
}

// Handler bundles the router service, workflow orchestrator, and logger
// that back every HTTP route, mirroring the teacher's Handler struct
// shape (timeoutManager, logger, isLeaderFunc).
type Handler struct {
	service      TaskRouter
	orchestrator workflow.Orchestrator
	logger       *logrus.Logger
}

// NewHandler constructs a Handler. orchestrator may be nil if the
// router's sinks are wired elsewhere; /queue and /health then report
// zero depth.
func NewHandler(service TaskRouter, orchestrator workflow.Orchestrator, logger *logrus.Logger) *Handler {
	return &Handler{service: service, orchestrator: orchestrator, logger: logger}
}

type policyBody struct {
	SLOWeight            float64 `json:"slo_weight"`
	UncertaintyWeight    float64 `json:"uncertainty_weight"`
	SeverityWeight       float64 `json:"severity_weight"`
	AttentionWeight      float64 `json:"attention_weight"`
	SLOHorizonMinutes    float64 `json:"slo_horizon_minutes"`
	ImmediateThreshold   float64 `json:"immediate_threshold"`
	BatchThreshold       float64 `json:"batch_threshold"`
	MinConfidenceForAuto float64 `json:"min_confidence_for_auto"`
	MaxSeverityForAuto   int     `json:"max_severity_for_auto"`
	ParkLoadThreshold    float64 `json:"park_load_threshold"`
	AutoMinSLOMinutes    float64 `json:"auto_min_slo_minutes"`
}

func toPolicyBody(p *policy.Policy) policyBody {
	return policyBody{
		SLOWeight: p.SLOWeight, UncertaintyWeight: p.UncertaintyWeight,
		SeverityWeight: p.SeverityWeight, AttentionWeight: p.AttentionWeight,
		SLOHorizonMinutes: p.SLOHorizonMinutes, ImmediateThreshold: p.ImmediateThreshold,
		BatchThreshold: p.BatchThreshold, MinConfidenceForAuto: p.MinConfidenceForAuto,
		MaxSeverityForAuto: p.MaxSeverityForAuto, ParkLoadThreshold: p.ParkLoadThreshold,
		AutoMinSLOMinutes: p.AutoMinSLOMinutes,
	}
}

func (b policyBody) toParams() policy.Params {
	return policy.Params{
		SLOWeight: b.SLOWeight, UncertaintyWeight: b.UncertaintyWeight,
		SeverityWeight: b.SeverityWeight, AttentionWeight: b.AttentionWeight,
		SLOHorizonMinutes: b.SLOHorizonMinutes, ImmediateThreshold: b.ImmediateThreshold,
		BatchThreshold: b.BatchThreshold, MinConfidenceForAuto: b.MinConfidenceForAuto,
		MaxSeverityForAuto: b.MaxSeverityForAuto, ParkLoadThreshold: b.ParkLoadThreshold,
		AutoMinSLOMinutes: b.AutoMinSLOMinutes,
	}
}

// GetPolicy returns the router's current policy as JSON.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toPolicyBody(h.service.Policy()))
}

// PutPolicy atomically replaces the router's policy. A rejected policy
// (failed validation) responds 400 with an errs-shaped body; the old
// policy remains in effect.
func (h *Handler) PutPolicy(w http.ResponseWriter, r *http.Request) {
	var body policyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.Wrap(errs.InvalidArgument, "malformed policy body", err))
		return
	}

	p, err := policy.New(body.toParams())
	if err != nil {
		writeError(w, err)
		return
	}

	h.service.UpdatePolicy(p)
	h.logger.WithFields(logrus.Fields{"immediate_threshold": p.ImmediateThreshold}).Info("policy replaced via HTTP")
	writeJSON(w, http.StatusOK, toPolicyBody(p))
}

// GetTelemetry returns the latest TelemetrySummary.
func (h *Handler) GetTelemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Collector().Summary(time.Now()))
}

// GetQueue reports queue depth for the strategy named by ?strategy=, or
// the combined immediate+batch depth if the query parameter is absent.
// immediate/batch responses also include the queued WorkItems, since
// those two strategies are genuinely queued rather than ledgered.
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("strategy")

	var strategyPtr *models.Strategy
	if raw != "" {
		s := models.Strategy(raw)
		strategyPtr = &s
	}

	depth := 0
	if h.orchestrator != nil {
		depth = h.orchestrator.Depth(strategyPtr)
	}

	resp := struct {
		Strategy string            `json:"strategy,omitempty"`
		Depth    int               `json:"depth"`
		Items    []models.WorkItem `json:"items,omitempty"`
	}{Strategy: raw, Depth: depth}

	if snap, ok := h.orchestrator.(interface{ Snapshot(models.Strategy) []models.WorkItem }); ok && strategyPtr != nil {
		if *strategyPtr == models.StrategyImmediate || *strategyPtr == models.StrategyBatch {
			resp.Items = snap.Snapshot(*strategyPtr)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// PostTask submits a TaskIntent and returns the resulting WorkItem.
func (h *Handler) PostTask(w http.ResponseWriter, r *http.Request) {
	var task models.TaskIntent
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, errs.Wrap(errs.InvalidArgument, "malformed task body", err))
		return
	}
	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = time.Now()
	}

	item, err := h.service.HandleTask(r.Context(), task)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":  item.Task.TaskID,
		"strategy": item.Strategy,
	}).Debug("task routed via HTTP")
	writeJSON(w, http.StatusOK, item)
}

// Health reports liveness plus the combined queue depth, mirroring the
// teacher's /health shape with the leader flag replaced by "ready".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	depth := 0
	if h.orchestrator != nil {
		depth = h.orchestrator.Depth(nil)
	}
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		Ready  bool   `json:"ready"`
		Depth  int    `json:"queue_depth"`
	}{Status: "ok", Ready: true, Depth: depth})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an error to an HTTP status and {"kind","message"} body
// per spec.md §6: InvalidArgument/ConfigError to 400, everything else
// (including errors not of type *errs.Error) to 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal"
	message := err.Error()

	var e *errs.Error
	if errors.As(err, &e) {
		kind = string(e.Kind)
		message = e.Message
		if e.Kind == errs.InvalidArgument || e.Kind == errs.ConfigError {
			status = http.StatusBadRequest
		}
	}

	writeJSON(w, status, struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}{Kind: kind, Message: message})
}
