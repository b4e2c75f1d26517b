package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cognitive-bandwidth/router/pkg/evaluator"
	"github.com/cognitive-bandwidth/router/pkg/policy"
)

var (
	optimizeDataPath   string
	optimizePolicyPath string
	optimizeGridPath   string
	optimizeObjective  string
	optimizeOutPath    string
	optimizeMaxRate    float64
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Grid-search policy parameters against historical records",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOptimize()
	},
}

func init() {
	optimizeCmd.Flags().StringVar(&optimizeDataPath, "data", "", "path to a JSON or YAML historical-records file (required)")
	optimizeCmd.Flags().StringVar(&optimizePolicyPath, "policy", "", "base policy YAML file; defaults to policy.Default()")
	optimizeCmd.Flags().StringVar(&optimizeGridPath, "grid", "", "YAML grid file: a list of {name, values} axes (required)")
	optimizeCmd.Flags().StringVar(&optimizeObjective, "objective", "human_rate", "objective: human_rate (minimized) or priority_mean (maximized)")
	optimizeCmd.Flags().StringVar(&optimizeOutPath, "out", "", "write the JSON candidate report here instead of stdout")
	optimizeCmd.Flags().Float64Var(&optimizeMaxRate, "max-router-rate", 1.0, "reject the best candidate if its RouterHumanRate exceeds this")
	optimizeCmd.MarkFlagRequired("data")
	optimizeCmd.MarkFlagRequired("grid")
}

type gridAxisFile struct {
	Name   string    `yaml:"name"`
	Values []float64 `yaml:"values"`
}

// loadGridFile reads a YAML grid file (a list of {name, values} axes)
// directly with yaml.v3: viper's config map is keyed at the root, so it
// cannot represent a top-level list the way a policy file's top-level
// object can.
func loadGridFile(path string) ([]evaluator.GridAxis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grid file: %w", err)
	}

	var files []gridAxisFile
	if err := yaml.Unmarshal(raw, &files); err != nil {
		return nil, fmt.Errorf("unmarshal grid file: %w", err)
	}

	axes := make([]evaluator.GridAxis, 0, len(files))
	for _, f := range files {
		axes = append(axes, evaluator.GridAxis{Name: f.Name, Values: f.Values})
	}
	return axes, nil
}

func objectiveFromFlag(name string) (evaluator.Objective, error) {
	switch name {
	case "human_rate":
		return evaluator.ObjectiveHumanRate, nil
	case "priority_mean":
		return evaluator.ObjectivePriorityMean, nil
	default:
		return nil, fmt.Errorf("unknown objective %q", name)
	}
}

func runOptimize() error {
	records, err := evaluator.LoadRecords(optimizeDataPath)
	if err != nil {
		return inputFileError(fmt.Errorf("load records: %w", err))
	}

	grid, err := loadGridFile(optimizeGridPath)
	if err != nil {
		return inputFileError(fmt.Errorf("load grid: %w", err))
	}

	base := policy.Default()
	if optimizePolicyPath != "" {
		loaded, err := loadPolicyFile(optimizePolicyPath)
		if err != nil {
			return inputFileError(fmt.Errorf("load policy: %w", err))
		}
		base = loaded
	}
	baseParams := policy.Params{
		SLOWeight: base.SLOWeight, UncertaintyWeight: base.UncertaintyWeight,
		SeverityWeight: base.SeverityWeight, AttentionWeight: base.AttentionWeight,
		SLOHorizonMinutes: base.SLOHorizonMinutes, ImmediateThreshold: base.ImmediateThreshold,
		BatchThreshold: base.BatchThreshold, MinConfidenceForAuto: base.MinConfidenceForAuto,
		MaxSeverityForAuto: base.MaxSeverityForAuto, ParkLoadThreshold: base.ParkLoadThreshold,
		AutoMinSLOMinutes: base.AutoMinSLOMinutes,
	}

	objective, err := objectiveFromFlag(optimizeObjective)
	if err != nil {
		return configError(err)
	}

	best, candidates, err := evaluator.Optimize(records, baseParams, grid, objective)
	if err != nil {
		return configError(fmt.Errorf("optimize: %w", err))
	}

	if best.Report.RouterHumanRate > optimizeMaxRate {
		return configError(fmt.Errorf("best candidate %s router human rate %.3f exceeds --max-router-rate %.3f",
			best.Label, best.Report.RouterHumanRate, optimizeMaxRate))
	}

	return writeOptimizeResult(best, candidates)
}

func writeOptimizeResult(best evaluator.Candidate, candidates []evaluator.Candidate) error {
	result := struct {
		Best       evaluator.Candidate   `json:"best"`
		Candidates []evaluator.Candidate `json:"candidates"`
	}{Best: best, Candidates: candidates}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}

	if optimizeOutPath != "" {
		if err := os.WriteFile(optimizeOutPath, payload, 0o644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}

	bold := color.New(color.Bold)
	bold.Printf("best candidate: %s (score %.4f)\n", best.Label, best.Score)
	color.New(color.FgGreen).Printf("router human rate: %.3f, considered %d candidates\n", best.Report.RouterHumanRate, len(candidates))

	if optimizeOutPath == "" {
		fmt.Println(string(payload))
	}
	return nil
}
