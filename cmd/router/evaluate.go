package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cognitive-bandwidth/router/pkg/evaluator"
	"github.com/cognitive-bandwidth/router/pkg/models"
	"github.com/cognitive-bandwidth/router/pkg/policy"
)

var (
	evaluateDataPath   string
	evaluatePolicyPath string
	evaluateOutPath    string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Replay historical records against a policy and report human-intervention reduction",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEvaluate()
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateDataPath, "data", "", "path to a JSON or YAML historical-records file (required)")
	evaluateCmd.Flags().StringVar(&evaluatePolicyPath, "policy", "", "path to a YAML policy file; defaults to policy.Default()")
	evaluateCmd.Flags().StringVar(&evaluateOutPath, "out", "", "write the JSON report here instead of stdout")
	evaluateCmd.MarkFlagRequired("data")
}

func runEvaluate() error {
	records, err := evaluator.LoadRecords(evaluateDataPath)
	if err != nil {
		return inputFileError(fmt.Errorf("load records: %w", err))
	}

	activePolicy := policy.Default()
	label := "default"
	if evaluatePolicyPath != "" {
		loaded, err := loadPolicyFile(evaluatePolicyPath)
		if err != nil {
			return inputFileError(fmt.Errorf("load policy: %w", err))
		}
		activePolicy = loaded
		label = evaluatePolicyPath
	}

	report, err := evaluator.Evaluate(records, activePolicy, label)
	if err != nil {
		return configError(fmt.Errorf("evaluate: %w", err))
	}

	return writeReport(report)
}

func writeReport(report evaluator.Report) error {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	if evaluateOutPath != "" {
		if err := os.WriteFile(evaluateOutPath, payload, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	printReportSummary(report)

	if evaluateOutPath == "" {
		fmt.Println(string(payload))
	}
	return nil
}

func printReportSummary(report evaluator.Report) {
	bold := color.New(color.Bold)
	bold.Printf("policy %q — %d tasks\n", report.PolicyLabel, report.TotalTasks)

	for _, strategy := range []models.Strategy{models.StrategyImmediate, models.StrategyBatch, models.StrategyAuto, models.StrategyPark} {
		fmt.Printf("  %-10s %d\n", strategy, report.StrategyCounts[strategy])
	}

	reductionColor := color.New(color.FgGreen)
	if report.HumanInterventionReduction < 0 {
		reductionColor = color.New(color.FgRed)
	}
	reductionColor.Printf("human intervention reduction: %.1f%%\n", report.HumanInterventionReduction*100)
	fmt.Printf("baseline human rate: %.3f, router human rate: %.3f\n", report.BaselineHumanRate, report.RouterHumanRate)
}
