package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rivalscan/rivalscan/config"
	core "github.com/rivalscan/rivalscan/internal/agent/core"
	"github.com/rivalscan/rivalscan/internal/agent/telemetry"
	"github.com/rivalscan/rivalscan/internal/reports"
)

func researchCMD(cfgPath *string) *cobra.Command {
	var depth string
	var focus []string
	var exclude []string
	var maxResults int
	var noSave bool

	cmd := &cobra.Command{
		Use:   "research [query]",
		Short: "Run a competitive research workflow",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			tele := telemetry.NewTelemetry(cfg.Telemetry)
			orch, err := core.NewOrchestrator(cmd.Context(), cfg, tele)
			if err != nil {
				return err
			}

			query := core.ResearchQuery{
				Query:              strings.Join(args, " "),
				Depth:              core.ResearchDepth(depth),
				FocusAreas:         focus,
				ExcludeCompetitors: exclude,
				MaxResults:         maxResults,
			}
			outcome := orch.ExecuteResearch(cmd.Context(), query)
			printOutcome(cmd, outcome)

			if outcome.Success && !noSave {
				writer := reports.Writer{Dir: cfg.Output.ReportsDir, SaveRawData: cfg.Output.SaveRawData}
				path, err := writer.Write(outcome)
				if err != nil {
					return fmt.Errorf("saving report: %w", err)
				}
				cmd.Printf("Report saved to %s\n", path)
			}
			if !outcome.Success {
				return fmt.Errorf("research failed at %s: %s", outcome.FailedStep, outcome.ErrorMessage)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&depth, "depth", "standard", "research depth (basic, standard, comprehensive)")
	cmd.Flags().StringSliceVar(&focus, "focus", nil, "focus areas to prioritize")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "competitor names to exclude")
	cmd.Flags().IntVar(&maxResults, "max-results", 10, "maximum competitors to report")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "print the report without writing files")
	return cmd
}

func printOutcome(cmd *cobra.Command, outcome core.ResearchOutcome) {
	if !outcome.Success {
		cmd.Printf("Workflow %s failed (%s): %s\n", outcome.WorkflowID, outcome.ErrorType, outcome.ErrorMessage)
		if len(outcome.PartialResults) > 0 {
			steps := make([]string, 0, len(outcome.PartialResults))
			for name := range outcome.PartialResults {
				steps = append(steps, name)
			}
			cmd.Printf("Completed stages with partial results: %s\n", strings.Join(steps, ", "))
		}
		return
	}
	m := outcome.Metrics
	cmd.Printf("Workflow %s completed in %.1fs\n", outcome.WorkflowID, m.DurationSeconds)
	cmd.Printf("  competitors found:  %d\n", m.CompetitorsFound)
	cmd.Printf("  searches performed: %d\n", m.SearchesPerformed)
	cmd.Printf("  data quality score: %.2f\n", m.DataQualityScore)
	cmd.Printf("  estimated cost:     $%.4f (%d tokens)\n", m.EstimatedCostUSD, m.TotalTokens)
}

func runValidation(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	tele := telemetry.NewTelemetry(cfg.Telemetry)
	orch, err := core.NewOrchestrator(ctx, cfg, tele)
	if err != nil {
		return err
	}
	report := orch.ValidateSystem(ctx)
	cmd.Printf("Overall status: %s\n", report.OverallStatus)
	for name, comp := range report.Components {
		if comp.Details != "" {
			cmd.Printf("  %-18s %s (%s)\n", name, comp.Status, comp.Details)
		} else {
			cmd.Printf("  %-18s %s\n", name, comp.Status)
		}
	}
	for _, rec := range report.Recommendations {
		cmd.Printf("  -> %s\n", rec)
	}
	if report.OverallStatus == "error" {
		return fmt.Errorf("system validation failed")
	}
	return nil
}
