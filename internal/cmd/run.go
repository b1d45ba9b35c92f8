package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/catherinevee/certguard/internal/models"
	"github.com/catherinevee/certguard/internal/notify"
	"github.com/catherinevee/certguard/internal/orchestrator"
)

var runCmd = &cobra.Command{
	Use:   "run <service-id> <environment>",
	Short: "Validate config drift for a service/environment and certify the result",
	Long: `Runs the full Snapshot -> Drift -> Guardrail -> Triage -> Certify pipeline
for a single service and environment, printing a human-readable summary of
the decision alongside persisting every stage's output to the store.`,
	Args: cobra.ExactArgs(2),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&policyFile, "policy", "", "path to a policies.yaml-shaped guardrail policy file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	serviceID, environment := args[0], args[1]

	w, err := wireUp(ctx)
	if err != nil {
		return err
	}
	defer w.Close()

	cert, err := orchestrator.Run(ctx, w.orchestratorDeps(), serviceID, environment)
	if err != nil {
		return fmt.Errorf("validation run failed: %w", err)
	}

	printCertification(cert)

	event := notify.Event{
		RunID: cert.RunID, ServiceID: cert.ServiceID, Environment: cert.Environment,
		Decision: cert.Decision, ConfidenceScore: cert.ConfidenceScore, Explanation: cert.Explanation,
	}
	if event.ShouldNotify() {
		if nerr := w.notify.Notify(ctx, event); nerr != nil {
			fmt.Fprintf(os.Stderr, "warning: notification delivery failed: %v\n", nerr)
		}
	}

	if cert.Decision == models.DecisionBlockMerge {
		return fmt.Errorf("certification blocked: %s", cert.Explanation)
	}
	return nil
}

func printCertification(cert *models.Certification) {
	decisionColor := color.GreenString
	switch cert.Decision {
	case models.DecisionBlockMerge:
		decisionColor = color.RedString
	case models.DecisionHumanReview:
		decisionColor = color.YellowString
	}

	fmt.Printf("\nrun %s: %s/%s -> %s\n\n",
		cert.RunID, cert.ServiceID, cert.Environment, decisionColor(string(cert.Decision)))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Component", "Value"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	c := cert.Components
	table.Append([]string{"base score", fmt.Sprintf("%d", c.BaseScore)})
	table.Append([]string{"policy deductions", fmt.Sprintf("%d", c.PolicyDeductions)})
	table.Append([]string{"risk deductions", fmt.Sprintf("%d", c.RiskDeductions)})
	table.Append([]string{"blast radius penalty", fmt.Sprintf("%d", c.BlastRadiusPenalty)})
	table.Append([]string{"history adjustment", fmt.Sprintf("%d", c.HistoryAdjustment)})
	table.Append([]string{"llm safety adjustment", fmt.Sprintf("%d", c.LLMSafetyAdjustment)})
	table.Append([]string{"context bonus", fmt.Sprintf("%d", c.ContextBonus)})
	table.Append([]string{"evidence adjustment", fmt.Sprintf("%d", c.EvidenceAdjustment)})
	table.Append([]string{"confidence score", fmt.Sprintf("%d", cert.ConfidenceScore)})
	table.Append([]string{"confidence level", string(cert.ConfidenceLevel)})
	table.Render()

	if cert.Explanation != "" {
		fmt.Println("\n" + strings.TrimSpace(cert.Explanation))
	}
	if cert.CertifiedSnapshotBranch != "" {
		fmt.Printf("\nsnapshot branch: %s\n", cert.CertifiedSnapshotBranch)
	}
}
