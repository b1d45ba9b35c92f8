package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/catherinevee/certguard/internal/fleetsync"
	"github.com/catherinevee/certguard/internal/metrics"
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Manage the roster of services Fleet Sync tracks",
}

var (
	masterRoster   string
	detailRoster   string
	rosterHashFile string
	forceSync      bool
	pruneGroup     string
	pruneExecute   bool
)

func init() {
	rootCmd.AddCommand(fleetCmd)
	fleetCmd.AddCommand(fleetSyncCmd)
	fleetCmd.AddCommand(fleetPruneCmd)

	for _, c := range []*cobra.Command{fleetSyncCmd, fleetPruneCmd} {
		c.Flags().StringVar(&masterRoster, "master", "master.yaml", "master roster config path")
		c.Flags().StringVar(&detailRoster, "detail", "", "optional detail roster config path")
	}
	fleetSyncCmd.Flags().StringVar(&rosterHashFile, "hash-file", ".certguard_roster.hash", "path to the roster change-detection hash file")
	fleetSyncCmd.Flags().BoolVar(&forceSync, "force", false, "sync even if the roster config is unchanged")

	fleetPruneCmd.Flags().StringVar(&pruneGroup, "group", "", "restrict pruning to one forge group")
	fleetPruneCmd.Flags().BoolVar(&pruneExecute, "execute", false, "actually deactivate services (default is dry-run)")
}

var fleetSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the service roster against the forge and materialise golden branches",
	RunE:  runFleetSync,
}

var fleetPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Deactivate services whose main branch no longer exists",
	RunE:  runFleetPrune,
}

func runFleetSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w, err := wireUp(ctx)
	if err != nil {
		return err
	}
	defer w.Close()

	result, err := fleetsync.Sync(ctx, w.forge, w.store, fleetsync.Paths{
		MasterConfig: masterRoster, DetailConfig: detailRoster, HashFile: rosterHashFile,
	}, forceSync)
	if err != nil {
		metrics.Default.RecordFleetSync("failed")
		return fmt.Errorf("fleet sync failed: %w", err)
	}
	metrics.Default.RecordFleetSync(result.Status)

	fmt.Printf("fleet sync: %s", result.Status)
	if result.Reason != "" {
		fmt.Printf(" (%s)", result.Reason)
	}
	fmt.Println()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Count"})
	table.SetBorder(false)
	table.Append([]string{"added", fmt.Sprintf("%d", result.Added)})
	table.Append([]string{"updated", fmt.Sprintf("%d", result.Updated)})
	table.Append([]string{"unchanged", fmt.Sprintf("%d", result.Unchanged)})
	table.Append([]string{"deactivated", fmt.Sprintf("%d", result.Deactivated)})
	table.Append([]string{"reactivated", fmt.Sprintf("%d", result.Reactivated)})
	table.Append([]string{"golden branches created", fmt.Sprintf("%d", result.BranchesCreated)})
	table.Append([]string{"golden branches failed", fmt.Sprintf("%d", result.BranchesFailed)})
	table.Render()

	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "  error: %s\n", e)
	}
	if result.Status == "failed" {
		return fmt.Errorf("fleet sync reported failure: %s", result.Reason)
	}
	return nil
}

func runFleetPrune(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w, err := wireUp(ctx)
	if err != nil {
		return err
	}
	defer w.Close()

	dryRun := !pruneExecute
	result, err := fleetsync.Prune(ctx, w.forge, w.store, pruneGroup, dryRun)
	if err != nil {
		return fmt.Errorf("fleet prune failed: %w", err)
	}

	mode := "dry-run"
	if !dryRun {
		mode = "executed"
	}
	fmt.Printf("fleet prune (%s): checked %d, %d missing a main branch, %d deactivated\n",
		mode, result.Checked, len(result.WithoutMain), len(result.Deactivated))
	for _, id := range result.WithoutMain {
		fmt.Printf("  missing main branch: %s\n", id)
	}
	return nil
}
