package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/catherinevee/certguard/internal/fleetsync"
)

var validateRosterCmd = &cobra.Command{
	Use:   "validate-roster",
	Short: "Validate a roster config without running Fleet Sync",
	Long: `Parses and validates master/detail roster files the same way
"fleet sync" does (duplicate group names, empty group lists, sync tuning
bounds) and reports the result without touching the forge or the store.`,
	RunE: runValidateRoster,
}

func init() {
	rootCmd.AddCommand(validateRosterCmd)
	validateRosterCmd.Flags().StringVar(&masterRoster, "master", "master.yaml", "master roster config path")
	validateRosterCmd.Flags().StringVar(&detailRoster, "detail", "", "optional detail roster config path")
}

func runValidateRoster(cmd *cobra.Command, args []string) error {
	roster, err := fleetsync.LoadRoster(masterRoster, detailRoster)
	if err != nil {
		return fmt.Errorf("roster invalid: %w", err)
	}

	fmt.Printf("roster valid: %d group(s)\n", len(roster.Groups))
	for _, g := range roster.Groups {
		fmt.Printf("  - %s (%s)\n", g.Name, g.URL)
	}
	fmt.Printf("defaults: main_branch=%s environments=%v\n", roster.Defaults.MainBranch, roster.Defaults.Environments)
	fmt.Printf("sync tuning: max_branch_workers=%d max_delete_percentage=%d create_golden_branches=%t\n",
		roster.Sync.MaxBranchWorkers, roster.Sync.MaxDeletePercentage, roster.Sync.CreateGoldenBranches)
	return nil
}
