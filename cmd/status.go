package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jeet-u/jeet-u-updater/internal/fetcher"
	"github.com/jeet-u/jeet-u-updater/internal/git"
	"github.com/jeet-u/jeet-u-updater/internal/updater"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show branch, local changes, upstream divergence and the latest backup",
	Long: `Report the current branch, uncommitted files, how far the checkout is from
upstream, whether the env file exists and the newest backup.

To measure divergence, status adds the configured upstream remote when it is
missing and runs git fetch, which updates remote-tracking refs. It never
touches the working tree, the index or local branches, and it does not record
a journal session.`,
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := interruptContext()
		defer stop()

		probe := git.NewShellProbe(cfg.ProjectDir, cfg.GitTimeout.Duration)
		report, err := updater.Report(ctx, cfg, probe, fetcher.New(probe, cfg))
		if err != nil {
			return err
		}
		if out.structured() {
			return out.emit(report)
		}
		printStatusReport(report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
