package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeet-u/jeet-u-updater/internal/backup"
	"github.com/jeet-u/jeet-u-updater/internal/logging"
)

var (
	restoreLatest bool
	restoreDryRun bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore [archive]",
	Short: "Copy files from a backup archive back into the project",
	Long: `Restore every item recorded in a backup archive to its original location,
overwriting the current files. Use --latest to pick the newest archive in the
backup directory and --dry-run to see what would be copied.`,
	Args: usageArgs(cobra.MaximumNArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		if restoreLatest == (len(args) == 1) {
			return wrapUsageError(errors.New("specify either an archive path or --latest"))
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		archive := ""
		if restoreLatest {
			latest, err := backup.Latest(cfg.BackupDir())
			if err != nil {
				return fmt.Errorf("finding latest backup in %s: %w", cfg.BackupDir(), err)
			}
			archive = latest.Path
		} else {
			archive = args[0]
		}

		ctx, stop := interruptContext()
		defer stop()

		report, err := backup.NewRestorer(cfg.ProjectDir, restoreDryRun).Restore(ctx, archive)
		if err != nil {
			var re *backup.RestoreError
			if errors.As(err, &re) && len(re.Restored) > 0 {
				logging.Warnf("restored before the failure: %s\n", strings.Join(re.Restored, ", "))
			}
			return err
		}
		if out.structured() {
			return out.emit(report)
		}
		printRestoreReport(report)
		return nil
	},
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreLatest, "latest", false, "Restore the newest archive in the backup directory")
	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "Show what would be restored without writing anything")
	rootCmd.AddCommand(restoreCmd)
}
