package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeet-u/jeet-u-updater/internal/backup"
	"github.com/jeet-u/jeet-u-updater/internal/logging"
)

var pruneKeep int

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Archive user-owned files now",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mode, err := resolveMode(cfg)
		if err != nil {
			return wrapUsageError(err)
		}

		ctx, stop := interruptContext()
		defer stop()

		path, err := newArchiver(cfg).Backup(ctx, mode)
		if err != nil {
			return err
		}
		if out.structured() {
			return out.emit(struct {
				Path string `json:"path" yaml:"path"`
			}{path})
		}
		logging.Successf("Backup saved to %s\n", path)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup archives, newest first",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		entries, err := backup.List(cfg.BackupDir())
		if err != nil {
			return err
		}
		if out.structured() {
			return out.emit(entries)
		}
		printBackupEntries(entries)
		return nil
	},
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest backup archives",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pruneKeep < 1 {
			return wrapUsageError(fmt.Errorf("--keep must be at least 1"))
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		removed, err := backup.Prune(cfg.BackupDir(), pruneKeep)
		if err != nil {
			return err
		}
		if out.structured() {
			return out.emit(struct {
				Removed []string `json:"removed" yaml:"removed"`
			}{removed})
		}
		if len(removed) == 0 {
			logging.Infoln("Nothing to prune.")
			return nil
		}
		for _, p := range removed {
			logging.Infof("Removed %s\n", p)
		}
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVarP(&backupMode, "mode", "m", "", "Backup mode: full or basic (default from config)")
	backupPruneCmd.Flags().IntVar(&pruneKeep, "keep", 0, "Number of newest archives to keep")

	backupCmd.AddCommand(backupListCmd, backupPruneCmd)
	rootCmd.AddCommand(backupCmd)
}
