package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeet-u/jeet-u-updater/internal/backup"
	"github.com/jeet-u/jeet-u-updater/internal/config"
	"github.com/jeet-u/jeet-u-updater/internal/fetcher"
	"github.com/jeet-u/jeet-u-updater/internal/git"
	"github.com/jeet-u/jeet-u-updater/internal/installer"
	"github.com/jeet-u/jeet-u-updater/internal/logging"
	"github.com/jeet-u/jeet-u-updater/internal/merge"
	"github.com/jeet-u/jeet-u-updater/internal/updater"
)

var (
	checkOnly  bool
	skipBackup bool
	force      bool
	assumeYes  bool
	backupMode string
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Merge the latest upstream changes, backing up your files first",
	Long: `Check the working tree, fetch upstream, show the incoming commits and,
after confirmation, back up user-owned files, merge upstream and reinstall
dependencies.

Exit status: 0 done, up to date, check-only or cancelled; 1 error;
2 merge conflict; 3 uncommitted changes.`,
	Args: usageArgs(cobra.NoArgs),
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

		probe := git.NewShellProbe(cfg.ProjectDir, cfg.GitTimeout.Duration)
		components := updater.Components{
			Probe:     probe,
			Fetcher:   fetcher.New(probe, cfg),
			Archiver:  newArchiver(cfg),
			Merger:    merge.NewCoordinator(probe, cfg.UpstreamRef(), cfg.AllowUnrelated()),
			Installer: installer.New(cfg),
		}
		opts := updater.Options{
			CheckOnly:  checkOnly,
			SkipBackup: skipBackup,
			Force:      force,
		}

		observers := []updater.Observer{out}
		if j := openJournal(); j != nil {
			defer j.Close()
			jo, err := updater.NewJournalObserver(j, cfg.ProjectDir, opts)
			if err != nil {
				logging.Warnf("could not start journal session: %v\n", err)
			} else {
				observers = append(observers, jo)
			}
		}

		session := updater.NewSession(updater.SessionConfig{
			Options:    opts,
			BackupMode: mode,
			AssumeYes:  assumeYes,
		}, components, newTermPrompter(os.Stdin), observers...)

		result, err := session.Run(ctx)
		if err != nil {
			return err
		}
		if code := result.ExitCode(); code != 0 {
			return &exitCodeError{code: code, status: string(result.State.Status)}
		}
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVar(&checkOnly, "check-only", false, "Show incoming changes without prompting or modifying anything")
	updateCmd.Flags().BoolVar(&skipBackup, "skip-backup", false, "Merge without creating a backup archive")
	updateCmd.Flags().BoolVar(&force, "force", false, "Proceed with uncommitted changes and allow declining the backup")
	updateCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to every prompt")
	updateCmd.Flags().StringVarP(&backupMode, "mode", "m", "", "Backup mode: full or basic (default from config)")
	rootCmd.AddCommand(updateCmd)
}

// resolveMode picks the backup mode from --mode or the configured default.
func resolveMode(cfg *config.Config) (config.Mode, error) {
	raw := backupMode
	if raw == "" {
		raw = cfg.Backup.DefaultMode
	}
	mode, err := config.ParseMode(raw)
	if err != nil {
		return "", fmt.Errorf("--mode: %w", err)
	}
	return mode, nil
}

// newArchiver shows a progress bar on an interactive stderr in text mode.
func newArchiver(cfg *config.Config) *backup.Archiver {
	a := backup.NewArchiver(cfg)
	if !out.structured() && term.IsTerminal(int(os.Stderr.Fd())) {
		a.Progress = os.Stderr
	}
	return a
}
