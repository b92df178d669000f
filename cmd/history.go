package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jeet-u/jeet-u-updater/internal/logging"
)

var (
	historyLimit int
	historyAll   bool
)

var errJournalDisabled = errors.New("session journal is disabled or unavailable")

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past update sessions for this project",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		j := openJournal()
		if j == nil {
			return errJournalDisabled
		}
		defer j.Close()

		filter := ""
		if !historyAll {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			filter = cfg.ProjectDir
		}

		sessions, err := j.Recent(filter, historyLimit)
		if err != nil {
			return err
		}
		if out.structured() {
			return out.emit(sessions)
		}
		if len(sessions) == 0 {
			logging.Infoln("No sessions recorded.")
			return nil
		}
		for _, s := range sessions {
			printSession(s)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show every recorded state of one session",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		j := openJournal()
		if j == nil {
			return errJournalDisabled
		}
		defer j.Close()

		s, err := j.Get(args[0])
		if err != nil {
			return err
		}
		if out.structured() {
			return out.emit(s)
		}
		printSession(*s)
		for _, snap := range s.Snapshots {
			logging.Infof("  %s  %s\n", snap.At.Local().Format("15:04:05"), snap.Status)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Maximum number of sessions to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "Include sessions from every project")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}
