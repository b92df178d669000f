package cmd

import (
	"bytes"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeet-u/jeet-u-updater/internal/logging"
	"github.com/jeet-u/jeet-u-updater/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved option profiles",
}

// Flags for profile create
var (
	profMode       *string
	profSkipBackup *bool
	profYes        *bool
)

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new profile",
	Long: `Save the given options under a name. Global flags such as --project-dir,
--config and --output are stored when they are passed explicitly; load the
profile later with --profile <name>.`,
	Args: usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := profile.ValidateName(args[0]); err != nil {
			return wrapUsageError(err)
		}
		p := newProfileFromFlags(cmd)

		if err := profile.Save(args[0], p); err != nil {
			return err
		}
		logging.Infof("Profile %q saved to %s\n", args[0], profile.Dir())
		return nil
	},
}

// newProfileFromFlags stores only the flags the user set explicitly.
func newProfileFromFlags(cmd *cobra.Command) *profile.Profile {
	p := &profile.Profile{}
	changed := cmd.Flags().Changed

	if changed("project-dir") {
		p.ProjectDir = &projectDir
	}
	if changed("config") {
		p.Config = &configPath
	}
	if changed("output") {
		p.Output = &outputFlag
	}
	if changed("env-file") {
		p.EnvFile = &envFile
	}
	if changed("no-journal") {
		p.NoJournal = &noJournal
	}
	if changed("verbose") {
		p.Verbose = &verbose
	}
	if changed("log-file") {
		p.LogFile = &logFile
	}
	if changed("mode") {
		p.Mode = profMode
	}
	if changed("skip-backup") {
		p.SkipBackup = profSkipBackup
	}
	if changed("yes") {
		p.Yes = profYes
	}
	return p
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := profile.List()
		if err != nil {
			return err
		}
		if out.structured() {
			if names == nil {
				names = []string{}
			}
			return out.emit(names)
		}
		if len(names) == 0 {
			logging.Infoln("No profiles saved.")
			return nil
		}
		for _, n := range names {
			logging.Infoln(n)
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a profile's contents",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profile.Load(args[0])
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(p); err != nil {
			return err
		}
		logging.Infof("%s", buf.String())
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved profile",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := profile.Delete(args[0]); err != nil {
			return err
		}
		logging.Infof("Profile %q deleted.\n", args[0])
		return nil
	},
}

func init() {
	// Update options get local flags here so they don't collide with the
	// update command's own flags.
	profMode = profileCreateCmd.Flags().StringP("mode", "m", "", "Backup mode: full or basic")
	profSkipBackup = profileCreateCmd.Flags().Bool("skip-backup", false, "Merge without creating a backup archive")
	profYes = profileCreateCmd.Flags().BoolP("yes", "y", false, "Answer yes to every prompt")

	profileCmd.AddCommand(profileCreateCmd, profileListCmd, profileShowCmd, profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}
