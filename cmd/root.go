package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeet-u/jeet-u-updater/internal/config"
	"github.com/jeet-u/jeet-u-updater/internal/journal"
	"github.com/jeet-u/jeet-u-updater/internal/logging"
	"github.com/jeet-u/jeet-u-updater/internal/profile"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	projectDir  string
	configPath  string
	profileName string
	verbose     bool
	logFile     string
	outputFlag  string
	noJournal   bool
	envFile     string

	out *renderer
)

var rootCmd = &cobra.Command{
	Use:           "jeet-u-updater",
	Short:         "Keep a jeet-u blog in sync with upstream",
	Long:          "Merge upstream jeet-u changes into a customised checkout, backing up user-owned files first and restoring them on demand.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Apply profile defaults for flags not explicitly set by the user.
		if profileName != "" {
			p, err := profile.Load(profileName)
			if err != nil {
				return err
			}
			applyProfile(cmd, p)
		}

		format, err := parseOutputFormat(outputFlag)
		if err != nil {
			return wrapUsageError(err)
		}

		logging.SetVerbose(verbose)
		if err := logging.SetOutputFile(logFile); err != nil {
			return fmt.Errorf("opening log file %q: %w", logFile, err)
		}
		// Structured output owns stdout; human-readable lines move to stderr.
		if format != formatText {
			logging.SetOutput(os.Stderr)
		}
		out = newRenderer(format, os.Stdout)
		return nil
	},
}

func applyProfile(cmd *cobra.Command, p *profile.Profile) {
	setString := func(flag string, dst *string, v *string) {
		if v != nil && cmd.Flags().Lookup(flag) != nil && !cmd.Flags().Changed(flag) {
			*dst = *v
		}
	}
	setBool := func(flag string, dst *bool, v *bool) {
		if v != nil && cmd.Flags().Lookup(flag) != nil && !cmd.Flags().Changed(flag) {
			*dst = *v
		}
	}

	setString("project-dir", &projectDir, p.ProjectDir)
	setString("config", &configPath, p.Config)
	setString("output", &outputFlag, p.Output)
	setString("env-file", &envFile, p.EnvFile)
	setString("log-file", &logFile, p.LogFile)
	setBool("verbose", &verbose, p.Verbose)
	setBool("no-journal", &noJournal, p.NoJournal)
	setString("mode", &backupMode, p.Mode)
	setBool("skip-backup", &skipBackup, p.SkipBackup)
	setBool("yes", &assumeYes, p.Yes)
}

func Execute() {
	err := rootCmd.Execute()
	closeErr := logging.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", closeErr)
		if err == nil {
			os.Exit(1)
		}
	}
	if err != nil {
		var ec *exitCodeError
		if errors.As(err, &ec) {
			os.Exit(ec.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if isUsageError(err) {
			if cmd, _, findErr := rootCmd.Find(os.Args[1:]); findErr == nil && cmd != nil {
				_ = cmd.Usage()
			} else {
				_ = rootCmd.Usage()
			}
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return wrapUsageError(err)
	})

	rootCmd.PersistentFlags().StringVarP(&projectDir, "project-dir", "d", ".", "Blog checkout root directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: <project-dir>/"+config.FileName+")")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Load a saved option profile by name")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write command output to a log file")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", string(formatText), "Output format: text, json or yaml")
	rootCmd.PersistentFlags().BoolVar(&noJournal, "no-journal", false, "Do not record update sessions in the journal")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Environment file to check for (default from config: "+config.DefaultEnvFile+")")
}

// loadConfig reads the project configuration and applies global overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(projectDir, configPath)
	if err != nil {
		return nil, err
	}
	if envFile != "" {
		cfg.EnvFile = envFile
	}
	logging.Debugf("Verbose: config project=%s upstream=%s backups=%s\n", cfg.ProjectDir, cfg.UpstreamRef(), cfg.BackupDir())
	return cfg, nil
}

// openJournal opens the session journal unless disabled. A journal that
// cannot be opened is reported and treated as disabled.
func openJournal() *journal.Journal {
	if noJournal {
		return nil
	}
	dir, err := journal.DefaultDir()
	if err == nil {
		var j *journal.Journal
		if j, err = journal.Open(dir); err == nil {
			return j
		}
	}
	logging.Warnf("session journal unavailable: %v\n", err)
	return nil
}

// interruptContext is cancelled on SIGINT or SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

func wrapUsageError(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if validate == nil {
			return nil
		}
		if err := validate(cmd, args); err != nil {
			return wrapUsageError(err)
		}
		return nil
	}
}

func isUsageError(err error) bool {
	var ue *usageError
	if errors.As(err, &ue) {
		return true
	}

	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command ")
}

// exitCodeError ends the process with a specific status after the outcome
// has already been reported.
type exitCodeError struct {
	code   int
	status string
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("update ended in %s (exit status %d)", e.status, e.code)
}
