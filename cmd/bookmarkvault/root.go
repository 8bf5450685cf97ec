package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"bookmarkvault/pkg/config"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	archiveDir  string
	accountName string
	logLevel    string
	quiet       bool
	noLogo      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bookmarkvault",
	Short: "Archive your X bookmarks as local HTML pages",
	Long: `bookmarkvault keeps a local, self-contained copy of your X bookmarks.

Every bookmark becomes one HTML page next to its downloaded images and videos,
so the archive keeps working when posts are deleted or the API goes away.

Features:
  - Incremental sync: only new bookmarks are fetched and rendered
  - Media downloaded once and shared by content hash
  - Automatic pause on API rate limits, resumable runs
  - Secure token storage using the system keychain
  - Local web viewer with Prometheus metrics`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Version = version
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
		if !noLogo && cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.config/bookmarkvault/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&archiveDir, "archive-dir", "d", "", "archive root directory")
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "", "stored credential to use")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&noLogo, "no-logo", false, "do not print the banner")

	rootCmd.SetVersionTemplate(`bookmarkvault {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags for config.Load
func globalFlags() map[string]interface{} {
	return map[string]interface{}{
		"archive-dir": archiveDir,
		"account":     accountName,
		"log-level":   logLevel,
	}
}

// loadConfig loads configuration with extra command flags merged over the
// global ones and initializes the global logger
func loadConfig(extra map[string]interface{}) (*config.Config, logger.Logger, error) {
	flags := globalFlags()
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.GetLogger(), nil
}
