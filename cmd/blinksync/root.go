package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"blinksync/pkg/ui"
)

var (
	// Version information, set with -ldflags at build time
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

// rootCmd runs the sync loop when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "blinksync",
	Short: "Mirror Blink camera clips and thumbnails to a local directory",
	Long: `blinksync logs into a Blink account once, asks for the one-time PIN and then
polls the account forever, copying every camera thumbnail and recorded clip
into <save directory>/Blink/<network>/<camera>/.

Files already on disk are never downloaded again.

Configuration is read from (highest priority first):
  - Command line flags
  - Environment variables (EMAIL, PASSWORD, SAVE_DIRECTORY, BLINK_API_SERVER
    or their BLINKSYNC_ prefixed forms)
  - .env files
  - Configuration file (.blinksync.yaml, ~/.config/blinksync/config.yaml)
  - Default values`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:    cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.NoColor = true
		}
	},
	Run: runSync,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .blinksync.yaml or ~/.config/blinksync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "do not print the banner")

	rootCmd.SetVersionTemplate(`blinksync {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
