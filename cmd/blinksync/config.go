package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"blinksync/pkg/config"
	"blinksync/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage blinksync configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created as '.blinksync.yaml' in the current directory unless a
different path is given with --config.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.
The password is masked.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration from every source and check it.

This command checks:
  - YAML syntax
  - Value ranges and durations
  - Required credentials and placeholders
  - Whether the save directory can be created`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# blinksync configuration file
#
# Every value can also be set through the environment:
#   EMAIL, PASSWORD, SAVE_DIRECTORY, BLINK_API_SERVER
# or their BLINKSYNC_ prefixed forms, e.g. BLINKSYNC_POLL_INTERVAL=5m

blink:
  # Account email (required)
  email: "Your Email Here"

  # Prefer 'blinksync auth login' or the PASSWORD variable over this key
  password: "Your Password Here"

  # Login host
  api_server: "rest-prod.immedia-semi.com"

  # Regional API base; {tier} is replaced by the tier returned at login
  region_url: "https://rest-{tier}.immedia-semi.com"

  # Client instance id sent at login; leave empty to use a generated one
  unique_id: ""

  # Timeout of JSON API calls
  api_timeout: 30s

output:
  # The Blink/ tree is created inside this directory (required)
  save_directory: "X"

poll:
  # Time between cycles
  interval: 30m

  # Wait before retrying a failed network listing
  retry_delay: 10s

  # Lower bound of the changed-media listing
  since: "2015-04-19T23:11:20+0000"

download:
  # Parallel downloads, 1-10
  concurrent_downloads: 1

  # Timeout of a single media download
  download_timeout: 10m

rate_limit:
  # Shared by API calls and downloads
  requests_per_minute: 60

logging:
  # debug, info, warn, error
  level: "info"

  # Also write JSON logs to this file
  file: ""

metrics:
  # Serve /metrics and /healthz
  enabled: false
  address: "127.0.0.1:9464"
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".blinksync.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			ui.PrintError("Failed to create configuration directory", err.Error())
			os.Exit(1)
		}
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set blink.email and output.save_directory")
	fmt.Println("2. Store the password with 'blinksync auth login'")
	fmt.Println("3. Run 'blinksync config validate' to check the configuration")
	fmt.Println("4. Start mirroring with 'blinksync sync'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	display := cfg.Redacted()
	data, err := yaml.Marshal(&display)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (EMAIL, PASSWORD, ... and BLINKSYNC_*)")
	fmt.Println("3. .env files")
	if configFile != "" {
		fmt.Printf("4. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("4. Configuration file: (searched in standard locations)")
	}
	fmt.Println("5. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	var warnings []string
	var problems []string

	if err := cfg.ValidateCredentials(); err != nil {
		warnings = append(warnings, err.Error())
	}

	if !config.IsPlaceholder(cfg.Output.SaveDirectory) {
		if err := os.MkdirAll(cfg.Output.SaveDirectory, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create save directory: %v", err))
		}
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "  - %s\n", p)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Save directory: %s\n", cfg.Output.SaveDirectory)
	fmt.Printf("  API server: %s\n", cfg.Blink.APIServer)
	fmt.Printf("  Poll interval: %s\n", cfg.Poll.Interval)
	fmt.Printf("  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
