package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"blinksync/pkg/auth"
	"blinksync/pkg/blink"
	"blinksync/pkg/checkpoint"
	"blinksync/pkg/config"
	"blinksync/pkg/logger"
	"blinksync/pkg/metrics"
	"blinksync/pkg/prompt"
	"blinksync/pkg/ratelimit"
	"blinksync/pkg/storage"
	"blinksync/pkg/syncer"
	"blinksync/pkg/ui"
)

var (
	// Sync command flags
	saveDirectory  string
	email          string
	apiServer      string
	concurrent     int
	rateLimit      int
	pollInterval   time.Duration
	metricsAddress string
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the mirror loop until interrupted",
	Long: `Log in, ask for the PIN once and mirror the account every poll interval.

The loop runs until SIGINT or SIGTERM. A failed login or PIN ends the
process with exit code 1.`,
	Example: `  # Mirror into /srv/blink using credentials from the environment
  EMAIL=me@example.com PASSWORD=secret blinksync sync -o /srv/blink

  # Poll every 5 minutes with two parallel downloads and metrics on :9464
  blinksync sync --poll-interval 5m --concurrent 2 --metrics-address :9464`,
	Args: cobra.NoArgs,
	Run:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	// The root command syncs too, so it takes the same flags
	for _, cmd := range []*cobra.Command{syncCmd, rootCmd} {
		cmd.Flags().StringVarP(&saveDirectory, "save-directory", "o", "", "directory the Blink/ tree is written to")
		cmd.Flags().StringVar(&email, "email", "", "Blink account email")
		cmd.Flags().StringVar(&apiServer, "api-server", "", "Blink login host")
		cmd.Flags().IntVar(&concurrent, "concurrent", 1, "number of concurrent downloads (1-10)")
		cmd.Flags().IntVar(&rateLimit, "rate-limit", 60, "requests per minute")
		cmd.Flags().DurationVar(&pollInterval, "poll-interval", 30*time.Minute, "time between cycles")
		cmd.Flags().StringVar(&metricsAddress, "metrics-address", "", "serve /metrics and /healthz on this address")
	}
}

// syncFlags returns the flags the user actually set, keyed for config.MergeCommandLineFlags
func syncFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed

	if changed("save-directory") {
		flags["save-directory"] = saveDirectory
	}
	if changed("email") {
		flags["email"] = email
	}
	if changed("api-server") {
		flags["api-server"] = apiServer
	}
	if changed("concurrent") {
		flags["concurrent-downloads"] = concurrent
	}
	if changed("rate-limit") {
		flags["requests-per-minute"] = rateLimit
	}
	if changed("poll-interval") {
		flags["poll-interval"] = pollInterval
	}
	if changed("metrics-address") {
		flags["metrics-address"] = metricsAddress
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

func runSync(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, syncFlags(cmd))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if manager, err := auth.NewManager(); err == nil {
		if err := resolveCredentials(cfg, manager); err != nil {
			ui.PrintWarning("Could not read stored credentials", err.Error())
		}
	}

	if err := cfg.ValidateCredentials(); err != nil {
		ui.PrintError("Invalid configuration", err.Error())
		ui.PrintError("Set EMAIL, PASSWORD, SAVE_DIRECTORY and BLINK_API_SERVER, or run 'blinksync auth login'")
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()

	if !quiet {
		ui.PrintLogo()
	}
	log.WithField("version", version).Info("blinksync starting")

	store, err := storage.NewManager(cfg.Output.SaveDirectory)
	if err != nil {
		ui.PrintError("Invalid save directory", err.Error())
		os.Exit(1)
	}
	if n, err := store.CleanupPartials(); err != nil {
		log.WithError(err).Warn("Failed to clean up partial downloads")
	} else if n > 0 {
		log.WithField("files", n).Info("Removed partial downloads from a previous run")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.NewRecorder()
	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Address, rec, 2*cfg.Poll.Interval+cfg.Blink.APITimeout, log)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	cp, err := checkpoint.NewDefaultManager(log)
	if err != nil {
		log.WithError(err).Warn("Sync state will not be recorded")
		cp = nil
	}

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)
	client := blink.NewClient(cfg, limiter, log)

	s, err := syncer.New(cfg, blink.NewAuthenticator(client, log), client, store, syncer.Options{
		Logger:     log,
		Checkpoint: cp,
		Metrics:    rec,
	})
	if err != nil {
		ui.PrintError("Failed to initialize sync", err.Error())
		os.Exit(1)
	}

	creds := blink.Credentials{
		Email:    cfg.Blink.Email,
		Password: cfg.Blink.Password,
		UniqueID: resolveUniqueID(cfg, log),
	}

	ui.PrintInfo("Account", cfg.Blink.Email)
	ui.PrintInfo("Mirror", store.Root())

	err = s.Run(ctx, creds, prompt.NewTerminal())
	if ctx.Err() != nil {
		log.Info("Shutdown signal received, exiting")
		return
	}

	log.WithError(err).Error("Sync stopped")
	ui.PrintError("Sync stopped", err.Error())
	os.Exit(1)
}

// resolveCredentials fills a missing password, and a missing email, from
// the credential store chain. Explicit configuration always wins.
func resolveCredentials(cfg *config.Config, manager *auth.Manager) error {
	if !config.IsPlaceholder(cfg.Blink.Password) {
		return nil
	}

	var account *auth.Account
	var err error
	if config.IsPlaceholder(cfg.Blink.Email) {
		account, err = manager.RetrieveDefault()
	} else {
		account, err = manager.Retrieve(cfg.Blink.Email)
	}
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return nil
		}
		return err
	}

	if config.IsPlaceholder(cfg.Blink.Email) {
		cfg.Blink.Email = account.Email
	}
	cfg.Blink.Password = account.Password
	return nil
}

// resolveUniqueID returns the configured client id, else the persisted one,
// else the fixed default
func resolveUniqueID(cfg *config.Config, log logger.Logger) string {
	if cfg.Blink.UniqueID != "" {
		return cfg.Blink.UniqueID
	}

	dir, err := auth.ConfigDir()
	if err == nil {
		var id string
		if id, err = auth.LoadOrCreateClientID(dir); err == nil {
			return id
		}
	}
	log.WithError(err).Warn("Using the default client id")
	return blink.DefaultUniqueID
}
