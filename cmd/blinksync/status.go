package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"blinksync/pkg/checkpoint"
	"blinksync/pkg/logger"
	"blinksync/pkg/ui"
)

var statusJSON bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the result of the last sync cycle",
	Long: `Show the sync state file written after every completed cycle: the last
cycle's counts and timing, totals since the first cycle and the newest clip
seen. The file is informational only; downloads are decided by the files
on disk.`,
	Args: cobra.NoArgs,
	Run:  runStatus,
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("blinksync %s (commit: %s, built: %s)\n", version, gitCommit, buildDate)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw state file")
}

func runStatus(cmd *cobra.Command, args []string) {
	mgr, err := checkpoint.NewDefaultManager(logger.NewNopLogger())
	if err != nil {
		ui.PrintError("Failed to open sync state", err.Error())
		os.Exit(1)
	}

	state, err := mgr.Load()
	if err != nil {
		ui.PrintError("Failed to read sync state", err.Error())
		os.Exit(1)
	}
	if state == nil {
		ui.PrintInfo("No sync state", "no cycle has completed yet")
		return
	}

	if statusJSON {
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			ui.PrintError("Failed to format sync state", err.Error())
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	printState(state, mgr.Path())
}

func printState(state *checkpoint.State, path string) {
	last := state.LastCycle

	ui.PrintHighlight("Sync Status")
	fmt.Println()
	ui.PrintInfo("Account", fmt.Sprintf("%s (%d)", state.Email, state.AccountID))
	ui.PrintInfo("Cycles", fmt.Sprint(state.Cycles))
	ui.PrintInfo("Last cycle", fmt.Sprintf("%s (%s ago, took %s)",
		last.FinishedAt.Local().Format("2006-01-02 15:04:05"),
		time.Since(last.FinishedAt).Round(time.Second),
		last.Duration().Round(time.Millisecond)))
	ui.PrintInfo("Networks / cameras", fmt.Sprintf("%d / %d (%d failed)", last.Networks, last.Cameras, last.CameraFailures))
	ui.PrintInfo("Media pages", fmt.Sprint(last.Pages))
	ui.PrintInfo("Thumbnails", formatCounts(last.Thumbnails))
	ui.PrintInfo("Videos", formatCounts(last.Videos))
	ui.PrintInfo("Total", formatCounts(state.Totals))
	if !state.NewestMedia.IsZero() {
		ui.PrintInfo("Newest clip", state.NewestMedia.Local().Format("2006-01-02 15:04:05"))
	}
	ui.PrintDim("State file: " + path)
}

func formatCounts(c checkpoint.Counts) string {
	return fmt.Sprintf("%d downloaded, %d skipped, %d failed, %s",
		c.Downloaded, c.Skipped, c.Failed, formatBytes(c.Bytes))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
