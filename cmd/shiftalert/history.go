package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/shiftalert/internal/model"
	"github.com/amishk599/shiftalert/internal/store"
)

var (
	historyStatus string
	historyPrune  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List part-time jobs seen so far",
	Long:  "Reads the job history database and prints a table of part-time listings with when they were first and last seen.",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyStatus, "status", "all", "filter by status: active, inactive or all")
	historyCmd.Flags().BoolVar(&historyPrune, "prune", false, "delete inactive entries older than history.retention first")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var status model.HistoryStatus
	switch historyStatus {
	case "all", "":
	case string(model.StatusActive), string(model.StatusInactive):
		status = model.HistoryStatus(historyStatus)
	default:
		fmt.Fprintf(os.Stderr, "unknown --status %q (want active, inactive or all)\n", historyStatus)
		os.Exit(1)
	}

	db, err := store.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open job history: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if historyPrune {
		n, err := db.Cleanup(ctx, cfg.History.Retention)
		if err != nil {
			fmt.Fprintf(os.Stderr, "prune failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Pruned %d inactive entries older than %s\n\n", n, cfg.History.Retention)
	}

	entries, err := db.List(ctx, status)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read job history: %v\n", err)
		os.Exit(1)
	}

	loc := cfg.Scheduler.Location
	fmt.Printf("%-32s %-16s %-9s %-17s %s\n", "Title", "City", "Status", "First seen", "Last updated")
	fmt.Println(strings.Repeat("─", 96))

	active, inactive := 0, 0
	for _, e := range entries {
		if e.Status == model.StatusActive {
			active++
		} else {
			inactive++
		}
		fmt.Printf("%-32s %-16s %-9s %-17s %s\n",
			truncate(e.Title, 32),
			truncate(e.City, 16),
			e.Status,
			e.FirstSeen.In(loc).Format("2006-01-02 15:04"),
			e.LastUpdated.In(loc).Format("2006-01-02 15:04"),
		)
	}

	fmt.Printf("\nTotal: %d jobs (%d active, %d inactive)\n", len(entries), active, inactive)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
