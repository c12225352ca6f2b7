package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/shiftalert/internal/board"
	"github.com/amishk599/shiftalert/internal/classify"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Browse the job board interactively (TUI)",
	Long:  "Fetches the board, shows the bucket picker, then the split-pane view with the message a broadcast would carry.",
	RunE:  runBoard,
}

func init() {
	rootCmd.AddCommand(boardCmd)
}

func runBoard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Log output before the alt-screen starts corrupts the display.
	fetcher := setupFetcher(cfg, silentLogger())
	jobFilter := setupFilter(cfg)
	renderer := setupRenderer(cfg)

	for {
		records, err := board.RunLoader("the job board", fetcher.FetchJobs)
		if err != nil {
			fmt.Printf("Error fetching jobs: %v\n", err)
			return nil
		}
		records = jobFilter.Apply(records)

		bucket, ok, err := board.RunBucketPicker(classify.Summarize(records))
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return nil
		}
		if !ok {
			return nil
		}

		wantQuit, err := board.RunBoardTUI(records, bucket, renderer.Render(records))
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
		// else: loop → refetch and back to picker
	}
}
