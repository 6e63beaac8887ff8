package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/shelfwise/catalog/photoscan-worker/internal/storage"
)

func historyAction(c *cli.Context) error {
	history, err := storage.NewHistoryStore(c.String("history-db"))
	if err != nil {
		return fmt.Errorf("failed to open scan history: %w", err)
	}
	defer history.Close()

	entries, err := history.RecentScans(context.Background(), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to read scan history: %w", err)
	}

	if c.Bool("json") {
		output, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal history: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(entries) == 0 {
		fmt.Println("No scans recorded yet.")
		fmt.Printf("History database: %s\n", history.Path())
		return nil
	}

	for _, entry := range entries {
		title := entry.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%.12s  %-40s  conf %.2f  x%d  %s\n",
			entry.ImageHash,
			title,
			entry.Confidence,
			entry.ScanCount,
			entry.LastScanned.Format("2006-01-02 15:04"),
		)
		fmt.Printf("              %s\n", entry.Path)
	}
	fmt.Printf("\n%d entries from %s\n", len(entries), history.Path())

	return nil
}
