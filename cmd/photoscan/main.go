/**
 * PhotoScan CLI
 *
 * Runs the extraction pipeline against local photos without the queue or
 * PostgreSQL/Qdrant. Results print to stdout and land in a per-user SQLite
 * history so re-scans of the same photo can be skipped.
 */

package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "photoscan",
		Usage: "extract catalog attributes from product photos",
		Commands: []*cli.Command{
			{
				Name:      "scan",
				Usage:     "scan photo files or directories",
				ArgsUsage: "PATH [PATH...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "title",
						Usage: "product title to mine for attributes",
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "product description to mine for attributes",
					},
					&cli.StringFlag{
						Name:  "page-url",
						Usage: "product listing URL; its title and description fill in missing context",
					},
					&cli.StringFlag{
						Name:  "lang",
						Value: "eng",
						Usage: "recognition languages, + separated (e.g. eng+spa)",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Value: 4,
						Usage: "photos processed in parallel",
					},
					&cli.BoolFlag{
						Name:  "skip-duplicates",
						Usage: "skip photos already present in the scan history",
					},
					&cli.BoolFlag{
						Name:  "all-pages",
						Usage: "scan every page of PDF inputs instead of just the first",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "emit results as JSON",
					},
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "show pipeline logs",
					},
					&cli.StringFlag{
						Name:  "history-db",
						Usage: "scan history location (default: ~/.photoscan/history.db)",
					},
					&cli.StringFlag{
						Name:  "lexicon",
						Usage: "custom attribute lexicon (YAML)",
					},
				},
				Action: scanAction,
			},
			{
				Name:  "history",
				Usage: "list previously scanned photos",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "maximum rows to show",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "emit history as JSON",
					},
					&cli.StringFlag{
						Name:  "history-db",
						Usage: "scan history location (default: ~/.photoscan/history.db)",
					},
				},
				Action: historyAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
