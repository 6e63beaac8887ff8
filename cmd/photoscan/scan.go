package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/shelfwise/catalog/photoscan-worker/internal/imaging"
	"github.com/shelfwise/catalog/photoscan-worker/internal/processor"
	"github.com/shelfwise/catalog/photoscan-worker/internal/storage"
	"github.com/shelfwise/catalog/photoscan-worker/internal/webpage"
)

var photoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
	".pdf":  true,
}

// scanReport is the per-photo outcome shown to the user.
type scanReport struct {
	Path    string                   `json:"path"`
	Skipped bool                     `json:"skipped,omitempty"`
	Reason  string                   `json:"reason,omitempty"`
	Error   string                   `json:"error,omitempty"`
	Result  *processor.ProcessResult `json:"result,omitempty"`
}

type scanOptions struct {
	title          string
	description    string
	skipDuplicates bool
	allPages       bool
}

func scanAction(c *cli.Context) error {
	if c.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: No photos provided")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, `  photoscan scan lamp.jpg`)
		fmt.Fprintln(os.Stderr, `  photoscan scan ./photos --title "Desk Lamp" --lang eng+spa`)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Need help? Run: photoscan scan --help")
		os.Exit(1)
	}

	// The pipeline narrates each step through the standard logger; keep that
	// off stdout unless asked for
	if !c.Bool("verbose") {
		log.SetOutput(io.Discard)
	}

	ctx := context.Background()

	photos, err := collectPhotos(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(photos) == 0 {
		return fmt.Errorf("no photo files found under the given paths")
	}

	opts := scanOptions{
		title:          c.String("title"),
		description:    c.String("description"),
		skipDuplicates: c.Bool("skip-duplicates"),
		allPages:       c.Bool("all-pages"),
	}

	// A listing page fills in whatever context the flags left empty
	if pageURL := c.String("page-url"); pageURL != "" {
		scraper := webpage.NewScraper(0)
		pageCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		page, err := scraper.Fetch(pageCtx, pageURL)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not scrape %s: %v\n", pageURL, err)
		} else {
			if opts.title == "" {
				opts.title = page.Title
			}
			if opts.description == "" {
				opts.description = page.Description
			}
		}
	}

	history, err := storage.NewHistoryStore(c.String("history-db"))
	if err != nil {
		return fmt.Errorf("failed to open scan history: %w", err)
	}
	defer history.Close()

	proc, err := newScanProcessor(c)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	concurrency := c.Int("concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	// One slot per input path; a PDF scanned with --all-pages fills its slot
	// with one report per page
	perPhoto := make([][]*scanReport, len(photos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range photos {
		g.Go(func() error {
			perPhoto[i] = scanOne(gctx, proc, history, path, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var reports []*scanReport
	for _, batch := range perPhoto {
		reports = append(reports, batch...)
	}

	if c.Bool("json") {
		output, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Println(string(output))
	} else {
		for _, report := range reports {
			printReport(report)
		}
	}

	var failed, skipped int
	for _, report := range reports {
		if report.Skipped {
			skipped++
		} else if report.Error != "" {
			failed++
		}
	}
	processed := len(reports) - skipped

	if !c.Bool("json") {
		fmt.Printf("%d scanned, %d skipped, %d failed\n", processed-failed, skipped, failed)
	}

	if failed > 0 {
		history.Close()
		if failed == processed {
			os.Exit(2)
		}
		os.Exit(1)
	}

	return nil
}

// scanOne runs the pipeline on a single input file. PDFs scanned with
// --all-pages produce one report per page; everything else produces one.
func scanOne(ctx context.Context, proc *processor.PhotoProcessor, history *storage.HistoryStore, path string, opts scanOptions) []*scanReport {
	data, err := os.ReadFile(path)
	if err != nil {
		return []*scanReport{{Path: path, Error: fmt.Sprintf("read failed: %v", err)}}
	}

	if opts.allPages && imaging.IsPDF(data) {
		return scanPDFPages(ctx, proc, history, path, data, opts)
	}

	return []*scanReport{scanBytes(ctx, proc, history, path, data, opts)}
}

// scanPDFPages rasterizes every page and scans each as its own photo.
func scanPDFPages(ctx context.Context, proc *processor.PhotoProcessor, history *storage.HistoryStore, path string, data []byte, opts scanOptions) []*scanReport {
	pages, err := imaging.RenderPDFPages(data, 0)
	if err != nil {
		return []*scanReport{{Path: path, Error: fmt.Sprintf("PDF render failed: %v", err)}}
	}

	reports := make([]*scanReport, 0, len(pages))
	for i, page := range pages {
		label := fmt.Sprintf("%s#page%d", path, i+1)

		var buf bytes.Buffer
		if err := png.Encode(&buf, page); err != nil {
			reports = append(reports, &scanReport{Path: label, Error: fmt.Sprintf("page encode failed: %v", err)})
			continue
		}
		reports = append(reports, scanBytes(ctx, proc, history, label, buf.Bytes(), opts))
	}
	return reports
}

// scanBytes runs the pipeline on one photo's bytes and records the outcome.
func scanBytes(ctx context.Context, proc *processor.PhotoProcessor, history *storage.HistoryStore, path string, data []byte, opts scanOptions) *scanReport {
	report := &scanReport{Path: path}

	// The pipeline hashes the raw bytes the same way, so history lookups
	// work before decoding anything
	digest := sha256.Sum256(data)
	imageHash := hex.EncodeToString(digest[:])

	if opts.skipDuplicates {
		if prev, err := history.GetScanByHash(ctx, imageHash); err == nil && prev != nil {
			report.Skipped = true
			report.Reason = fmt.Sprintf("already scanned %s", prev.LastScanned.Format("2006-01-02 15:04"))
			return report
		}
	}

	result, err := proc.ProcessPhoto(ctx, &processor.ProcessRequest{
		JobID:       "cli-" + uuid.NewString(),
		Filename:    filepath.Base(path),
		FileSize:    int64(len(data)),
		FileBuffer:  data,
		Title:       opts.title,
		Description: opts.description,
	})
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Result = result

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	if err := history.RecordScan(ctx, &storage.ScanEntry{
		ImageHash:  result.ImageHash,
		Path:       absPath,
		Title:      opts.title,
		Transcript: result.Transcript.CombinedText,
		Language:   result.Language,
		Attributes: result.Attributes,
		Warnings:   result.Warnings,
		Confidence: result.Confidence,
	}); err != nil {
		log.Printf("Warning: could not record %s in history: %v", path, err)
	}

	return report
}

// newScanProcessor builds a pipeline without the worker's storage backends.
func newScanProcessor(c *cli.Context) (*processor.PhotoProcessor, error) {
	langs := strings.Split(c.String("lang"), "+")

	// Multilingual passes want broad coverage; reuse the explicit list when
	// one was given, otherwise fall back to the stock set
	multilingual := langs
	if len(langs) < 2 {
		multilingual = []string{"eng", "spa", "fra", "deu"}
	}

	return processor.NewPhotoProcessor(&processor.ProcessorConfig{
		MaxFileSize:        52428800,
		MaxImageDimension:  2048,
		RecognitionLangs:   langs,
		MultilingualLangs:  multilingual,
		VerticalRotations:  []int{90, 270},
		StrategyTimeout:    20 * time.Second,
		ClassifierTimeout:  5 * time.Second,
		DedupThreshold:     0.85,
		EmbossedDiscount:   0.80,
		AcceptanceFloor:    0.50,
		CorroborationBonus: 0.05,
		KeywordLimit:       10,
		LexiconPath:        c.String("lexicon"),
	})
}

// collectPhotos expands files and directories into a flat list of photo
// paths. Explicit file arguments are accepted as-is; directories are walked
// for known photo extensions.
func collectPhotos(paths []string) ([]string, error) {
	var photos []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", root, err)
		}

		if !info.IsDir() {
			photos = append(photos, root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if photoExtensions[strings.ToLower(filepath.Ext(path))] {
				photos = append(photos, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}
	return photos, nil
}

// printReport renders one scan outcome for terminal reading.
func printReport(r *scanReport) {
	fmt.Println(r.Path)

	if r.Skipped {
		fmt.Printf("  skipped: %s\n\n", r.Reason)
		return
	}
	if r.Error != "" {
		fmt.Printf("  error: %s\n\n", r.Error)
		return
	}

	res := r.Result
	if res.DuplicateOf != "" {
		fmt.Printf("  near-duplicate of scan %s\n", res.DuplicateOf)
	}

	if res.Transcript.CombinedText != "" {
		fmt.Printf("  text (%d spans): %s\n", len(res.Transcript.Spans), res.Transcript.CombinedText)
	} else {
		fmt.Println("  text: none found")
	}
	if res.Language != "" {
		fmt.Printf("  language: %s\n", res.Language)
	}

	for _, attr := range res.Attributes {
		value := attr.Value
		if attr.Unit != "" {
			value += " " + attr.Unit
		}
		fmt.Printf("  %-11s %-30s %.2f via %s\n", attr.Kind, value, attr.Confidence, attr.Source)
	}

	for _, warning := range res.Warnings {
		fmt.Printf("  warning: %s\n", warning.String())
	}

	fmt.Printf("  confidence: %.2f\n\n", res.Confidence)
}
