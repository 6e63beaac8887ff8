/**
 * Photo Processor for PhotoScan Worker
 *
 * Core extraction pipeline that processes product photos:
 * 1. Load photo (from buffer or URL)
 * 2. Decode and bound the raster (PDF product sheets render first)
 * 3. Optional background matting (best effort)
 * 4. Fan out recognition strategies over normalized variants
 * 5. Consolidate spans into a ranked transcript
 * 6. Extract and reconcile product attributes
 * 7. Embed the transcript and persist the extraction
 * 8. Publish to the catalog service (best effort)
 *
 * Only decode, validation and storage failures abort a run. Everything else
 * degrades into warnings carried on the result.
 */

package processor

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shelfwise/catalog/photoscan-worker/internal/attributes"
	"github.com/shelfwise/catalog/photoscan-worker/internal/clients"
	"github.com/shelfwise/catalog/photoscan-worker/internal/errors"
	"github.com/shelfwise/catalog/photoscan-worker/internal/imaging"
	"github.com/shelfwise/catalog/photoscan-worker/internal/logging"
	"github.com/shelfwise/catalog/photoscan-worker/internal/recognition"
	"github.com/shelfwise/catalog/photoscan-worker/internal/storage"
)

// PhotoProcessorInterface defines the processor contract
type PhotoProcessorInterface interface {
	ProcessPhoto(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error
}

// PhotoProcessor implements the photo extraction pipeline
type PhotoProcessor struct {
	config          *ProcessorConfig
	storage         *storage.StorageManager
	embeddingClient *EmbeddingClient
	classifier      *clients.ClassifierClient
	matting         *clients.MattingClient
	catalog         *clients.CatalogClient
	normalizer      *imaging.Normalizer
	runner          *recognition.Runner
	consolidator    *recognition.Consolidator
	detector        *recognition.LanguageDetector
	engine          *attributes.Engine
	reconciler      *attributes.Reconciler
	duplicates      *imaging.DuplicateIndex
	httpClient      *http.Client
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	MaxFileSize         int64
	MaxImageDimension   int
	RenderDPI           int // PDF product sheets, 0 selects the imaging default
	StorageManager      *storage.StorageManager
	EmbeddingServiceURL string
	EmbeddingAPIKey     string
	ClassifierURL       string
	MattingURL          string
	CatalogURL          string
	RecognitionLangs    []string
	MultilingualLangs   []string
	VerticalRotations   []int
	StrategyTimeout     time.Duration
	ClassifierTimeout   time.Duration
	DedupThreshold      float64
	EmbossedDiscount    float64
	AcceptanceFloor     float64
	CorroborationBonus  float64
	KeywordLimit        int
	LexiconPath         string
	Logger              *logging.Logger
}

// ProcessRequest represents a photo processing request
type ProcessRequest struct {
	JobID       string                 `json:"jobId"`
	UserID      string                 `json:"userId"`
	Filename    string                 `json:"filename"`
	MimeType    string                 `json:"mimeType"`
	FileSize    int64                  `json:"fileSize"`
	FileURL     string                 `json:"fileUrl,omitempty"`
	FileBuffer  []byte                 `json:"-"`
	Title       string                 `json:"title,omitempty"`
	Description string                 `json:"description,omitempty"`
	SkipMatting bool                   `json:"skipMatting,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// ProcessResult represents the outcome of one extraction run
type ProcessResult struct {
	JobID            string                 `json:"jobId"`
	ExtractionID     string                 `json:"extractionId,omitempty"`
	ImageHash        string                 `json:"imageHash"`
	Transcript       recognition.Transcript `json:"transcript"`
	Language         string                 `json:"language,omitempty"`
	Attributes       []attributes.Attribute `json:"attributes"`
	Warnings         []errors.Warning       `json:"warnings,omitempty"`
	DuplicateOf      string                 `json:"duplicateOf,omitempty"`
	Confidence       float64                `json:"confidence"`
	EmbeddingStored  bool                   `json:"embeddingStored"`
	ProcessingTimeMs int64                  `json:"processingTimeMs"`
}

// NewPhotoProcessor creates a new photo processor
func NewPhotoProcessor(config *ProcessorConfig) (*PhotoProcessor, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.NewLogger("photo-processor")
	}

	lexicon, err := attributes.LoadLexicon(config.LexiconPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load attribute lexicon: %w", err)
	}

	p := &PhotoProcessor{
		config:       config,
		storage:      config.StorageManager,
		normalizer:   imaging.NewNormalizer(config.VerticalRotations),
		consolidator: recognition.NewConsolidator(config.DedupThreshold, config.CorroborationBonus),
		reconciler:   attributes.NewReconciler(config.AcceptanceFloor),
		duplicates:   imaging.NewDuplicateIndex(0),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}

	if p.storage == nil {
		log.Printf("WARNING: storage manager not configured")
		log.Printf("Extractions will not be persisted")
	}

	// Recognition strategies share one tesseract provider; the provider
	// allocates a fresh client per pass so concurrent strategies never share
	// native state.
	provider := recognition.NewTesseractProvider()
	p.detector = recognition.NewLanguageDetector(recognition.LanguagesFromHints(config.MultilingualLangs))
	strategies := []*recognition.Strategy{
		recognition.NewHorizontalStrategy(provider, config.RecognitionLangs),
		recognition.NewVerticalStrategy(provider, config.RecognitionLangs),
		recognition.NewEmbossedStrategy(provider, config.RecognitionLangs, config.EmbossedDiscount),
		recognition.NewMultilingualStrategy(provider, config.MultilingualLangs, p.detector),
	}
	p.runner = recognition.NewRunner(strategies, config.StrategyTimeout, logger)

	// Optional collaborators. A missing URL disables the feature; an
	// unreachable service only logs a warning because every call site
	// degrades instead of failing.
	if config.ClassifierURL != "" {
		p.classifier = clients.NewClassifierClient(config.ClassifierURL)

		healthCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.classifier.HealthCheck(healthCtx); err != nil {
			log.Printf("WARNING: Classifier service health check failed: %v", err)
			log.Printf("Category extraction will fall back to keyword matching")
		}
		cancel()
	} else {
		log.Printf("Skipping classifier integration: CLASSIFIER_URL not configured")
	}

	if config.MattingURL != "" {
		p.matting = clients.NewMattingClient(config.MattingURL)

		healthCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.matting.HealthCheck(healthCtx); err != nil {
			log.Printf("WARNING: Matting service health check failed: %v", err)
			log.Printf("Photos will be recognized without background removal")
		}
		cancel()
	} else {
		log.Printf("Skipping matting integration: MATTING_URL not configured")
	}

	if config.CatalogURL != "" {
		p.catalog = clients.NewCatalogClient(config.CatalogURL)

		healthCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.catalog.HealthCheck(healthCtx); err != nil {
			log.Printf("WARNING: Catalog service health check failed: %v", err)
			log.Printf("Extractions will be stored but not published")
		}
		cancel()
	} else {
		log.Printf("Skipping catalog integration: CATALOG_URL not configured")
	}

	if config.EmbeddingAPIKey != "" {
		embeddingClient, err := NewEmbeddingClient(config.EmbeddingServiceURL, config.EmbeddingAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
		}
		p.embeddingClient = embeddingClient
	} else {
		log.Printf("Skipping transcript embeddings: EMBEDDING_API_KEY not configured")
	}

	var classifierProvider attributes.ClassifierProvider
	if p.classifier != nil {
		classifierProvider = p.classifier
	}
	p.engine = attributes.NewDefaultEngine(lexicon, classifierProvider, config.ClassifierTimeout, config.KeywordLimit, logger)

	return p, nil
}

// ProcessPhoto runs the full extraction pipeline for one product photo
func (p *PhotoProcessor) ProcessPhoto(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	startTime := time.Now()

	if req == nil {
		return nil, errors.NewValidationError("", "request", "is required")
	}
	if req.JobID == "" {
		return nil, errors.NewValidationError("", "jobId", "is required")
	}

	result := &ProcessResult{
		JobID:      req.JobID,
		Attributes: []attributes.Attribute{},
	}

	// Step 1: Load the photo
	log.Printf("[Job %s] Step 1: Loading photo (%s, %d bytes)", req.JobID, req.Filename, req.FileSize)
	data, err := p.loadFile(ctx, req)
	if err != nil {
		return nil, err
	}

	if p.config.MaxFileSize > 0 && int64(len(data)) > p.config.MaxFileSize {
		return nil, errors.NewValidationError(req.JobID, "fileSize",
			fmt.Sprintf("exceeds limit of %d bytes", p.config.MaxFileSize))
	}

	detectedMime := detectMimeTypeFromMagicBytes(data)
	if detectedMime != "" && detectedMime != req.MimeType {
		log.Printf("[Job %s] MIME type corrected: %s -> %s", req.JobID, req.MimeType, detectedMime)
		req.MimeType = detectedMime
	}

	// Step 2: Decode into a bounded raster. Product sheets arrive as PDFs
	// and render their first page before decoding.
	log.Printf("[Job %s] Step 2: Decoding photo (%s)", req.JobID, req.MimeType)
	var asset *imaging.Asset
	if imaging.IsPDF(data) {
		page, renderErr := imaging.RenderPDFPage(data, 0, p.config.RenderDPI)
		if renderErr != nil {
			return nil, errors.NewDecodeError(req.JobID, "pdf", renderErr)
		}
		asset = imaging.AssetFromImage(page, "pdf", data, p.config.MaxImageDimension)
	} else {
		asset, err = imaging.DecodeAsset(req.JobID, data, p.config.MaxImageDimension)
		if err != nil {
			return nil, err
		}
	}
	result.ImageHash = asset.SHA256
	log.Printf("[Job %s] Decoded %s %dx%d (hash %.12s)", req.JobID, asset.Format, asset.Width, asset.Height, asset.SHA256)

	// Step 3: Near-duplicate check against photos seen by this process.
	// Exact re-uploads dedup on the SHA-256 UPSERT in storage; this catches
	// re-encoded shots of the same product. The run still completes so the
	// caller always gets a transcript, the match is carried as metadata.
	if matchedID, found := p.duplicates.Insert(req.JobID, asset.Image); found {
		log.Printf("[Job %s] Step 3: Near-duplicate of job %s", req.JobID, matchedID)
		result.DuplicateOf = matchedID
	} else {
		log.Printf("[Job %s] Step 3: No near-duplicate found (%d indexed)", req.JobID, p.duplicates.Size())
	}

	// Step 4: Optional background matting. Failures degrade to a warning and
	// recognition proceeds on the original photo.
	recognitionAsset := asset
	if p.matting != nil && !req.SkipMatting {
		log.Printf("[Job %s] Step 4: Removing background", req.JobID)
		mattedBytes, mattingErr := p.matting.RemoveBackground(ctx, &clients.MatteRequest{
			ImageBuffer: data,
			Filename:    req.Filename,
			MimeType:    req.MimeType,
			JobID:       req.JobID,
			Metadata:    req.Metadata,
		})
		if mattingErr != nil {
			log.Printf("[Job %s] Matting failed, continuing with original photo: %v", req.JobID, mattingErr)
			result.Warnings = append(result.Warnings,
				errors.WarningFromError("matting", errors.NewProviderUnavailableError(req.JobID, "matting", mattingErr)))
		} else if matted, decodeErr := imaging.DecodeAsset(req.JobID, mattedBytes, p.config.MaxImageDimension); decodeErr != nil {
			log.Printf("[Job %s] Matted photo not decodable, continuing with original: %v", req.JobID, decodeErr)
			result.Warnings = append(result.Warnings, errors.WarningFromError("matting", decodeErr))
		} else {
			// Keep the original bytes as the dedup identity; only the pixels
			// fed to recognition change.
			recognitionAsset = &imaging.Asset{
				Image:  matted.Image,
				Width:  matted.Width,
				Height: matted.Height,
				Format: asset.Format,
				SHA256: asset.SHA256,
			}
		}
	} else if req.SkipMatting {
		log.Printf("[Job %s] Step 4: Matting skipped by request", req.JobID)
	}

	// Step 5: Recognition strategies over normalized variants
	variants := p.normalizer.Variants(recognitionAsset)
	log.Printf("[Job %s] Step 5: Running recognition strategies (%d variants)", req.JobID, len(variants))
	spans, strategyWarnings := p.runner.Run(ctx, req.JobID, variants)
	result.Warnings = append(result.Warnings, strategyWarnings...)
	log.Printf("[Job %s] Recognition produced %d spans, %d degraded strategies", req.JobID, len(spans), len(strategyWarnings))

	// Step 6: Consolidate spans into a ranked transcript
	log.Printf("[Job %s] Step 6: Consolidating transcript", req.JobID)
	result.Transcript = p.consolidator.Consolidate(spans)
	if result.Transcript.CombinedText != "" && p.detector != nil {
		result.Language = p.detector.Detect(result.Transcript.CombinedText)
	}
	log.Printf("[Job %s] Transcript has %d spans (language %q)", req.JobID, len(result.Transcript.Spans), result.Language)

	// Step 7: Attribute extraction over transcript, title and description
	log.Printf("[Job %s] Step 7: Extracting attributes", req.JobID)
	inputs := []attributes.Input{
		{Source: attributes.SourceTranscript, Text: result.Transcript.CombinedText},
		{Source: attributes.SourceTitle, Text: req.Title},
		{Source: attributes.SourceDescription, Text: req.Description},
	}
	candidates, extractionWarnings := p.engine.Run(ctx, req.JobID, inputs)
	result.Warnings = append(result.Warnings, extractionWarnings...)

	// Step 8: Reconcile candidates into the final attribute set
	result.Attributes = p.reconciler.Reconcile(candidates)
	log.Printf("[Job %s] Step 8: Reconciled %d candidates into %d attributes", req.JobID, len(candidates), len(result.Attributes))

	if len(result.Attributes) == 0 {
		result.Warnings = append(result.Warnings, errors.Warning{
			Code:    errors.ErrorNoAttributesFound,
			Source:  "pipeline",
			Message: "No attributes could be extracted from the photo or its metadata",
		})
	}

	result.Confidence = overallConfidence(result.Transcript, result.Attributes)

	// Step 9: Embed the transcript for similarity search (best effort)
	var embedding []float32
	if p.embeddingClient != nil && result.Transcript.CombinedText != "" {
		log.Printf("[Job %s] Step 9: Generating transcript embedding", req.JobID)
		embedding, err = p.embeddingClient.GenerateEmbedding(ctx, result.Transcript.CombinedText)
		if err != nil {
			log.Printf("[Job %s] Embedding failed, extraction will not be searchable: %v", req.JobID, err)
			result.Warnings = append(result.Warnings, errors.Warning{
				Code:    errors.ErrorAPICallFailed,
				Source:  "embedding",
				Message: err.Error(),
			})
			embedding = nil
		}
	}

	// Step 10: Persist the extraction
	if p.storage != nil {
		log.Printf("[Job %s] Step 10: Storing extraction", req.JobID)
		stored, storeErr := p.storage.StoreExtraction(ctx, &storage.ExtractionInput{
			JobID:       req.JobID,
			ImageHash:   result.ImageHash,
			Filename:    req.Filename,
			MimeType:    req.MimeType,
			FileSize:    int64(len(data)),
			Title:       req.Title,
			Description: req.Description,
			Transcript:  result.Transcript.CombinedText,
			Language:    result.Language,
			Confidence:  result.Confidence,
			Spans:       result.Transcript.Spans,
			Attributes:  result.Attributes,
			Warnings:    result.Warnings,
			Embedding:   embedding,
		})
		if storeErr != nil {
			return nil, errors.NewStorageFailedError(req.JobID, storeErr)
		}
		result.ExtractionID = stored.ID
		result.EmbeddingStored = stored.QdrantPointID != ""
	} else {
		log.Printf("[Job %s] Step 10: Skipping persistence: storage not configured", req.JobID)
	}

	// Step 11: Publish to the catalog service (best effort)
	if p.catalog != nil {
		log.Printf("[Job %s] Step 11: Publishing to catalog", req.JobID)
		if _, pubErr := p.catalog.PublishExtraction(ctx, p.catalogRequest(req, result)); pubErr != nil {
			log.Printf("[Job %s] Catalog publication failed: %v", req.JobID, pubErr)
			result.Warnings = append(result.Warnings, errors.Warning{
				Code:    errors.ErrorAPICallFailed,
				Source:  "catalog",
				Message: pubErr.Error(),
			})
		}
	}

	result.ProcessingTimeMs = time.Since(startTime).Milliseconds()
	log.Printf("[Job %s] Extraction complete: %d spans, %d attributes, %d warnings in %dms",
		req.JobID, len(result.Transcript.Spans), len(result.Attributes), len(result.Warnings), result.ProcessingTimeMs)

	return result, nil
}

// UpdateJobStatus updates job status in storage
func (p *PhotoProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error {
	if p.storage == nil {
		return nil
	}

	update := &storage.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Metadata: metadata,
	}

	// Extract specific fields from metadata if present
	if metadata != nil {
		if confidence, ok := metadata["confidence"].(float64); ok {
			update.Confidence = confidence
		}
		if processingTime, ok := metadata["processingTime"].(int64); ok {
			update.ProcessingTimeMs = processingTime
		}
		if extractionID, ok := metadata["extractionId"].(string); ok {
			update.ExtractionID = extractionID
		}
		if errorCode, ok := metadata["errorCode"].(string); ok {
			update.ErrorCode = errorCode
		}
		if errorMsg, ok := metadata["error"].(string); ok {
			if update.ErrorCode == "" {
				update.ErrorCode = string(errors.ErrorQueueFailed)
			}
			update.ErrorMessage = errorMsg
		}
	}

	return p.storage.UpdateJobStatus(ctx, update)
}

// catalogRequest converts a process result into the catalog wire format.
func (p *PhotoProcessor) catalogRequest(req *ProcessRequest, result *ProcessResult) *clients.CatalogEnrichmentRequest {
	attrs := make([]clients.CatalogAttribute, 0, len(result.Attributes))
	for _, attr := range result.Attributes {
		attrs = append(attrs, clients.CatalogAttribute{
			Type:       attr.Kind,
			Value:      attr.Value,
			Unit:       attr.Unit,
			Confidence: attr.Confidence,
			Source:     attr.Source,
		})
	}

	warnings := make([]string, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		warnings = append(warnings, w.String())
	}

	return &clients.CatalogEnrichmentRequest{
		ImageHash:  result.ImageHash,
		Title:      req.Title,
		Transcript: result.Transcript.CombinedText,
		Language:   result.Language,
		Attributes: attrs,
		Warnings:   warnings,
		JobID:      req.JobID,
	}
}

// loadFile loads the photo from URL or buffer
func (p *PhotoProcessor) loadFile(ctx context.Context, req *ProcessRequest) ([]byte, error) {
	if len(req.FileBuffer) > 0 {
		return req.FileBuffer, nil
	}

	if req.FileURL != "" {
		return p.downloadFileFromURL(ctx, req.JobID, req.FileURL)
	}

	return nil, errors.NewValidationError(req.JobID, "file", "neither buffer nor URL provided")
}

// downloadFileFromURL downloads the photo with retry and exponential backoff
func (p *PhotoProcessor) downloadFileFromURL(ctx context.Context, jobID string, fileURL string) ([]byte, error) {
	const maxRetries = 5
	backoff := time.Second

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		data, err := p.fetchURL(ctx, fileURL)
		if err == nil {
			log.Printf("[Job %s] Downloaded %d bytes from %s (attempt %d)", jobID, len(data), fileURL, attempt)
			return data, nil
		}

		lastErr = err
		log.Printf("[Job %s] Download attempt %d/%d failed: %v", jobID, attempt, maxRetries, err)

		if attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.NewValidationError(jobID, "fileUrl", fmt.Sprintf("download cancelled: %v", ctx.Err()))
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > 32*time.Second {
			backoff = 32 * time.Second
		}
	}

	return nil, errors.NewValidationError(jobID, "fileUrl", fmt.Sprintf("download failed after %d attempts: %v", maxRetries, lastErr))
}

// fetchURL performs a single download attempt bounded by MaxFileSize.
func (p *PhotoProcessor) fetchURL(ctx context.Context, fileURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	limit := p.config.MaxFileSize
	if limit <= 0 {
		limit = 52428800
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds size limit of %d bytes", limit)
	}

	return data, nil
}

// detectMimeTypeFromMagicBytes detects the real MIME type from file content.
// Upload tiers sometimes pass application/octet-stream for photos shot on
// mobile, so the sniffed type wins over the declared one.
func detectMimeTypeFromMagicBytes(data []byte) string {
	if len(data) < 12 {
		return ""
	}

	switch {
	case data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	case strings.HasPrefix(string(data[:8]), "\x89PNG\r\n\x1a\n"):
		return "image/png"
	case strings.HasPrefix(string(data[:6]), "GIF87a") || strings.HasPrefix(string(data[:6]), "GIF89a"):
		return "image/gif"
	case data[0] == 'B' && data[1] == 'M':
		return "image/bmp"
	case strings.HasPrefix(string(data[:4]), "II*\x00") || strings.HasPrefix(string(data[:4]), "MM\x00*"):
		return "image/tiff"
	case string(data[8:12]) == "WEBP":
		return "image/webp"
	case strings.HasPrefix(string(data[:5]), "%PDF-"):
		return "application/pdf"
	default:
		return ""
	}
}

// overallConfidence blends transcript and attribute confidence into one
// job-level score. Attribute quality dominates because attributes are what
// downstream listing enrichment consumes.
func overallConfidence(transcript recognition.Transcript, attrs []attributes.Attribute) float64 {
	transcriptScore := 0.0
	if len(transcript.Spans) > 0 {
		total := 0.0
		for _, span := range transcript.Spans {
			total += span.EffectiveConfidence
		}
		transcriptScore = total / float64(len(transcript.Spans))
	}

	attributeScore := 0.0
	if len(attrs) > 0 {
		total := 0.0
		for _, attr := range attrs {
			total += attr.Confidence
		}
		attributeScore = total / float64(len(attrs))
	}

	switch {
	case len(transcript.Spans) == 0 && len(attrs) == 0:
		return 0.0
	case len(transcript.Spans) == 0:
		return attributeScore
	case len(attrs) == 0:
		return transcriptScore
	default:
		return transcriptScore*0.4 + attributeScore*0.6
	}
}
