/**
 * Storage Manager for PhotoScan Worker
 *
 * Coordinates storage operations across PostgreSQL (extraction rows) and
 * Qdrant (transcript vectors). Qdrant point IDs derive from the image hash,
 * so re-uploads of the same photo overwrite their vector in place and the
 * two systems stay consistent without cross-store transactions.
 */

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/shelfwise/catalog/photoscan-worker/internal/attributes"
	"github.com/shelfwise/catalog/photoscan-worker/internal/errors"
	"github.com/shelfwise/catalog/photoscan-worker/internal/recognition"
)

// StorageManager coordinates PostgreSQL and Qdrant operations
type StorageManager struct {
	postgres *PostgresClient
	vectors  *VectorStore
}

// ExtractionInput is one completed pipeline run ready for persistence.
type ExtractionInput struct {
	JobID       string
	ImageHash   string
	Filename    string
	MimeType    string
	FileSize    int64
	Title       string
	Description string
	Transcript  string
	Language    string
	Confidence  float64
	Spans       []recognition.ConsolidatedSpan
	Attributes  []attributes.Attribute
	Warnings    []errors.Warning
	Embedding   []float32 // optional; empty skips the vector store
}

// ExtractionOutput identifies the stored extraction.
type ExtractionOutput struct {
	ID            string
	JobID         string
	ImageHash     string
	QdrantPointID string
}

// ExtractionSearchResult is one similarity hit hydrated with its row.
type ExtractionSearchResult struct {
	ExtractionID    string
	JobID           string
	ImageHash       string
	Title           string
	Transcript      string
	SimilarityScore float64
	CreatedAt       time.Time
}

// NewStorageManager creates a new storage manager
func NewStorageManager(postgresURL string, qdrantAddress string, qdrantCollection string) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	vectors, err := NewVectorStore(qdrantAddress, qdrantCollection)
	if err != nil {
		postgres.Close() // Cleanup on failure
		return nil, fmt.Errorf("failed to initialize Qdrant client: %w", err)
	}

	return &StorageManager{
		postgres: postgres,
		vectors:  vectors,
	}, nil
}

// StoreExtraction persists one extraction across both systems. The vector is
// written first under a point ID derived from the image hash; if the row
// write fails, the point is keyed to the same photo and is reclaimed by the
// next successful attempt, so no rollback delete is needed.
func (sm *StorageManager) StoreExtraction(ctx context.Context, input *ExtractionInput) (*ExtractionOutput, error) {
	if input == nil {
		return nil, fmt.Errorf("input is required")
	}

	if input.JobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	if input.ImageHash == "" {
		return nil, fmt.Errorf("image hash is required")
	}

	if len(input.Embedding) > 0 && len(input.Embedding) != VectorDimensions {
		return nil, fmt.Errorf("invalid embedding dimensions: expected %d, got %d", VectorDimensions, len(input.Embedding))
	}

	// Step 1: Store the transcript vector, when one was generated.
	keywords := valuesOfKind(input.Attributes, attributes.KindKeyword)

	qdrantPointID := ""
	if len(input.Embedding) > 0 {
		qdrantPointID = PointIDForImage(input.ImageHash)

		point := &TranscriptPoint{
			ID:        qdrantPointID,
			Embedding: input.Embedding,
			Payload: map[string]interface{}{
				"image_hash": input.ImageHash,
				"job_id":     input.JobID,
				"language":   input.Language,
				"keywords":   keywords,
			},
		}

		if err := sm.vectors.UpsertTranscript(ctx, point); err != nil {
			return nil, fmt.Errorf("failed to store transcript vector in Qdrant: %w", err)
		}
	}

	// Step 2: Marshal the JSONB columns. PostgreSQL rejects some Unicode
	// escape sequences (e.g. \u0000), so the payloads are sanitized first.
	spansJSON, err := marshalForPostgres(input.Spans)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal spans: %w", err)
	}

	attributesJSON, err := marshalForPostgres(input.Attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attributes: %w", err)
	}

	warningsJSON, err := marshalForPostgres(input.Warnings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal warnings: %w", err)
	}

	// Step 3: Upsert the extraction row keyed by image hash.
	extractionID, err := sm.postgres.StoreExtraction(ctx, &ExtractionRecord{
		ID:             uuid.New().String(),
		JobID:          input.JobID,
		ImageHash:      input.ImageHash,
		Filename:       input.Filename,
		MimeType:       input.MimeType,
		FileSize:       input.FileSize,
		Title:          input.Title,
		Description:    input.Description,
		Transcript:     input.Transcript,
		Language:       input.Language,
		SpansJSON:      spansJSON,
		AttributesJSON: attributesJSON,
		Colors:         valuesOfKind(input.Attributes, attributes.KindColor),
		Materials:      valuesOfKind(input.Attributes, attributes.KindMaterial),
		Features:       valuesOfKind(input.Attributes, attributes.KindFeature),
		Keywords:       keywords,
		WarningsJSON:   warningsJSON,
		Confidence:     input.Confidence,
		QdrantPointID:  qdrantPointID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store extraction in PostgreSQL: %w", err)
	}

	return &ExtractionOutput{
		ID:            extractionID,
		JobID:         input.JobID,
		ImageHash:     input.ImageHash,
		QdrantPointID: qdrantPointID,
	}, nil
}

// GetExtractionByHash retrieves an extraction row by image hash.
func (sm *StorageManager) GetExtractionByHash(ctx context.Context, imageHash string) (*ExtractionSummary, error) {
	return sm.postgres.GetExtractionByHash(ctx, imageHash)
}

// GetRecentExtractions lists the most recently updated extractions.
func (sm *StorageManager) GetRecentExtractions(ctx context.Context, limit int) ([]*ExtractionSummary, error) {
	return sm.postgres.GetRecentExtractions(ctx, limit)
}

// SearchSimilarExtractions performs transcript similarity search and
// hydrates each hit with its extraction row.
func (sm *StorageManager) SearchSimilarExtractions(ctx context.Context, queryVector []float32, limit int) ([]*ExtractionSearchResult, error) {
	if len(queryVector) != VectorDimensions {
		return nil, fmt.Errorf("invalid query vector dimensions: expected %d, got %d", VectorDimensions, len(queryVector))
	}

	points, err := sm.vectors.SearchTranscripts(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	results := make([]*ExtractionSearchResult, 0, len(points))
	for _, point := range points {
		imageHash, ok := point.Payload["image_hash"].(string)
		if !ok {
			continue
		}

		summary, err := sm.postgres.GetExtractionByHash(ctx, imageHash)
		if err != nil {
			continue // Skip hits whose row is gone
		}

		results = append(results, &ExtractionSearchResult{
			ExtractionID:    summary.ID,
			JobID:           summary.JobID,
			ImageHash:       summary.ImageHash,
			Title:           summary.Title,
			Transcript:      summary.Transcript,
			SimilarityScore: float64(point.Score),
			CreatedAt:       summary.CreatedAt,
		})
	}

	return results, nil
}

// UpdateJobStatus updates scan job status in PostgreSQL
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetJobByID retrieves a scan job by ID
func (sm *StorageManager) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	return sm.postgres.GetJobByID(ctx, jobID)
}

// GetStats returns statistics from both systems
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	pgStats := sm.postgres.GetStats()

	qdrantStats, err := sm.vectors.CollectionInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Qdrant stats: %w", err)
	}

	return map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
		"qdrant": qdrantStats,
	}, nil
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	var pgErr, qdErr error

	if sm.postgres != nil {
		pgErr = sm.postgres.Close()
	}

	if sm.vectors != nil {
		qdErr = sm.vectors.Close()
	}

	if pgErr != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", pgErr)
	}

	if qdErr != nil {
		return fmt.Errorf("failed to close Qdrant: %w", qdErr)
	}

	return nil
}

// valuesOfKind collects the values of one multi-valued attribute kind for
// the typed array columns.
func valuesOfKind(attrs []attributes.Attribute, kind string) []string {
	values := make([]string, 0, 4)
	for _, attr := range attrs {
		if attr.Kind == kind {
			values = append(values, attr.Value)
		}
	}
	return values
}

// marshalForPostgres marshals v and strips Unicode escape sequences that
// PostgreSQL JSONB rejects.
func marshalForPostgres(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return sanitizeJSONForPostgres(data), nil
}

// sanitizeJSONForPostgres removes problematic Unicode escape sequences from
// JSON. PostgreSQL JSONB rejects \u0000 outright and some other control
// character escapes cause issues, so they are stripped or replaced.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	// Remove null character escapes (\u0000)
	nullPattern := regexp.MustCompile(`\\u0000`)
	result := nullPattern.ReplaceAll(jsonBytes, []byte{})

	// Replace other control character escapes (\u0001-\u001F) with space
	controlPattern := regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
	result = controlPattern.ReplaceAll(result, []byte(" "))

	return result
}
