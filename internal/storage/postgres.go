/**
 * PostgreSQL Client for PhotoScan Worker
 *
 * Handles database operations for scan job persistence and extraction
 * storage. Extractions are keyed by image hash so re-uploads of the same
 * photo update the existing row instead of accumulating duplicates.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	_ "github.com/lib/pq"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a scan job status update
type JobUpdate struct {
	JobID            string
	Status           string
	Confidence       float64
	ProcessingTimeMs int64
	ExtractionID     string
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

// ExtractionRecord is one extraction row ready for persistence. JSON columns
// arrive pre-marshaled and sanitized by the storage manager.
type ExtractionRecord struct {
	ID             string
	JobID          string
	ImageHash      string
	Filename       string
	MimeType       string
	FileSize       int64
	Title          string
	Description    string
	Transcript     string
	Language       string
	SpansJSON      []byte
	AttributesJSON []byte
	Colors         []string
	Materials      []string
	Features       []string
	Keywords       []string
	WarningsJSON   []byte
	Confidence     float64
	QdrantPointID  string
}

// ExtractionSummary is the read-side projection of an extraction row.
type ExtractionSummary struct {
	ID            string          `json:"id"`
	JobID         string          `json:"jobId"`
	ImageHash     string          `json:"imageHash"`
	Filename      string          `json:"filename"`
	Title         string          `json:"title,omitempty"`
	Transcript    string          `json:"transcript"`
	Language      string          `json:"language,omitempty"`
	Attributes    json.RawMessage `json:"attributes"`
	Warnings      json.RawMessage `json:"warnings,omitempty"`
	Confidence    float64         `json:"confidence"`
	QdrantPointID string          `json:"qdrantPointId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// sanitizeConfidence rounds confidence to 4 decimal places to prevent
// PostgreSQL float precision errors. Float64 representations like
// 0.9632000000000001 fail NUMERIC(5,4) casts, so confidence is rounded to
// 4 decimals and clamped to [0.0, 1.0] before it reaches the driver.
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpdateJobStatus updates scan job status in the database
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	sanitizedConfidence := sanitizeConfidence(update.Confidence)

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	// UPSERT so the worker can create the job record when the API tier has
	// not written it yet. Confidence goes through NUMERIC(5,4) to enforce
	// bounded precision on the stored value.
	query := `
		INSERT INTO photoscan.scan_jobs (
			id, user_id, filename, mime_type, file_size,
			status, confidence, processing_time_ms, extraction_id,
			error_code, error_message, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, COALESCE($12, 'anonymous'), COALESCE($9, 'unknown.jpg'),
			COALESCE($10, 'application/octet-stream'), COALESCE($11, 0),
			$2, NULLIF($3::NUMERIC(5,4), 0), NULLIF($4, 0),
			CASE WHEN $5 = '' THEN NULL ELSE $5::uuid END,
			NULLIF($6, ''), NULLIF($7, ''),
			COALESCE($8::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			confidence = COALESCE(NULLIF(EXCLUDED.confidence::NUMERIC(5,4), 0), photoscan.scan_jobs.confidence),
			processing_time_ms = COALESCE(NULLIF(EXCLUDED.processing_time_ms, 0), photoscan.scan_jobs.processing_time_ms),
			extraction_id = CASE
				WHEN EXCLUDED.extraction_id IS NOT NULL THEN EXCLUDED.extraction_id
				ELSE photoscan.scan_jobs.extraction_id
			END,
			error_code = NULLIF(EXCLUDED.error_code, ''),
			error_message = NULLIF(EXCLUDED.error_message, ''),
			metadata = COALESCE(EXCLUDED.metadata, photoscan.scan_jobs.metadata),
			filename = COALESCE(EXCLUDED.filename, photoscan.scan_jobs.filename),
			mime_type = COALESCE(EXCLUDED.mime_type, photoscan.scan_jobs.mime_type),
			file_size = COALESCE(NULLIF(EXCLUDED.file_size, 0), photoscan.scan_jobs.file_size),
			user_id = COALESCE(EXCLUDED.user_id, photoscan.scan_jobs.user_id),
			updated_at = NOW()
		RETURNING id
	`

	// Extract additional fields from metadata if present
	var filename, mimeType, userID string
	var fileSize int64
	if update.Metadata != nil {
		if fn, ok := update.Metadata["filename"].(string); ok {
			filename = fn
		}
		if mt, ok := update.Metadata["mimeType"].(string); ok {
			mimeType = mt
		}
		if fs, ok := update.Metadata["fileSize"].(int64); ok {
			fileSize = fs
		} else if fs, ok := update.Metadata["fileSize"].(float64); ok {
			fileSize = int64(fs)
		}
		if uid, ok := update.Metadata["userId"].(string); ok {
			userID = uid
		}
	}

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,            // $1 - job id
		update.Status,           // $2 - status
		sanitizedConfidence,     // $3 - confidence (sanitized to 4 decimals)
		update.ProcessingTimeMs, // $4 - processing_time_ms
		update.ExtractionID,     // $5 - extraction_id
		update.ErrorCode,        // $6 - error_code
		update.ErrorMessage,     // $7 - error_message
		metadataJSON,            // $8 - metadata
		filename,                // $9 - filename
		mimeType,                // $10 - mime_type
		fileSize,                // $11 - file_size
		userID,                  // $12 - user_id
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", update.JobID)
	}

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s, confidence=%.4f): %w",
			update.JobID, update.Status, sanitizedConfidence, err)
	}

	return nil
}

// StoreExtraction upserts an extraction row keyed by image hash. Re-uploads
// of the same photo refresh the existing row and return its original ID, so
// callers always address one extraction per distinct image.
func (p *PostgresClient) StoreExtraction(ctx context.Context, record *ExtractionRecord) (string, error) {
	if record.ImageHash == "" {
		return "", fmt.Errorf("image hash is required")
	}

	if record.JobID == "" {
		return "", fmt.Errorf("job ID is required")
	}

	query := `
		INSERT INTO photoscan.extractions (
			id, job_id, image_hash, filename, mime_type, file_size,
			title, description, transcript, language,
			spans, attributes, colors, materials, features, keywords,
			warnings, confidence, qdrant_point_id,
			created_at, updated_at
		) VALUES (
			$1::uuid, $2, $3, $4, $5, $6,
			NULLIF($7, ''), NULLIF($8, ''), $9, NULLIF($10, ''),
			COALESCE($11::jsonb, '[]'::jsonb), COALESCE($12::jsonb, '[]'::jsonb),
			$13, $14, $15, $16,
			COALESCE($17::jsonb, '[]'::jsonb), $18::NUMERIC(5,4),
			CASE WHEN $19 = '' THEN NULL ELSE $19::uuid END,
			NOW(), NOW()
		)
		ON CONFLICT (image_hash) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			filename = EXCLUDED.filename,
			mime_type = EXCLUDED.mime_type,
			file_size = EXCLUDED.file_size,
			title = COALESCE(EXCLUDED.title, photoscan.extractions.title),
			description = COALESCE(EXCLUDED.description, photoscan.extractions.description),
			transcript = EXCLUDED.transcript,
			language = EXCLUDED.language,
			spans = EXCLUDED.spans,
			attributes = EXCLUDED.attributes,
			colors = EXCLUDED.colors,
			materials = EXCLUDED.materials,
			features = EXCLUDED.features,
			keywords = EXCLUDED.keywords,
			warnings = EXCLUDED.warnings,
			confidence = EXCLUDED.confidence,
			qdrant_point_id = COALESCE(EXCLUDED.qdrant_point_id, photoscan.extractions.qdrant_point_id),
			updated_at = NOW()
		RETURNING id
	`

	var extractionID string
	err := p.db.QueryRowContext(
		ctx,
		query,
		record.ID,
		record.JobID,
		record.ImageHash,
		record.Filename,
		record.MimeType,
		record.FileSize,
		record.Title,
		record.Description,
		record.Transcript,
		record.Language,
		record.SpansJSON,
		record.AttributesJSON,
		pq.Array(record.Colors),
		pq.Array(record.Materials),
		pq.Array(record.Features),
		pq.Array(record.Keywords),
		record.WarningsJSON,
		sanitizeConfidence(record.Confidence),
		record.QdrantPointID,
	).Scan(&extractionID)

	if err != nil {
		return "", fmt.Errorf("failed to store extraction (hash=%.12s): %w", record.ImageHash, err)
	}

	return extractionID, nil
}

// GetExtractionByHash retrieves an extraction by its image hash.
func (p *PostgresClient) GetExtractionByHash(ctx context.Context, imageHash string) (*ExtractionSummary, error) {
	if imageHash == "" {
		return nil, fmt.Errorf("image hash is required")
	}

	query := `
		SELECT
			id, job_id, image_hash, filename,
			COALESCE(title, ''), transcript, COALESCE(language, ''),
			attributes, warnings, COALESCE(confidence, 0),
			COALESCE(qdrant_point_id::text, ''),
			created_at, updated_at
		FROM photoscan.extractions
		WHERE image_hash = $1
	`

	var summary ExtractionSummary
	err := p.db.QueryRowContext(ctx, query, imageHash).Scan(
		&summary.ID,
		&summary.JobID,
		&summary.ImageHash,
		&summary.Filename,
		&summary.Title,
		&summary.Transcript,
		&summary.Language,
		&summary.Attributes,
		&summary.Warnings,
		&summary.Confidence,
		&summary.QdrantPointID,
		&summary.CreatedAt,
		&summary.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("extraction not found for hash: %.12s", imageHash)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}

	return &summary, nil
}

// GetRecentExtractions lists the most recently updated extractions.
func (p *PostgresClient) GetRecentExtractions(ctx context.Context, limit int) ([]*ExtractionSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT
			id, job_id, image_hash, filename,
			COALESCE(title, ''), transcript, COALESCE(language, ''),
			attributes, warnings, COALESCE(confidence, 0),
			COALESCE(qdrant_point_id::text, ''),
			created_at, updated_at
		FROM photoscan.extractions
		ORDER BY updated_at DESC
		LIMIT $1
	`

	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list extractions: %w", err)
	}
	defer rows.Close()

	var summaries []*ExtractionSummary
	for rows.Next() {
		var summary ExtractionSummary
		if err := rows.Scan(
			&summary.ID,
			&summary.JobID,
			&summary.ImageHash,
			&summary.Filename,
			&summary.Title,
			&summary.Transcript,
			&summary.Language,
			&summary.Attributes,
			&summary.Warnings,
			&summary.Confidence,
			&summary.QdrantPointID,
			&summary.CreatedAt,
			&summary.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan extraction row: %w", err)
		}
		summaries = append(summaries, &summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate extractions: %w", err)
	}

	return summaries, nil
}

// GetJobByID retrieves a scan job by ID
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id,
			user_id,
			filename,
			mime_type,
			file_size,
			status,
			confidence,
			processing_time_ms,
			extraction_id,
			error_code,
			error_message,
			metadata,
			created_at,
			updated_at
		FROM photoscan.scan_jobs
		WHERE id = $1::uuid
	`

	var (
		id, userID, filename               string
		mimeType, status                   sql.NullString
		fileSize                           sql.NullInt64
		confidence                         sql.NullFloat64
		processingTimeMs                   sql.NullInt64
		extractionID, errorCode, errorMsg  sql.NullString
		metadataJSON                       []byte
		createdAt, updatedAt               time.Time
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&id, &userID, &filename, &mimeType, &fileSize, &status,
		&confidence, &processingTimeMs, &extractionID,
		&errorCode, &errorMsg,
		&metadataJSON, &createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	// Parse metadata
	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	result := map[string]interface{}{
		"id":        id,
		"userId":    userID,
		"filename":  filename,
		"status":    status.String,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
		"metadata":  metadata,
	}

	if mimeType.Valid {
		result["mimeType"] = mimeType.String
	}
	if fileSize.Valid {
		result["fileSize"] = fileSize.Int64
	}
	if confidence.Valid {
		result["confidence"] = confidence.Float64
	}
	if processingTimeMs.Valid {
		result["processingTimeMs"] = processingTimeMs.Int64
	}
	if extractionID.Valid {
		result["extractionId"] = extractionID.String
	}
	if errorCode.Valid {
		result["errorCode"] = errorCode.String
	}
	if errorMsg.Valid {
		result["errorMessage"] = errorMsg.String
	}

	return result, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
