/**
 * Matting Client for PhotoScan Worker
 *
 * Sends product photos to the matting service for background removal before
 * recognition. Busy backgrounds (lifestyle shots, shelf photos) drown the
 * text strategies in noise; a matted photo isolates the product.
 *
 * Matting Flow:
 * 1. Worker decodes and size-caps the uploaded photo
 * 2. Worker calls the matting API /matting/api/images/remove-background
 * 3. API returns the matted image as base64 PNG
 * 4. Worker re-decodes the matted bytes and feeds the normalizer
 *
 * Matting is best-effort: any failure here degrades to a warning and the
 * original photo goes through the pipeline untouched.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"
)

// MattingClient handles communication with the matting service
type MattingClient struct {
	baseURL    string
	httpClient *http.Client
}

// MatteRequest represents a background-removal request
type MatteRequest struct {
	ImageBuffer []byte                 // Image content
	Filename    string                 // Original filename
	MimeType    string                 // MIME type (e.g., image/jpeg)
	JobID       string                 // PhotoScan job ID for tracking
	Metadata    map[string]interface{} // Additional metadata
}

// MatteResponse represents the response from the matting endpoint
type MatteResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Image          string `json:"image"` // Base64 encoded matted image
		Format         string `json:"format"`
		Width          int    `json:"width"`
		Height         int    `json:"height"`
		ProcessingTime int64  `json:"processing_time"` // milliseconds
	} `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewMattingClient creates a new matting client
func NewMattingClient(baseURL string) *MattingClient {
	return &MattingClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // Matting models can take time on large photos
		},
	}
}

// HealthCheck verifies the matting service is available
func (c *MattingClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("matting service health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("matting service health check returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// RemoveBackground sends a photo for matting and returns the matted image bytes
func (c *MattingClient) RemoveBackground(ctx context.Context, req *MatteRequest) ([]byte, error) {
	if len(req.ImageBuffer) == 0 {
		return nil, fmt.Errorf("image buffer is required: received empty buffer")
	}

	if req.Filename == "" {
		return nil, fmt.Errorf("filename is required: received empty string")
	}

	if req.JobID == "" {
		return nil, fmt.Errorf("job_id is required: identifies the scan requesting matting")
	}

	log.Printf("[MattingClient] Removing background: filename=%s, size=%d bytes, mimeType=%s, jobId=%s",
		req.Filename, len(req.ImageBuffer), req.MimeType, req.JobID)

	// Create multipart form request
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", req.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file part: %w", err)
	}
	bytesWritten, err := part.Write(req.ImageBuffer)
	if err != nil {
		return nil, fmt.Errorf("failed to write image data to form: %w", err)
	}
	if bytesWritten != len(req.ImageBuffer) {
		return nil, fmt.Errorf("incomplete image write: expected %d bytes, wrote %d bytes", len(req.ImageBuffer), bytesWritten)
	}

	if err := writer.WriteField("job_id", req.JobID); err != nil {
		return nil, fmt.Errorf("failed to write job_id field: %w", err)
	}

	if len(req.Metadata) > 0 {
		metadataJSON, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata to JSON: %w", err)
		}
		if err := writer.WriteField("metadata", string(metadataJSON)); err != nil {
			return nil, fmt.Errorf("failed to write metadata field: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/matting/api/images/remove-background", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to matting service failed after %v: %w", time.Since(startTime), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("matting failed with HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result MatteResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse matting response: %w (raw response: %s)", err, string(respBody))
	}

	if !result.Success {
		return nil, fmt.Errorf("matting returned success=false: %s", result.Error)
	}

	if result.Result.Image == "" {
		return nil, fmt.Errorf("matting succeeded but returned an empty image")
	}

	matted, err := base64.StdEncoding.DecodeString(result.Result.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to decode matted image: %w", err)
	}

	log.Printf("[MattingClient] Background removed: jobId=%s, format=%s, %dx%d, duration=%v",
		req.JobID, result.Result.Format, result.Result.Width, result.Result.Height, time.Since(startTime))

	return matted, nil
}
