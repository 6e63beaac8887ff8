/**
 * Classifier Client - Remote Product Category Classification
 *
 * This client delegates category decisions to the classifier service.
 * No hardcoded taxonomy - the classifier owns the category tree and picks
 * the best label for a product's combined text:
 * - Taxonomy updates land without redeploying the worker
 * - Model selection and fallback chains live in one place
 * - The worker's lexicon voting only runs when this service is down
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shelfwise/catalog/photoscan-worker/internal/logging"
)

// ClassifierClient handles communication with the classifier service
type ClassifierClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClassificationRequest represents a request to classify product text
type ClassificationRequest struct {
	Text     string                 `json:"text"`            // Combined product text
	TopK     int                    `json:"topK,omitempty"`  // Optional: number of alternatives
	Metadata map[string]interface{} `json:"metadata"`        // Optional metadata
	JobID    string                 `json:"jobId,omitempty"` // Optional: photoscan job ID for tracking
}

// ClassificationResponse represents the response from the classify endpoint
type ClassificationResponse struct {
	Success bool                   `json:"success"`
	Data    ClassificationData     `json:"data"`
	Message string                 `json:"message"`
	Meta    map[string]interface{} `json:"meta"`
}

// ClassificationData contains the predicted category
type ClassificationData struct {
	Category       string          `json:"category"`
	Confidence     float64         `json:"confidence"`
	Alternatives   []CategoryScore `json:"alternatives,omitempty"`
	ModelUsed      string          `json:"modelUsed"`
	ProcessingTime int64           `json:"processingTime"` // milliseconds
}

// CategoryScore is one ranked category candidate
type CategoryScore struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// NewClassifierClient creates a new classifier client
func NewClassifierClient(baseURL string) *ClassifierClient {
	return &ClassifierClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.NewLogger("ClassifierClient"),
	}
}

// Name identifies the provider in warnings and logs
func (c *ClassifierClient) Name() string {
	return "classifier"
}

// Classify labels product text with a category
func (c *ClassifierClient) Classify(ctx context.Context, text string) (string, float64, error) {
	resp, err := c.classify(ctx, &ClassificationRequest{
		Text: text,
		Metadata: map[string]interface{}{
			"source":    "photoscan-worker",
			"timestamp": time.Now().Unix(),
		},
	})
	if err != nil {
		return "", 0, err
	}
	return resp.Data.Category, resp.Data.Confidence, nil
}

func (c *ClassifierClient) classify(ctx context.Context, req *ClassificationRequest) (*ClassificationResponse, error) {
	c.logger.Debug("Requesting classification",
		"textLength", len(req.Text))

	// Internal endpoint (rate-limit exempt for pipeline throughput)
	endpoint := fmt.Sprintf("%s/api/internal/classify/product-text", c.baseURL)

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Source", "photoscan-worker")
	httpReq.Header.Set("X-Request-ID", fmt.Sprintf("classify-%d", time.Now().UnixNano()))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to classifier failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned error status %d: %s", resp.StatusCode, string(body))
	}

	var classResp ClassificationResponse
	if err := json.Unmarshal(body, &classResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if !classResp.Success {
		return nil, fmt.Errorf("classifier operation failed: %s", classResp.Message)
	}

	c.logger.Info("Classification complete",
		"category", classResp.Data.Category,
		"confidence", classResp.Data.Confidence,
		"modelUsed", classResp.Data.ModelUsed,
		"processingTime", classResp.Data.ProcessingTime)

	return &classResp, nil
}

// HealthCheck verifies the classifier service is available
func (c *ClassifierClient) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/api/health", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
