/**
 * Catalog Client for PhotoScan Worker
 *
 * Publishes finished extraction results to the catalog service for:
 * - Listing enrichment (prices, dimensions, materials on the product page)
 * - Search indexing over extracted keywords
 * - Merchandising review queues
 *
 * Publication is optional: workers without CATALOG_URL keep results in the
 * extraction history only.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// CatalogClient handles communication with the catalog service
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

// CatalogAttribute is one extracted attribute in catalog wire format
type CatalogAttribute struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Unit       string  `json:"unit,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// CatalogEnrichmentRequest represents a listing enrichment request
type CatalogEnrichmentRequest struct {
	ImageHash  string             `json:"imageHash"`
	Title      string             `json:"title,omitempty"`
	Transcript string             `json:"transcript,omitempty"`
	Language   string             `json:"language,omitempty"`
	Attributes []CatalogAttribute `json:"attributes"`
	Warnings   []string           `json:"warnings,omitempty"`
	JobID      string             `json:"jobId,omitempty"`
}

// CatalogEnrichmentResponse represents the response from publishing results
type CatalogEnrichmentResponse struct {
	Success   bool   `json:"success"`
	ListingID string `json:"listingId,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewCatalogClient creates a new catalog client
func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// HealthCheck verifies the catalog service is available
func (c *CatalogClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog health check returned status %d", resp.StatusCode)
	}

	return nil
}

// PublishExtraction sends an extraction result to the catalog
func (c *CatalogClient) PublishExtraction(ctx context.Context, req *CatalogEnrichmentRequest) (*CatalogEnrichmentResponse, error) {
	if req.ImageHash == "" {
		return nil, fmt.Errorf("image hash is required")
	}

	// Nothing worth a listing update
	if len(req.Attributes) == 0 && req.Transcript == "" {
		log.Printf("[Catalog] No attributes or transcript for %s, skipping publication", req.ImageHash)
		return &CatalogEnrichmentResponse{
			Success: true,
			Message: "Nothing to publish, skipped",
		}, nil
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal enrichment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/catalog/api/listings/enrich", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create enrichment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Tenant context headers (system-level for pipeline publication)
	httpReq.Header.Set("X-Company-ID", "shelfwise")
	httpReq.Header.Set("X-App-ID", "photoscan")
	httpReq.Header.Set("X-User-ID", "system")

	log.Printf("[Catalog] Publishing extraction: imageHash=%s, attributes=%d, transcriptLength=%d",
		req.ImageHash, len(req.Attributes), len(req.Transcript))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to publish extraction to catalog: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalog returned error status %d: %s", resp.StatusCode, string(body))
	}

	var result CatalogEnrichmentResponse
	if err := json.Unmarshal(body, &result); err != nil {
		// Non-fatal: the listing update may still have landed
		log.Printf("[Catalog] Warning: failed to parse response: %v", err)
		return &CatalogEnrichmentResponse{
			Success: true,
			Message: "Extraction published (response parse warning)",
		}, nil
	}

	if result.Success {
		log.Printf("[Catalog] Extraction published: listingId=%s", result.ListingID)
	} else {
		log.Printf("[Catalog] Extraction publication failed: %s", result.Error)
	}

	return &result, nil
}
