/**
 * Embedding Client for PhotoScan Worker
 *
 * Generates VoyageAI voyage-3 embeddings (1024 dimensions) for consolidated
 * transcripts. The vectors back "find products with similar label text"
 * search over the transcript collection.
 */

package processor

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

// EmbeddingDimensions is the vector size of the transcript collection.
const EmbeddingDimensions = 1024

const embeddingModel = "voyage-3"

// EmbeddingClient handles VoyageAI embedding generation
type EmbeddingClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// EmbeddingRequest represents the request to the embeddings API (single text)
type EmbeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

// BatchEmbeddingRequest represents a batch request (multiple texts)
type BatchEmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// EmbeddingResponse represents the response from the embeddings API
type EmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewEmbeddingClient creates a new embedding client. baseURL is the full
// embeddings endpoint; empty selects the VoyageAI default.
func NewEmbeddingClient(baseURL, apiKey string) (*EmbeddingClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.voyageai.com/v1/embeddings"
	}

	return &EmbeddingClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// GenerateEmbedding generates a 1024-dimensional embedding for a transcript
func (e *EmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	// Truncate text if too long (the API has token limits)
	maxChars := 16000
	if len(text) > maxChars {
		log.Printf("Warning: Text too long (%d chars), truncating to %d chars", len(text), maxChars)
		text = text[:maxChars]
	}

	reqBody := EmbeddingRequest{
		Input: text,
		Model: embeddingModel,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", e.apiKey))

	startTime := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(startTime)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings API returned status %d: %s", resp.StatusCode, string(body))
	}

	var embResp EmbeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("no embedding data in response")
	}

	embedding := embResp.Data[0].Embedding

	log.Printf("Transcript embedding generated: dimensions=%d, tokens=%d, duration=%v",
		len(embedding), embResp.Usage.TotalTokens, duration)

	if len(embedding) != EmbeddingDimensions {
		return nil, fmt.Errorf("unexpected embedding dimensions: got %d, expected %d", len(embedding), EmbeddingDimensions)
	}

	return embedding, nil
}

// GenerateEmbeddingBatch generates embeddings for multiple transcripts.
// Chunks at 100 texts per request (API limit) and falls back to individual
// processing when a batch call fails.
func (e *EmbeddingClient) GenerateEmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}

	log.Printf("Generating batch embeddings for %d texts (model: %s, batch size: 100)", len(texts), embeddingModel)

	const batchSize = 100
	allEmbeddings := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[i:end]

		batchEmbeddings, err := e.generateBatchInternal(ctx, batch)
		if err != nil {
			log.Printf("Batch API call failed for texts %d-%d: %v, falling back to individual processing", i, end-1, err)

			for j, text := range batch {
				embedding, err := e.GenerateEmbedding(ctx, text)
				if err != nil {
					return nil, fmt.Errorf("failed to generate embedding for text %d (fallback): %w", i+j, err)
				}
				allEmbeddings = append(allEmbeddings, embedding)
			}
		} else {
			allEmbeddings = append(allEmbeddings, batchEmbeddings...)
		}
	}

	log.Printf("Batch embedding generation complete: %d embeddings generated", len(allEmbeddings))
	return allEmbeddings, nil
}

// generateBatchInternal makes the actual batch API call
func (e *EmbeddingClient) generateBatchInternal(ctx context.Context, texts []string) ([][]float32, error) {
	maxChars := 16000
	truncatedTexts := make([]string, len(texts))
	for i, text := range texts {
		if len(text) > maxChars {
			log.Printf("Warning: Text %d too long (%d chars), truncating to %d chars", i, len(text), maxChars)
			truncatedTexts[i] = text[:maxChars]
		} else {
			truncatedTexts[i] = text
		}
	}

	reqBody := BatchEmbeddingRequest{
		Input: truncatedTexts,
		Model: embeddingModel,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create batch request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", e.apiKey))

	startTime := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("batch request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(startTime)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings batch API returned status %d: %s", resp.StatusCode, string(body))
	}

	var embResp EmbeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse batch response: %w", err)
	}

	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(embResp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("invalid embedding index: %d", data.Index)
		}
		embeddings[data.Index] = data.Embedding

		if len(data.Embedding) != EmbeddingDimensions {
			return nil, fmt.Errorf("unexpected embedding dimensions for text %d: got %d, expected %d", data.Index, len(data.Embedding), EmbeddingDimensions)
		}
	}

	log.Printf("Batch embedding complete: %d texts, %d tokens, duration=%v",
		len(texts), embResp.Usage.TotalTokens, duration)

	return embeddings, nil
}
