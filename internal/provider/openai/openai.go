package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client generates embeddings using OpenAI's API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates an embeddings client. baseURL may be empty for the public API.
func New(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GenerateEmbedding fetches one embedding vector for the given text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string, model string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("model must not be empty")
	}

	requestBody := map[string]interface{}{
		"model": model,
		"input": text,
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embeddings API returned status %d: %s", resp.StatusCode, body)
	}

	var embResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("embeddings API returned no vectors")
	}
	return embResp.Data[0].Embedding, nil
}
