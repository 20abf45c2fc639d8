// Package llm implements the language-model classification stage. It asks a
// hosted model to pick a category from the user's existing category list and
// caches results by normalized description, since card processors repeat the
// same merchant strings across transactions.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/calloway/ledgerflow/internal/engine"
	"github.com/calloway/ledgerflow/internal/model"
	"github.com/calloway/ledgerflow/internal/textsim"
)

const defaultBaseURL = "https://api.anthropic.com/v1/messages"

// Config holds the language-model settings.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	CacheTTL    time.Duration
}

// DefaultConfig returns the standard classifier settings.
func DefaultConfig() Config {
	return Config{
		Model:       "claude-3-5-haiku-20241022",
		BaseURL:     defaultBaseURL,
		Temperature: 0.3,
		MaxTokens:   150,
		Timeout:     30 * time.Second,
		CacheTTL:    15 * time.Minute,
	}
}

// Classifier asks a language model to categorize transactions. It implements
// the pipeline's stage classifier contract: nil result means no signal.
type Classifier struct {
	httpClient *http.Client
	cache      *resultCache
	categoryID map[string]string
	names      []string
	cfg        Config
}

// NewClassifier creates a classifier constrained to the given categories.
// The model may only answer with one of them; anything else is treated as
// no signal rather than a new category.
func NewClassifier(cfg Config, categories []model.Category) (*Classifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm API key is required")
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("llm classifier needs at least one category")
	}

	defaults := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaults.Temperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}

	categoryID := make(map[string]string, len(categories))
	names := make([]string, 0, len(categories))
	for _, cat := range categories {
		categoryID[strings.ToLower(cat.Name)] = cat.ID
		names = append(names, cat.Name)
	}

	return &Classifier{
		cfg:        cfg,
		categoryID: categoryID,
		names:      names,
		cache:      newResultCache(cfg.CacheTTL),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Classify asks the model to categorize one transaction.
func (c *Classifier) Classify(ctx context.Context, txn model.Transaction) (*engine.StageResult, error) {
	cacheKey := textsim.Normalize(txn.DisplayDescription())
	if result, ok := c.cache.get(cacheKey); ok {
		return &result, nil
	}

	content, err := c.complete(ctx, c.buildPrompt(txn))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	categoryID, ok := c.categoryID[strings.ToLower(parsed.Category)]
	if !ok {
		// The model went off the menu. Treat as no signal.
		return nil, nil
	}

	result := engine.StageResult{
		CategoryID: categoryID,
		Confidence: parsed.Confidence,
	}
	c.cache.set(cacheKey, result)
	return &result, nil
}

func (c *Classifier) buildPrompt(txn model.Transaction) string {
	var b strings.Builder
	b.WriteString("Classify this financial transaction into exactly one of the categories listed.\n\n")
	fmt.Fprintf(&b, "Description: %s\n", txn.DisplayDescription())
	fmt.Fprintf(&b, "Amount: %.2f\n", txn.Amount)
	if txn.BankCategory != "" {
		fmt.Fprintf(&b, "Bank-supplied category: %s\n", txn.BankCategory)
	}
	if txn.AccountType != "" {
		fmt.Fprintf(&b, "Account type: %s\n", txn.AccountType)
	}
	fmt.Fprintf(&b, "\nCategories: %s\n", strings.Join(c.names, ", "))
	b.WriteString(`
Respond with JSON only: {"category": "<one of the categories>", "confidence": <0.0-1.0>}`)
	return b.String()
}

// complete sends one messages-API request and returns the text content.
func (c *Classifier) complete(ctx context.Context, prompt string) (string, error) {
	requestBody := map[string]any{
		"model":       c.cfg.Model,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
		"system":      "You are a financial transaction classifier. Respond only with the JSON requested.",
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(response.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return response.Content[0].Text, nil
}

// cleanMarkdownWrapper strips ```json fences some models wrap around JSON.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
