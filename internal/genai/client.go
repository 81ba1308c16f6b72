package genai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/generator"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	DefaultModel       = "gemini-1.5-flash-latest"
	DefaultDailyLimit  = 1500
	DefaultMinInterval = 4 * time.Second
	DefaultMaxFailures = 3
)

// Config holds configuration for the GenAI client.
type Config struct {
	APIKey string
	// Models are used in rotation. Defaults to DefaultModel.
	Models      []string
	DailyLimit  int
	MinInterval time.Duration
	MaxFailures int
}

// RotationConfig derives the rotation limits from c, applying defaults.
func (c Config) RotationConfig() RotationConfig {
	rc := RotationConfig{
		Models:      c.Models,
		DailyLimit:  c.DailyLimit,
		MinInterval: c.MinInterval,
		MaxFailures: c.MaxFailures,
	}
	if len(rc.Models) == 0 {
		rc.Models = []string{DefaultModel}
	}
	if rc.DailyLimit == 0 {
		rc.DailyLimit = DefaultDailyLimit
	}
	if rc.MaxFailures <= 0 {
		rc.MaxFailures = DefaultMaxFailures
	}
	return rc
}

// generateFunc sends prompt to model and returns the response text.
type generateFunc func(ctx context.Context, model, prompt string) (string, error)

// Client suggests column values with the Gemini API. It implements
// generator.ValueSupplier.
type Client struct {
	client   *genai.Client
	state    *RotationState
	generate generateFunc
	retry    RetryOptions
	logger   *zap.Logger
}

var _ generator.ValueSupplier = (*Client)(nil)

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRotationState shares an existing rotation state, e.g. between the
// clients of several requests.
func WithRotationState(s *RotationState) Option {
	return func(c *Client) {
		c.state = s
	}
}

func WithRetryOptions(o RetryOptions) Option {
	return func(c *Client) {
		c.retry = o
	}
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cannot create Gemini client: API key is missing")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := newClient(cfg, nil, opts...)
	c.client = client
	c.generate = c.callModel
	return c, nil
}

func newClient(cfg Config, generate generateFunc, opts ...Option) *Client {
	c := &Client{
		generate: generate,
		retry:    DefaultRetryOptions,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.state == nil {
		c.state = NewRotationState(cfg.RotationConfig(), WithRotationLogger(c.logger))
	}
	return c
}

// State exposes the rotation state.
func (c *Client) State() *RotationState {
	return c.state
}

// Close cleans up the underlying Gemini client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAPIKeyValid checks if the Gemini API key is valid by listing models.
func (c *Client) IsAPIKeyValid(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("gemini client not initialized (likely missing API key)")
	}

	modelIterator := c.client.ListModels(ctx)
	_, err := modelIterator.Next() // Attempt to list one model
	if err != nil {
		if st, ok := status.FromError(err); ok {
			if st.Code() == codes.Unauthenticated || st.Code() == codes.PermissionDenied {
				return fmt.Errorf("invalid Gemini API key or insufficient permissions: %w", err)
			}
		}
		return fmt.Errorf("failed to verify Gemini API key by listing models: %w", err)
	}
	return nil
}

// SuggestValues asks the next model in rotation for req.Count plausible
// values. Each attempt takes a fresh reservation, so retries move on to the
// next model.
func (c *Client) SuggestValues(ctx context.Context, req generator.SuggestionRequest) ([]string, error) {
	if req.Count <= 0 {
		return nil, nil
	}
	prompt := buildPrompt(req)

	text, err := withRetry(ctx, c.retry, c.logger, func(ctx context.Context) (string, error) {
		r, err := c.state.Reserve()
		if err != nil {
			return "", err
		}
		if err := sleep(ctx, r.Wait); err != nil {
			return "", err
		}
		text, err := c.generate(ctx, r.Model, prompt)
		if err != nil {
			c.state.Failure(r.Model)
			return "", fmt.Errorf("model %s: %w", r.Model, err)
		}
		c.state.Success(r.Model)
		c.logger.Debug("Model suggested values", zap.String("model", r.Model),
			zap.String("table", req.Table), zap.String("column", req.Column))
		return text, nil
	})
	if err != nil {
		return nil, err
	}

	content, found := extractContentBetween(text, "<values>", "</values>")
	if !found {
		return nil, fmt.Errorf("tags '<values>' and '</values>' not found in response")
	}
	values := parseValues(content)
	if len(values) > req.Count {
		values = values[:req.Count]
	}
	return values, nil
}

func buildPrompt(req generator.SuggestionRequest) string {
	limit := "no length limit"
	if req.MaxLength > 0 {
		limit = fmt.Sprintf("at most %d characters each", req.MaxLength)
	}
	examples := "none"
	if len(req.Examples) > 0 {
		examples = strings.Join(req.Examples, ", ")
	}
	return fmt.Sprintf(`
	You generate realistic test data for a database.

	**Column Information:**
	- Table Name: %s
	- Column Name: %s
	- Data Type: %s
	- Existing Values: [%s]

	**Instructions:**
	1. Generate %d distinct, plausible values for this column, %s.
	2. The values must be clearly fake. Never reproduce real personal data.
	3. Do not repeat any existing value.
	4. Output one value per line enclosed ONLY in <values>...</values> tags, with no numbering or quotes.

	**Example Output:** <values>
	Northwind Traders
	Contoso Ltd
	</values>
	`, req.Table, req.Column, req.Type, examples, req.Count, limit)
}

// callModel sends prompt using the Gemini API.
func (c *Client) callModel(ctx context.Context, modelName, prompt string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}
	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(0.9)
	model.SetMaxOutputTokens(1024)
	model.SetTopP(0.95)
	model.SetTopK(40)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}
	return getFirstTextPart(resp)
}

// getFirstTextPart extracts the first text part from a Gemini response.
func getFirstTextPart(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		safetyRatings := "none"
		if resp != nil && len(resp.Candidates) > 0 {
			finishReason = resp.Candidates[0].FinishReason.String()
			if resp.Candidates[0].SafetyRatings != nil {
				safetyRatings = fmt.Sprintf("%v", resp.Candidates[0].SafetyRatings)
			}
		}
		return "", fmt.Errorf("empty or incomplete response from Gemini API. FinishReason: %s, SafetyRatings: %s", finishReason, safetyRatings)
	}
	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part type: %T", part)
	}
	return string(text), nil
}

// extractContentBetween extracts content between start and end tags from a string.
func extractContentBetween(text, startTag, endTag string) (string, bool) {
	startIndex := strings.Index(text, startTag)
	if startIndex == -1 {
		return "", false
	}
	startIndex += len(startTag)
	endIndex := strings.Index(text[startIndex:], endTag)
	if endIndex == -1 {
		return "", false
	}
	return strings.TrimSpace(text[startIndex : startIndex+endIndex]), true
}

// parseValues reads one value per line. A single line is read as a
// comma-separated list instead.
func parseValues(s string) []string {
	lines := strings.Split(s, "\n")
	if len(lines) == 1 {
		lines = parseCommaSeparated(s)
	}
	seen := make(map[string]bool)
	var values []string
	for _, l := range lines {
		v := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(l), "-*"))
		v = strings.Trim(v, `"'`)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values
}

// parseCommaSeparated parses a comma-separated string into a slice of trimmed strings.
func parseCommaSeparated(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
