package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"apigen/internal/domain/entity"
	"apigen/internal/domain/repository"
	"apigen/internal/infrastructure/metrics"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.0-flash"

	maxResponseBytes = 32 << 20
)

type GeminiGenerator struct {
	apiKey         string
	baseURL        string
	model          string
	client         *http.Client
	attemptTimeout time.Duration
	retry          RetryPolicy
	logger         *slog.Logger
}

var _ repository.LLMGenerator = (*GeminiGenerator)(nil)

type GeminiOption func(*GeminiGenerator)

func WithHTTPClient(c *http.Client) GeminiOption {
	return func(g *GeminiGenerator) { g.client = c }
}

func WithRetryPolicy(p RetryPolicy) GeminiOption {
	return func(g *GeminiGenerator) { g.retry = p }
}

// WithAttemptTimeout bounds a single request. The caller's context still
// bounds the whole call including retries.
func WithAttemptTimeout(d time.Duration) GeminiOption {
	return func(g *GeminiGenerator) { g.attemptTimeout = d }
}

func WithLogger(l *slog.Logger) GeminiOption {
	return func(g *GeminiGenerator) { g.logger = l }
}

func NewGeminiGenerator(apiKey, baseURL, model string, opts ...GeminiOption) *GeminiGenerator {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	g := &GeminiGenerator{
		apiKey:         apiKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		model:          model,
		client:         &http.Client{},
		attemptTimeout: 2 * time.Minute,
		retry:          DefaultRetryPolicy(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *geminiError `json:"error"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Generate performs the generateContent exchange and returns
// candidates[0].content.parts[0].text verbatim.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	metrics.IncLLMRequest(g.model)
	start := time.Now()

	var text string
	err := Retry(ctx, g.retry, func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			metrics.IncLLMRetry(g.model)
			g.logger.Warn("retrying gemini request", "model", g.model, "attempt", attempt+1)
		}
		t, err := g.generateOnce(ctx, prompt)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	metrics.ObserveLLMDuration(g.model, time.Since(start))
	if err != nil {
		metrics.IncError("llm", entity.ErrorKind(err))
		return "", err
	}
	return text, nil
}

func (g *GeminiGenerator) generateOnce(parent context.Context, prompt string) (string, error) {
	ctx := parent
	if g.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, g.attemptTimeout)
		defer cancel()
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", g.transportError(parent, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			g.logger.Debug("close gemini response body", "err", err)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", g.transportError(parent, err)
	}

	var envelope geminiResponse
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && envelope.Error != nil {
			msg = envelope.Error.Message
		}
		msg = g.redact(msg)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return "", fmt.Errorf("%w: %w: status %d: %s", entity.ErrUpstreamProtocol, errUnavailable, resp.StatusCode, msg)
		}
		return "", fmt.Errorf("%w: status %d: %s", entity.ErrUpstreamProtocol, resp.StatusCode, msg)
	}

	if decodeErr != nil {
		return "", fmt.Errorf("%w: malformed envelope: %w", entity.ErrUpstreamProtocol, decodeErr)
	}
	if envelope.Error != nil {
		return "", fmt.Errorf("%w: gemini api error: %s", entity.ErrUpstreamProtocol, g.redact(envelope.Error.Message))
	}
	if len(envelope.Candidates) == 0 ||
		len(envelope.Candidates[0].Content.Parts) == 0 ||
		envelope.Candidates[0].Content.Parts[0].Text == nil {
		return "", fmt.Errorf("%w: response has no candidates[0].content.parts[0].text", entity.ErrUpstreamProtocol)
	}

	return *envelope.Candidates[0].Content.Parts[0].Text, nil
}

// transportError drops the request URL (it carries the key) and keeps the
// caller's context error visible so an expired deadline is not retried.
func (g *GeminiGenerator) transportError(parent context.Context, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if ctxErr := parent.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", entity.ErrTransport, g.redactedEndpoint(), ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: attempt timed out after %s", entity.ErrTransport, g.redactedEndpoint(), g.attemptTimeout)
	}
	return fmt.Errorf("%w: %s: %s", entity.ErrTransport, g.redactedEndpoint(), g.redact(err.Error()))
}

func (g *GeminiGenerator) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, url.QueryEscape(g.apiKey))
}

func (g *GeminiGenerator) redactedEndpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
}

func (g *GeminiGenerator) redact(s string) string {
	if g.apiKey == "" {
		return s
	}
	return strings.ReplaceAll(s, g.apiKey, "REDACTED")
}
