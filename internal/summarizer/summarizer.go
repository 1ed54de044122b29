// Package summarizer condenses report pages through a chat-completions API.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/retry"
)

var (
	ErrEmptySummary = errors.New("summary is empty")
	ErrDisabled     = errors.New("summarizer is disabled")
)

const (
	completionsPath = "/chat/completions"
	// maxInputRunes режет длинные страницы до отправки
	maxInputRunes = 12000
	systemPrompt  = "당신은 게임 커뮤니티의 보고서를 요약하는 도우미입니다. " +
		"핵심 내용을 한국어로 5줄 이내의 글머리표로 정리하세요."
)

// Summarizer is what the reports builder needs.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	cfg     config.SummarizerConfig
	apiURL  string
	http    *http.Client
	limiter *rate.Limiter
	retry   retry.Config
	logger  *logger.Logger
}

func NewClient(cfg config.SummarizerConfig, log *logger.Logger) *Client {
	return &Client{
		cfg:     cfg,
		apiURL:  strings.TrimRight(cfg.BaseURL, "/") + completionsPath,
		http:    &http.Client{Timeout: cfg.Timeout()},
		limiter: newLimiter(cfg.RequestsPerMinute),
		retry:   retry.Config{MaxAttempts: 3, Logger: log},
		logger:  log,
	}
}

// Summarize returns a short Korean summary of text. 429 and 5xx responses
// are retried with backoff.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if !c.cfg.Enabled {
		return "", ErrDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptySummary
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: truncateRunes(text, maxInputRunes)},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := retry.Do(ctx, c.retry, func(ctx context.Context) (*chatResponse, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		return c.doRequest(ctx, body)
	})
	if err != nil {
		return "", fmt.Errorf("summarize failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptySummary
	}
	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", ErrEmptySummary
	}

	c.logger.DebugCtx(ctx, "summary generated",
		logger.Field{Key: "model", Value: resp.Model},
		logger.Field{Key: "prompt_tokens", Value: resp.Usage.PromptTokens},
		logger.Field{Key: "completion_tokens", Value: resp.Usage.CompletionTokens})
	return summary, nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) (*chatResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		c.logger.WarnCtx(ctx, "summarizer API returned error status",
			logger.Field{Key: "status_code", Value: httpResp.StatusCode})
		return nil, &retry.StatusError{Code: httpResp.StatusCode, Body: string(respBody)}
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if resp.Error != nil {
		return nil, retry.Permanent(fmt.Errorf("API error: %s (code: %s): %s",
			resp.Error.Type, resp.Error.Code, resp.Error.Message))
	}
	return &resp, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
