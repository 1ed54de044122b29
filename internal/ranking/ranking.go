// Package ranking looks characters up on the public game ranking page.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
	"github.com/Hongsc0125/donggle-bot/internal/retry"
)

var (
	ErrNotFound      = errors.New("character not found")
	ErrUnexpectedDoc = errors.New("unexpected ranking page layout")
)

const (
	searchPath  = "/ranking/list"
	rowSelector = "table.ranking tbody tr"
	maxPageSize = 1 << 20
)

// Character is one row of the ranking table.
type Character struct {
	Rank     int
	Server   string
	Nickname string
	Class    string
	Power    int64
}

// Client queries the ranking site.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	retry     retry.Config
	logger    *logger.Logger
}

func NewClient(cfg config.RankingConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout()},
		retry:     retry.Config{MaxAttempts: 3, Logger: log},
		logger:    log,
	}
}

// Lookup finds nickname on the ranking page. Transient failures are retried;
// a page without a matching row yields ErrNotFound.
func (c *Client) Lookup(ctx context.Context, nickname string) (*Character, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, ErrNotFound
	}

	doc, err := retry.Do(ctx, c.retry, func(ctx context.Context) (*goquery.Document, error) {
		return c.fetch(ctx, nickname)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ranking for %s: %w", nickname, err)
	}

	ch, err := findCharacter(doc, nickname)
	if err != nil {
		return nil, err
	}

	c.logger.DebugCtx(ctx, "character found",
		logger.Field{Key: "nickname", Value: ch.Nickname},
		logger.Field{Key: "server", Value: ch.Server},
		logger.Field{Key: "rank", Value: ch.Rank})
	return ch, nil
}

func (c *Client) fetch(ctx context.Context, nickname string) (*goquery.Document, error) {
	q := url.Values{"nickname": {nickname}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+searchPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &retry.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to parse ranking page: %w", err))
	}
	return doc, nil
}

// findCharacter scans the table for an exact nickname match. The site does a
// prefix search, so the first row is not necessarily the right one.
func findCharacter(doc *goquery.Document, nickname string) (*Character, error) {
	rows := doc.Find(rowSelector)
	if rows.Length() == 0 {
		return nil, ErrNotFound
	}

	var (
		found  *Character
		rowErr error
	)
	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		ch, err := parseRow(row)
		if err != nil {
			rowErr = err
			return false
		}
		if strings.EqualFold(ch.Nickname, nickname) {
			found = ch
			return false
		}
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// parseRow reads the cells: rank, server, nickname, class, power.
func parseRow(row *goquery.Selection) (*Character, error) {
	cells := row.Find("td")
	if cells.Length() < 5 {
		return nil, fmt.Errorf("%w: row has %d cells", ErrUnexpectedDoc, cells.Length())
	}
	text := func(i int) string { return strings.TrimSpace(cells.Eq(i).Text()) }

	rank, err := strconv.Atoi(digits(text(0)))
	if err != nil {
		return nil, fmt.Errorf("%w: rank %q", ErrUnexpectedDoc, text(0))
	}
	power, err := strconv.ParseInt(digits(text(4)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: power %q", ErrUnexpectedDoc, text(4))
	}

	return &Character{
		Rank:     rank,
		Server:   text(1),
		Nickname: text(2),
		Class:    text(3),
		Power:    power,
	}, nil
}

// digits drops separators like "1,234" or "12위".
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
