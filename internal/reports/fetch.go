package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/Hongsc0125/donggle-bot/internal/config"
	"github.com/Hongsc0125/donggle-bot/internal/retry"
)

var (
	ErrInvalidURL   = errors.New("url must start with http:// or https://")
	ErrPageTooLarge = errors.New("page too large")
	ErrNotHTML      = errors.New("page is not html")
	// ErrForbiddenAddress is returned when the URL resolves to a loopback,
	// private, link-local or otherwise non-public address.
	ErrForbiddenAddress = errors.New("address is not public")
)

// page is a fetched HTML document.
type page struct {
	URL  string
	HTML string
}

type fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

func newFetcher(cfg config.ReportsConfig) *fetcher {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !cfg.AllowPrivateHosts {
		dialer.Control = publicOnly
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &fetcher{
		client:    &http.Client{Timeout: cfg.FetchTimeout(), Transport: transport},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxPageBytes,
	}
}

// publicOnly runs after DNS resolution for every connection, redirects
// included.
func publicOnly(_, address string, _ syscall.RawConn) error {
	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, address)
	}
	if !isPublic(addrPort.Addr()) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, addrPort.Addr())
	}
	return nil
}

// cgnat is 100.64.0.0/10, not covered by IsPrivate.
var cgnat = netip.MustParsePrefix("100.64.0.0/10")

func isPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		cgnat.Contains(addr):
		return false
	}
	return true
}

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

func (f *fetcher) fetch(ctx context.Context, rawURL string) (*page, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(rawURL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.StatusError{Code: resp.StatusCode, Body: resp.Status}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "text/html") {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, ct)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d bytes limit", ErrPageTooLarge, resp.ContentLength, f.maxBytes)
	}

	// читаем на байт больше лимита, чтобы отличить усечение
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes limit", ErrPageTooLarge, f.maxBytes)
	}

	return &page{URL: resp.Request.URL.String(), HTML: string(body)}, nil
}
