package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// UserAgent is sent with every Fetch request.
const UserAgent = "keyrank/1.0 (+https://github.com/brunobiangulo/keyrank)"

// maxFetchBytes bounds how much of a response body is read.
const maxFetchBytes = 10 << 20

// Fetch downloads pageURL and extracts its article text with readability.
// A nil client uses one with a 30s timeout.
func Fetch(ctx context.Context, client *http.Client, pageURL string) (*ParseResult, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedFormat, u.Scheme)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", u, resp.StatusCode)
	}

	res, err := parseHTML(io.LimitReader(resp.Body, maxFetchBytes), u)
	if err != nil {
		return nil, err
	}
	slog.Debug("parser: fetched", "url", u.String(),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}
