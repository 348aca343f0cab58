package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"tldrchinese/internal/domain"
	"tldrchinese/internal/ports"
)

const userAgent = "Mozilla/5.0 (compatible; tldrchinese/1.0)"

// Fetcher retrieves the raw newsletter page for a calendar date.
type Fetcher struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ ports.SourceFetcher = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; the default carries a 15s timeout.
func NewFetcher(baseURL string, client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Fetcher{baseURL: strings.TrimSuffix(baseURL, "/"), client: client, logger: logger}
}

// Fetch issues a single GET for the date's page. No retries here; the
// assembler decides whether to fall back.
func (f *Fetcher) Fetch(ctx context.Context, date string) (string, error) {
	pageURL := fmt.Sprintf("%s/%s", f.baseURL, date)
	f.logger.Info("fetching source page", "url", pageURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: timeout fetching %s", domain.ErrSourceUnavailable, pageURL)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("source returned non-200", "url", pageURL, "status", resp.StatusCode)
		return "", fmt.Errorf("%w: %s returned %s", domain.ErrSourceUnavailable, pageURL, resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", domain.ErrSourceUnavailable, err)
	}

	return string(raw), nil
}
