package images

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tldrchinese/internal/ports"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// srcKeywords marks <img> paths that usually hold the story's lead image.
var srcKeywords = []string{"article", "post", "feature", "main", "hero"}

// Resolver fetches third-party article pages and picks a representative
// image. Every failure resolves to "no image"; nothing propagates.
type Resolver struct {
	client *http.Client
	logger *slog.Logger
}

var _ ports.ImageResolver = (*Resolver)(nil)

// NewResolver wires an HTTP client. The default tolerates the broken TLS
// chains some article hosts present.
func NewResolver(client *http.Client, logger *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Resolver{client: client, logger: logger}
}

// Resolve returns the best image URL for the article page, or "" when none
// can be found.
func (r *Resolver) Resolve(ctx context.Context, articleURL string) string {
	if articleURL == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("image fetch failed", "url", articleURL, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("image fetch non-200", "url", articleURL, "status", resp.StatusCode)
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}

	return pickImage(doc, articleURL)
}

// pickImage applies the priority order: social-preview metadata first, then
// an in-body image, then a heuristic path match anywhere on the page.
func pickImage(doc *goquery.Document, articleURL string) string {
	for _, prop := range []string{"og:image", "twitter:image"} {
		if content := metaContent(doc, prop); content != "" {
			return absoluteURL(articleURL, content)
		}
	}

	if src, ok := doc.Find("article img, main img").First().Attr("src"); ok && src != "" {
		return absoluteURL(articleURL, src)
	}

	var match string
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			return true
		}
		lower := strings.ToLower(src)
		for _, keyword := range srcKeywords {
			if strings.Contains(lower, keyword) {
				match = absoluteURL(articleURL, src)
				return false
			}
		}
		return true
	})

	return match
}

func metaContent(doc *goquery.Document, prop string) string {
	selector := `meta[property="` + prop + `"], meta[name="` + prop + `"]`
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

// absoluteURL resolves a possibly relative image source against the article
// page it was found on.
func absoluteURL(pageURL, src string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return src
	}
	ref, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}
