package source

import (
	"fmt"
	"html"
	"log/slog"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"tldrchinese/internal/domain"
	"tldrchinese/internal/ports"
)

// Parser extracts sections and articles from the newsletter page markup.
type Parser struct {
	textOnly *bluemonday.Policy
	logger   *slog.Logger
}

var _ ports.ContentParser = (*Parser)(nil)

// NewParser builds the parser with the translation-input sanitizer.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Parser{
		// The translator must only ever see text, so every tag (anchors
		// in particular) is stripped from the LLM-bound copy.
		textOnly: bluemonday.StrictPolicy(),
		logger:   logger,
	}
}

// Parse walks the page's section blocks and returns the surviving articles
// in page order. A section without a recognizable header is skipped, and
// sponsored sections and articles are dropped.
func (p *Parser) Parse(rawHTML string) ([]domain.RawSection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	var sections []domain.RawSection
	doc.Find("section").Each(func(_ int, sel *goquery.Selection) {
		header := sel.Find("h3.text-center.font-bold").First()
		if header.Length() == 0 {
			return
		}

		name := strings.TrimSpace(header.Text())
		if IsSponsored(name) {
			p.logger.Debug("dropping sponsored section", "section", name)
			return
		}

		articles := p.extractArticles(sel)
		if len(articles) == 0 {
			return
		}

		sections = append(sections, domain.RawSection{Name: name, Articles: articles})
	})

	if len(sections) == 0 {
		return nil, domain.ErrNoContent
	}

	return sections, nil
}

func (p *Parser) extractArticles(section *goquery.Selection) []domain.RawArticle {
	var articles []domain.RawArticle

	section.Find("article.mt-3").Each(func(_ int, art *goquery.Selection) {
		titleElem := art.Find("h3").First()
		if titleElem.Length() == 0 {
			return
		}

		title := strings.TrimSpace(titleElem.Text())
		if IsSponsored(title) {
			p.logger.Debug("dropping sponsored article", "title", title)
			return
		}

		var bodyHTML string
		if content := art.Find("div.newsletter-html").First(); content.Length() > 0 {
			if inner, err := content.Html(); err == nil {
				bodyHTML = strings.TrimSpace(inner)
			}
		}

		href, _ := art.Find("a.font-bold").First().Attr("href")

		articles = append(articles, domain.RawArticle{
			Title:      title,
			BodyHTML:   bodyHTML,
			BodyForLLM: p.stripMarkup(bodyHTML),
			URL:        strings.TrimSpace(href),
		})
	})

	return articles
}

func (p *Parser) stripMarkup(bodyHTML string) string {
	if bodyHTML == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(p.textOnly.Sanitize(bodyHTML)))
}
