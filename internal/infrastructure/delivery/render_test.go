package delivery

import (
	"strings"
	"testing"
	"time"

	"tldrchinese/internal/domain"
)

func sampleDigest(t *testing.T) *domain.Digest {
	t.Helper()
	day, err := time.Parse(domain.DateLayout, "2026-08-31")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return &domain.Digest{
		Date:     day,
		Headline: "TLDR科技日报：测试头条",
		Sections: []domain.Section{
			{Name: "Big Tech & Startups", Articles: []domain.Article{
				{
					Title:    "芯片新闻",
					Body:     "正文内容，包含<b>加粗</b>。",
					URL:      "https://example.com/chips",
					ImageURL: "https://cdn.example.com/chips.png",
				},
				{
					Title: "无图新闻",
					Body:  "没有配图的文章。",
					URL:   "https://example.com/plain",
				},
			}},
		},
	}
}

func TestRenderNewsletterHTML(t *testing.T) {
	t.Parallel()

	html, err := RenderNewsletterHTML(sampleDigest(t), "https://tldrchinese.example/", "https://api.tldrchinese.example")
	if err != nil {
		t.Fatalf("render error: %v", err)
	}

	for _, want := range []string{
		"2026-08-31",
		"Big Tech &amp; Startups",
		"芯片新闻",
		"https://cdn.example.com/chips.png",
		`href="https://example.com/chips"`,
		"正文内容，包含<b>加粗</b>。",
		"https://tldrchinese.example/newsletter/2026-08-31",
		"tldrchinese.example/newsletter/2026-08-31",
		"https://api.tldrchinese.example/api/unsubscribe/%recipient.id%",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered email missing %q", want)
		}
	}
}

func TestRenderNewsletterHTMLOmitsEmptyImage(t *testing.T) {
	t.Parallel()

	digest := sampleDigest(t)
	digest.Sections[0].Articles = digest.Sections[0].Articles[1:]

	html, err := RenderNewsletterHTML(digest, "https://tldrchinese.example", "https://api.tldrchinese.example")
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if strings.Contains(html, "<img") {
		t.Fatal("article without an image must not render an img tag")
	}
}

func TestRenderNewsletterHTMLBodyMarkupNotEscaped(t *testing.T) {
	t.Parallel()

	html, err := RenderNewsletterHTML(sampleDigest(t), "https://tldrchinese.example", "https://api.tldrchinese.example")
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if strings.Contains(html, "&lt;b&gt;") {
		t.Fatal("stored article markup must pass through unescaped")
	}
}
