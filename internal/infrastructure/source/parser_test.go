package source

import (
	"errors"
	"strings"
	"testing"

	"tldrchinese/internal/domain"
)

const samplePage = `
<html><body>
<section>
  <h3 class="text-center font-bold">Big Tech &amp; Startups</h3>
  <article class="mt-3">
    <a class="font-bold" href="https://example.com/story-1"><h3>OpenAI ships a new model (5 minute read)</h3></a>
    <div class="newsletter-html">The model is <a href="https://example.com/ref">faster</a> and cheaper.</div>
  </article>
  <article class="mt-3">
    <a class="font-bold" href="https://example.com/story-2"><h3>Sponsor: Buy our cloud</h3></a>
    <div class="newsletter-html">Paid placement.</div>
  </article>
</section>
<section>
  <h3 class="text-center font-bold">TLDR Sponsor Picks</h3>
  <article class="mt-3">
    <a class="font-bold" href="https://example.com/ad"><h3>An ad</h3></a>
    <div class="newsletter-html">Buy things.</div>
  </article>
</section>
<section>
  <h3 class="text-center font-bold">Science &amp; Futuristic Technology</h3>
  <article class="mt-3">
    <a class="font-bold" href="https://example.com/story-3"><h3>Fusion milestone (3 minute read)</h3></a>
    <div class="newsletter-html">Net energy gain was sustained.</div>
  </article>
</section>
</body></html>`

func TestParseDropsSponsoredContent(t *testing.T) {
	t.Parallel()

	sections, err := NewParser(nil).Parse(samplePage)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	for _, section := range sections {
		if IsSponsored(section.Name) {
			t.Fatalf("sponsored section survived: %s", section.Name)
		}
	}

	if sections[0].Name != "Big Tech & Startups" {
		t.Fatalf("unexpected first section: %s", sections[0].Name)
	}
	if len(sections[0].Articles) != 1 {
		t.Fatalf("sponsored article should be dropped, got %d articles", len(sections[0].Articles))
	}
	if sections[1].Name != "Science & Futuristic Technology" {
		t.Fatalf("unexpected second section: %s", sections[1].Name)
	}
}

func TestParseExtractsArticleFields(t *testing.T) {
	t.Parallel()

	sections, err := NewParser(nil).Parse(samplePage)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	article := sections[0].Articles[0]
	if article.Title != "OpenAI ships a new model (5 minute read)" {
		t.Fatalf("unexpected title: %s", article.Title)
	}
	if article.URL != "https://example.com/story-1" {
		t.Fatalf("unexpected url: %s", article.URL)
	}
	if !strings.Contains(article.BodyHTML, `<a href="https://example.com/ref">`) {
		t.Fatalf("body should keep the original markup: %s", article.BodyHTML)
	}
	if strings.Contains(article.BodyForLLM, "<a") {
		t.Fatalf("translator input must not contain anchors: %s", article.BodyForLLM)
	}
	if !strings.Contains(article.BodyForLLM, "faster") {
		t.Fatalf("translator input lost text: %s", article.BodyForLLM)
	}
}

func TestParseSkipsSectionsWithoutHeader(t *testing.T) {
	t.Parallel()

	page := `<section><p>no header here</p></section>
	<section>
	  <h3 class="text-center font-bold">News</h3>
	  <article class="mt-3"><h3>A story</h3><div class="newsletter-html">body</div></article>
	</section>`

	sections, err := NewParser(nil).Parse(page)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(sections) != 1 || sections[0].Name != "News" {
		t.Fatalf("expected only the headed section, got %+v", sections)
	}
}

func TestParseNoSections(t *testing.T) {
	t.Parallel()

	_, err := NewParser(nil).Parse("<html><body><p>404</p></body></html>")
	if !errors.Is(err, domain.ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestIsSponsored(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"TLDR Sponsor":        true,
		"sPoNsOrEd deal":      true,
		"Big Tech & Startups": false,
		"":                    false,
	}
	for text, want := range cases {
		if got := IsSponsored(text); got != want {
			t.Fatalf("IsSponsored(%q) = %v, want %v", text, got, want)
		}
	}
}
