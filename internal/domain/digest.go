package domain

import "time"

// DateLayout is the calendar-date format used everywhere a digest date
// crosses a boundary (source URL, store key, HTTP API).
const DateLayout = "2006-01-02"

// Digest is the persisted bundle of translated sections for one calendar
// date. Once written it is treated as an immutable cache entry.
type Digest struct {
	Date      time.Time `json:"date"`
	Sections  []Section `json:"sections"`
	Headline  string    `json:"headline"`
	CreatedAt time.Time `json:"created_at"`
}

// Section groups articles under the source-assigned category label, in page
// order.
type Section struct {
	Name     string    `json:"section"`
	Articles []Article `json:"articles"`
}

// Article carries one story in both languages. Translated fields fall back
// to the original text when translation fails; they are never empty while
// the original is non-empty.
type Article struct {
	Title    string `json:"title"`
	TitleEn  string `json:"title_en"`
	Body     string `json:"content"`
	BodyEn   string `json:"content_en"`
	URL      string `json:"url"`
	ImageURL string `json:"image_url,omitempty"`
}

// RawSection is the parser output before translation and enrichment.
type RawSection struct {
	Name     string
	Articles []RawArticle
}

// RawArticle holds the untranslated extraction of a single story. BodyHTML
// is the inner markup of the content container as published; BodyForLLM is
// the same content with anchors stripped, the only form sent to the
// translation backend.
type RawArticle struct {
	Title      string
	BodyHTML   string
	BodyForLLM string
	URL        string
}
