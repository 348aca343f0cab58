package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"tldrchinese/internal/config"
	"tldrchinese/internal/domain"
	"tldrchinese/internal/ports"
)

const (
	headlinePrefix = "TLDR科技日报："

	// headlineBudget is the product-mandated subject length, counted in
	// runes so full-width characters weigh the same as ASCII.
	headlineBudget = 65

	// FallbackHeadline is used whenever synthesis fails or no titles
	// qualify.
	FallbackHeadline = "TLDR科技日报：今日科技要闻速递 🚀"

	titlesPerSection  = 2
	maxHeadlineTitles = 5
)

// prioritySections are the categories whose stories anchor the headline.
var prioritySections = map[string]bool{
	"Big Tech & Startups":             true,
	"Science & Futuristic Technology": true,
}

// GeminiHeadline asks Gemini for the day's attention headline.
type GeminiHeadline struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.HeadlineWriter = (*GeminiHeadline)(nil)

// NewGeminiHeadline builds a client from configuration.
func NewGeminiHeadline(cfg config.GeminiConfig, logger *slog.Logger) *GeminiHeadline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &GeminiHeadline{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Synthesize returns a headline within the length budget. Failures of any
// kind resolve to the fixed fallback headline.
func (g *GeminiHeadline) Synthesize(ctx context.Context, sections []domain.Section) string {
	titles := collectTitles(sections)
	if len(titles) == 0 || g.apiKey == "" || g.endpoint == "" {
		return FallbackHeadline
	}

	text, err := g.generate(ctx, buildHeadlinePrompt(titles))
	if err != nil {
		g.logger.Warn("headline synthesis failed, using fallback", "error", err)
		return FallbackHeadline
	}

	return NormalizeHeadline(text)
}

// collectTitles picks translated titles from the priority sections, at most
// two per section and five overall, preserving page order.
func collectTitles(sections []domain.Section) []string {
	var titles []string
	for _, section := range sections {
		if !prioritySections[section.Name] {
			continue
		}
		for i, article := range section.Articles {
			if i >= titlesPerSection {
				break
			}
			if article.Title != "" {
				titles = append(titles, article.Title)
			}
		}
	}
	if len(titles) > maxHeadlineTitles {
		titles = titles[:maxHeadlineTitles]
	}
	return titles
}

func buildHeadlinePrompt(titles []string) string {
	var sb strings.Builder
	sb.WriteString("你是一个专业的科技新闻编辑，请基于以下今日重要科技新闻:\n")
	sb.WriteString(strings.Join(titles, " | "))
	sb.WriteString(fmt.Sprintf(`

生成一个吸引眼球的中文邮件主题，要求：
1. 必须以"%s"开头
2. 总长度控制在%d字符以内（包括开头的"%s"）
3. 突出最重要或最有趣的1-2个新闻点
4. 使用数字或关键词增加吸引力
5. 避免标题党，保持专业性
6. 在结尾增加适当的表情符号

直接返回生成的标题，不要包含任何解释或其他内容。`, headlinePrefix, headlineBudget, headlinePrefix))
	return sb.String()
}

// NormalizeHeadline enforces the prefix and the rune budget. Deterministic
// and independent of the model.
func NormalizeHeadline(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return FallbackHeadline
	}

	if !strings.HasPrefix(title, headlinePrefix) {
		title = headlinePrefix + title
	}

	runes := []rune(title)
	if len(runes) > headlineBudget {
		title = string(runes[:headlineBudget-3]) + "..."
	}

	return title
}

func (g *GeminiHeadline) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.endpoint, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("headline backend %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty candidates in response")
	}

	return strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text), nil
}
