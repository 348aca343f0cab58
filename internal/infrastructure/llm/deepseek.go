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
	"tldrchinese/internal/ports"
	"tldrchinese/internal/retry"
)

const (
	// chunkSize bounds how many snippets travel in one completion request.
	chunkSize = 4

	// chunkDelay spaces requests out to respect the backend's rate limits.
	chunkDelay = 500 * time.Millisecond

	// separator joins chunk texts in the prompt; the model is instructed
	// to echo it so the response can be re-split per snippet.
	separator = "<<<SPLIT>>>"

	translateSystemPrompt = "你是一个专业的翻译专家，请将以下英文内容翻译成地道的中文。" +
		"保持专业性，同时确保翻译后的内容通俗易懂。输入包含多段文本，段落之间以 " + separator +
		" 分隔；请逐段翻译，并在输出中原样保留该分隔符。直接返回译文，不要添加任何解释、前言或其他内容。"
)

// DeepSeekTranslator batches snippets against an OpenAI-compatible chat
// endpoint. It never fails the pipeline: untranslated positions keep their
// source text.
type DeepSeekTranslator struct {
	endpoint   string
	model      string
	apiKey     string
	client     *http.Client
	retryCfg   retry.Config
	chunkDelay time.Duration
	logger     *slog.Logger
}

var _ ports.Translator = (*DeepSeekTranslator)(nil)

// NewDeepSeekTranslator builds a client from configuration.
func NewDeepSeekTranslator(cfg config.DeepSeekConfig, logger *slog.Logger) *DeepSeekTranslator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &DeepSeekTranslator{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		client:     &http.Client{Timeout: 60 * time.Second},
		retryCfg:   retry.DefaultConfig(),
		chunkDelay: chunkDelay,
		logger:     logger,
	}
}

// TranslateBatch translates texts preserving length and order. Positions
// whose chunk failed, or that could not be recovered from a malformed
// response, contain the original text.
func (c *DeepSeekTranslator) TranslateBatch(ctx context.Context, texts []string) []string {
	out := make([]string, len(texts))
	copy(out, texts)

	if len(texts) == 0 || c.apiKey == "" || c.endpoint == "" {
		return out
	}

	for start := 0; start < len(texts); start += chunkSize {
		end := start + chunkSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk := texts[start:end]

		translated, err := c.translateChunk(ctx, chunk)
		if err != nil {
			c.logger.Warn("translation chunk failed, keeping source text",
				"offset", start, "size", len(chunk), "error", err)
		} else {
			for i, text := range translated {
				if trimmed := strings.TrimSpace(text); trimmed != "" {
					out[start+i] = trimmed
				}
			}
		}

		if end < len(texts) {
			select {
			case <-ctx.Done():
				return out
			case <-time.After(c.chunkDelay):
			}
		}
	}

	return out
}

// translateChunk issues one completion request for the chunk and re-splits
// the response. A count mismatch is logged and only the recoverable prefix
// is returned; the caller fills the gaps with source text.
func (c *DeepSeekTranslator) translateChunk(ctx context.Context, chunk []string) ([]string, error) {
	prompt := strings.Join(chunk, "\n"+separator+"\n")

	var content string
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		var reqErr error
		content, reqErr = c.complete(ctx, prompt)
		return reqErr
	})
	if err != nil {
		return nil, err
	}

	parts := strings.Split(content, separator)
	if len(parts) != len(chunk) {
		c.logger.Warn("translation response split mismatch",
			"expected", len(chunk), "got", len(parts))
		if len(parts) > len(chunk) {
			parts = parts[:len(chunk)]
		}
	}

	return parts, nil
}

func (c *DeepSeekTranslator) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": translateSystemPrompt},
			{"role": "user", "content": "请翻译以下内容：\n\n" + prompt},
		},
		"temperature": 0.3,
		"max_tokens":  2000,
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", retry.Transient(fmt.Errorf("send chunk: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		reqErr := fmt.Errorf("translation backend %s: %s", resp.Status, strings.TrimSpace(string(payload)))
		if retry.HTTPStatusRetryable(resp.StatusCode) {
			return "", retry.Transient(reqErr)
		}
		return "", reqErr
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
