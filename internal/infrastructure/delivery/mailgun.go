package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"tldrchinese/internal/domain"
	"tldrchinese/internal/ports"
)

const mailgunAPIBase = "https://api.mailgun.net/v3"

// Mailgun sends newsletter email through the Mailgun messages API.
type Mailgun struct {
	domain  string
	apiKey  string
	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

var _ ports.Mailer = (*Mailgun)(nil)

// NewMailgun registers the sending domain and API key.
func NewMailgun(domain, apiKey string, logger *slog.Logger) *Mailgun {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Mailgun{
		domain:  domain,
		apiKey:  apiKey,
		apiBase: mailgunAPIBase,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// SendNewsletter posts one batch message to all recipients. The per-recipient
// variables carry each subscriber's id so Mailgun substitutes %recipient.id%
// in the unsubscribe link.
func (m *Mailgun) SendNewsletter(ctx context.Context, recipients []domain.Subscriber, subject, html string) error {
	if m.domain == "" || m.apiKey == "" {
		return fmt.Errorf("mailgun mailer misconfigured")
	}
	if len(recipients) == 0 {
		return nil
	}

	variables := make(map[string]map[string]string, len(recipients))
	form := url.Values{}
	form.Set("from", fmt.Sprintf("TLDR Chinese <mailgun@%s>", m.domain))
	for _, recipient := range recipients {
		form.Add("to", recipient.Email)
		variables[recipient.Email] = map[string]string{"id": recipient.ID}
	}

	encoded, err := json.Marshal(variables)
	if err != nil {
		return fmt.Errorf("marshal recipient variables: %w", err)
	}
	form.Set("recipient-variables", string(encoded))

	form.Set("subject", subject)
	form.Set("html", html)
	form.Set("tracking-opens", "yes")
	form.Set("tracking-clicks", "yes")

	return m.post(ctx, form)
}

// SendConfirmation mails the double-opt-in link to a new subscriber.
func (m *Mailgun) SendConfirmation(ctx context.Context, email, confirmationLink string) error {
	if m.domain == "" || m.apiKey == "" {
		return fmt.Errorf("mailgun mailer misconfigured")
	}

	form := url.Values{}
	form.Set("from", fmt.Sprintf("TLDR Chinese <mailgun@%s>", m.domain))
	form.Add("to", email)
	form.Set("subject", "确认订阅 TLDR Chinese 每日科技新闻")
	form.Set("html", confirmationHTML(confirmationLink))

	return m.post(ctx, form)
}

func (m *Mailgun) post(ctx context.Context, form url.Values) error {
	endpoint := fmt.Sprintf("%s/%s/messages", m.apiBase, m.domain)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth("api", m.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mailgun error: %s", resp.Status)
	}

	return nil
}

func confirmationHTML(confirmationLink string) string {
	return fmt.Sprintf(`
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h2>确认订阅 TLDR Chinese</h2>
		<p>感谢您订阅 TLDR Chinese 每日科技新闻！</p>
		<p>请点击下面的按钮确认您的订阅：</p>
		<p style="text-align: center;">
			<a href="%s"
			   style="display: inline-block; padding: 12px 24px;
			          background-color: #0066cc; color: white;
			          text-decoration: none; border-radius: 4px;">
				确认订阅
			</a>
		</p>
		<p>如果按钮无法点击，请复制以下链接到浏览器中打开：</p>
		<p>%s</p>
	</div>`, confirmationLink, confirmationLink)
}
