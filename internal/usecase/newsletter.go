package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"tldrchinese/internal/domain"
	"tldrchinese/internal/infrastructure/delivery"
	"tldrchinese/internal/ports"
)

// NewsletterDeps wires the delivery workflow.
type NewsletterDeps struct {
	Assembler   *Assembler
	Subscribers ports.SubscriberStore
	Mailer      ports.Mailer
	FrontendURL string
	BackendURL  string
	Logger      *slog.Logger
}

// Newsletter sends the day's digest to all confirmed subscribers.
type Newsletter struct {
	assembler   *Assembler
	subscribers ports.SubscriberStore
	mailer      ports.Mailer
	frontendURL string
	backendURL  string
	logger      *slog.Logger
}

// NewNewsletter constructs the delivery use case.
func NewNewsletter(deps NewsletterDeps) *Newsletter {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Newsletter{
		assembler:   deps.Assembler,
		subscribers: deps.Subscribers,
		mailer:      deps.Mailer,
		frontendURL: deps.FrontendURL,
		backendURL:  deps.BackendURL,
		logger:      deps.Logger,
	}
}

// SendDaily builds (or loads) the digest for the date and mails it. An empty
// date means today in the source's reference timezone.
func (n *Newsletter) SendDaily(ctx context.Context, date string) error {
	digest, err := n.assembler.GetDigest(ctx, date)
	if err != nil {
		return fmt.Errorf("get digest: %w", err)
	}

	subscribers, err := n.subscribers.ListConfirmed(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		n.logger.Info("no confirmed subscribers, skipping send")
		return nil
	}

	html, err := delivery.RenderNewsletterHTML(digest, n.frontendURL, n.backendURL)
	if err != nil {
		return fmt.Errorf("render newsletter: %w", err)
	}

	subject := digest.Headline
	if subject == "" {
		subject = fmt.Sprintf("TLDR Chinese 每日科技新闻 【%s】", digest.Date.Format(domain.DateLayout))
	}

	if err := n.mailer.SendNewsletter(ctx, subscribers, subject, html); err != nil {
		return fmt.Errorf("send newsletter: %w", err)
	}

	n.logger.Info("newsletter sent",
		"date", digest.Date.Format(domain.DateLayout),
		"recipients", len(subscribers))
	return nil
}
