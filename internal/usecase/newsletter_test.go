package usecase

import (
	"context"
	"strings"
	"testing"

	"tldrchinese/internal/domain"
)

type fakeSubscriberStore struct {
	confirmed []domain.Subscriber
}

func (f *fakeSubscriberStore) Add(_ context.Context, email string) (*domain.Subscriber, error) {
	return &domain.Subscriber{ID: "new", Email: email}, nil
}

func (f *fakeSubscriberStore) Confirm(context.Context, string) error { return nil }
func (f *fakeSubscriberStore) Remove(context.Context, string) error  { return nil }

func (f *fakeSubscriberStore) ListConfirmed(context.Context) ([]domain.Subscriber, error) {
	return f.confirmed, nil
}

type fakeMailer struct {
	recipients []domain.Subscriber
	subject    string
	html       string
	calls      int
}

func (f *fakeMailer) SendNewsletter(_ context.Context, recipients []domain.Subscriber, subject, html string) error {
	f.calls++
	f.recipients = recipients
	f.subject = subject
	f.html = html
	return nil
}

func TestSendDailyDeliversToConfirmed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "2026-08-31")
	f.store.digests["2026-08-30"] = digestFor("2026-08-30")
	f.store.digests["2026-08-30"].Sections = []domain.Section{
		{Name: "Big Tech & Startups", Articles: []domain.Article{
			{Title: "芯片新闻", Body: "正文", URL: "https://example.com/1"},
		}},
	}

	subs := &fakeSubscriberStore{confirmed: []domain.Subscriber{
		{ID: "id-1", Email: "a@example.com", Confirmed: true},
		{ID: "id-2", Email: "b@example.com", Confirmed: true},
	}}
	mailer := &fakeMailer{}

	n := NewNewsletter(NewsletterDeps{
		Assembler:   f.assembler,
		Subscribers: subs,
		Mailer:      mailer,
		FrontendURL: "https://tldrchinese.example",
		BackendURL:  "https://api.tldrchinese.example",
	})

	if err := n.SendDaily(context.Background(), "2026-08-30"); err != nil {
		t.Fatalf("SendDaily error: %v", err)
	}

	if mailer.calls != 1 {
		t.Fatalf("expected 1 send, got %d", mailer.calls)
	}
	if len(mailer.recipients) != 2 || mailer.recipients[0].ID != "id-1" {
		t.Fatalf("unexpected recipients: %+v", mailer.recipients)
	}
	if mailer.subject != "TLDR科技日报：历史头条" {
		t.Fatalf("expected the digest headline as subject, got %q", mailer.subject)
	}
	if !strings.Contains(mailer.html, "芯片新闻") {
		t.Fatal("rendered email missing article content")
	}
}

func TestSendDailySkipsWithoutSubscribers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "2026-08-31")
	f.store.digests["2026-08-30"] = digestFor("2026-08-30")

	mailer := &fakeMailer{}
	n := NewNewsletter(NewsletterDeps{
		Assembler:   f.assembler,
		Subscribers: &fakeSubscriberStore{},
		Mailer:      mailer,
		FrontendURL: "https://tldrchinese.example",
		BackendURL:  "https://api.tldrchinese.example",
	})

	if err := n.SendDaily(context.Background(), "2026-08-30"); err != nil {
		t.Fatalf("SendDaily error: %v", err)
	}
	if mailer.calls != 0 {
		t.Fatal("must not send to an empty audience")
	}
}
