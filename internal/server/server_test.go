package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tldrchinese/internal/domain"
)

type fakeProvider struct {
	digest  *domain.Digest
	err     error
	gotDate string
}

func (f *fakeProvider) GetDigest(_ context.Context, date string) (*domain.Digest, error) {
	f.gotDate = date
	return f.digest, f.err
}

type fakeSubscribers struct {
	added     *domain.Subscriber
	addErr    error
	confirmed string
	removed   string
}

func (f *fakeSubscribers) Add(_ context.Context, email string) (*domain.Subscriber, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.added = &domain.Subscriber{ID: "sub-1", Email: email}
	return f.added, nil
}

func (f *fakeSubscribers) Confirm(_ context.Context, id string) error {
	f.confirmed = id
	return nil
}

func (f *fakeSubscribers) Remove(_ context.Context, id string) error {
	f.removed = id
	return nil
}

func (f *fakeSubscribers) ListConfirmed(context.Context) ([]domain.Subscriber, error) {
	return nil, nil
}

type fakeConfirmations struct {
	email string
	link  string
}

func (f *fakeConfirmations) SendConfirmation(_ context.Context, email, link string) error {
	f.email = email
	f.link = link
	return nil
}

func newTestServer(provider *fakeProvider, subs *fakeSubscribers, conf *fakeConfirmations) *Server {
	var sender ConfirmationSender
	if conf != nil {
		sender = conf
	}
	return New(Deps{
		Assembler:     provider,
		Subscribers:   subs,
		Confirmations: sender,
		BackendURL:    "https://api.tldrchinese.example",
	})
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeProvider{}, &fakeSubscribers{}, nil)
	rec := do(s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetNewsletterByDate(t *testing.T) {
	t.Parallel()

	day, _ := time.Parse(domain.DateLayout, "2026-08-30")
	provider := &fakeProvider{digest: &domain.Digest{
		Date:     day,
		Headline: "TLDR科技日报：测试头条",
		Sections: []domain.Section{{Name: "Big Tech & Startups"}},
	}}

	s := newTestServer(provider, &fakeSubscribers{}, nil)
	rec := do(s, http.MethodGet, "/api/newsletter/2026-08-30", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if provider.gotDate != "2026-08-30" {
		t.Fatalf("date not forwarded, got %q", provider.gotDate)
	}

	var resp struct {
		Headline    string `json:"headline"`
		CurrentDate string `json:"currentDate"`
		Dates       []string
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CurrentDate != "2026-08-30" {
		t.Fatalf("unexpected currentDate: %s", resp.CurrentDate)
	}
	if resp.Headline == "" {
		t.Fatal("headline missing from response")
	}
	if len(resp.Dates) != availableDays {
		t.Fatalf("expected %d advertised dates, got %d", availableDays, len(resp.Dates))
	}
}

func TestGetNewsletterDefaultsToToday(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{digest: &domain.Digest{Date: time.Now()}}
	s := newTestServer(provider, &fakeSubscribers{}, nil)

	rec := do(s, http.MethodGet, "/api/newsletter", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if provider.gotDate != "" {
		t.Fatalf("expected empty date for today, got %q", provider.gotDate)
	}
}

func TestGetNewsletterErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid date", domain.ErrInvalidDate, http.StatusBadRequest},
		{"nothing available", domain.ErrNoDigestAvailable, http.StatusNotFound},
		{"backend failure", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(&fakeProvider{err: tc.err}, &fakeSubscribers{}, nil)
			rec := do(s, http.MethodGet, "/api/newsletter/2026-08-30", "")
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestSubscribeSendsConfirmation(t *testing.T) {
	t.Parallel()

	subs := &fakeSubscribers{}
	conf := &fakeConfirmations{}
	s := newTestServer(&fakeProvider{}, subs, conf)

	rec := do(s, http.MethodPost, "/api/subscribe", `{"email":"reader@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if subs.added == nil || subs.added.Email != "reader@example.com" {
		t.Fatalf("subscriber not stored: %+v", subs.added)
	}
	if conf.email != "reader@example.com" {
		t.Fatalf("confirmation not sent, got %q", conf.email)
	}
	if !strings.HasSuffix(conf.link, "/api/confirm/sub-1") {
		t.Fatalf("unexpected confirmation link: %s", conf.link)
	}
}

func TestSubscribeRequiresEmail(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeProvider{}, &fakeSubscribers{}, nil)
	rec := do(s, http.MethodPost, "/api/subscribe", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestConfirmAndUnsubscribe(t *testing.T) {
	t.Parallel()

	subs := &fakeSubscribers{}
	s := newTestServer(&fakeProvider{}, subs, nil)

	if rec := do(s, http.MethodGet, "/api/confirm/sub-9", ""); rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", rec.Code)
	}
	if subs.confirmed != "sub-9" {
		t.Fatalf("confirm id not forwarded: %q", subs.confirmed)
	}

	if rec := do(s, http.MethodGet, "/api/unsubscribe/sub-9", ""); rec.Code != http.StatusOK {
		t.Fatalf("unsubscribe: expected 200, got %d", rec.Code)
	}
	if subs.removed != "sub-9" {
		t.Fatalf("unsubscribe id not forwarded: %q", subs.removed)
	}
}
