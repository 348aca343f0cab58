package ports

import (
	"context"
	"time"

	"tldrchinese/internal/domain"
)

// SourceFetcher retrieves the raw newsletter page for one calendar date.
type SourceFetcher interface {
	Fetch(ctx context.Context, date string) (string, error)
}

// ContentParser extracts untranslated sections from the raw page.
type ContentParser interface {
	Parse(rawHTML string) ([]domain.RawSection, error)
}

// Translator converts a batch of snippets to the target language. The
// result has the same length and order as the input; positions that could
// not be translated contain the source text.
type Translator interface {
	TranslateBatch(ctx context.Context, texts []string) []string
}

// ImageResolver finds a representative image for an article page.
// Best-effort: an empty string means no image, failures never propagate.
type ImageResolver interface {
	Resolve(ctx context.Context, articleURL string) string
}

// HeadlineWriter produces the day's attention headline from the translated
// sections. It always returns a usable headline within the length budget.
type HeadlineWriter interface {
	Synthesize(ctx context.Context, sections []domain.Section) string
}

// DigestStore is the durable source of truth for built digests. FindByDate
// and FindLatest return (nil, nil) on a clean miss.
type DigestStore interface {
	FindByDate(ctx context.Context, date time.Time) (*domain.Digest, error)
	FindLatest(ctx context.Context, before *time.Time) (*domain.Digest, error)
	InsertIfAbsent(ctx context.Context, digest *domain.Digest) error
}

// DigestLock serializes concurrent builds of the same date across workers.
// Acquire reports ok=false when another builder holds the date; release is
// safe to call on every exit path and only removes the caller's own lock.
type DigestLock interface {
	Acquire(ctx context.Context, date time.Time) (release func(), ok bool, err error)
}

// SubscriberStore persists newsletter recipients.
type SubscriberStore interface {
	Add(ctx context.Context, email string) (*domain.Subscriber, error)
	Confirm(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	ListConfirmed(ctx context.Context) ([]domain.Subscriber, error)
}

// Mailer delivers the rendered newsletter to a batch of recipients. The
// subscriber ids travel as per-recipient variables so the unsubscribe link
// resolves per reader.
type Mailer interface {
	SendNewsletter(ctx context.Context, recipients []domain.Subscriber, subject, html string) error
}

// Scheduler controls when the daily build/send job executes.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
