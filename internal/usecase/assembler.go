package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"tldrchinese/internal/domain"
	"tldrchinese/internal/ports"
)

// lockBackoff is how long a caller waits after losing the per-date lock
// before re-reading the store.
const lockBackoff = time.Second

// AssemblerDeps wires all driven adapters into the digest build workflow.
type AssemblerDeps struct {
	Fetcher    ports.SourceFetcher
	Parser     ports.ContentParser
	Translator ports.Translator
	Images     ports.ImageResolver
	Headline   ports.HeadlineWriter
	Store      ports.DigestStore
	Lock       ports.DigestLock
	Location   *time.Location
	Logger     *slog.Logger
	Now        func() time.Time
}

// Assembler orchestrates fetch, parse, translation, enrichment, and the
// exactly-once persistence of a per-date digest.
type Assembler struct {
	fetcher    ports.SourceFetcher
	parser     ports.ContentParser
	translator ports.Translator
	images     ports.ImageResolver
	headline   ports.HeadlineWriter
	store      ports.DigestStore
	lock       ports.DigestLock
	location   *time.Location
	logger     *slog.Logger
	now        func() time.Time
	backoff    time.Duration
}

// NewAssembler constructs the orchestration component.
func NewAssembler(deps AssemblerDeps) *Assembler {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Assembler{
		fetcher:    deps.Fetcher,
		parser:     deps.Parser,
		translator: deps.Translator,
		images:     deps.Images,
		headline:   deps.Headline,
		store:      deps.Store,
		lock:       deps.Lock,
		location:   deps.Location,
		logger:     deps.Logger,
		now:        deps.Now,
		backoff:    lockBackoff,
	}
}

// GetDigest returns the digest for the date, building and persisting it when
// no cached entry exists. An empty date means "today" in the source site's
// reference timezone. The outcome is always a complete digest, a degraded
// digest, a fallback digest from an earlier date, or ErrNoDigestAvailable.
func (a *Assembler) GetDigest(ctx context.Context, date string) (*domain.Digest, error) {
	if date == "" {
		date = a.now().In(a.location).Format(domain.DateLayout)
	}

	day, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidDate, date)
	}

	cached, err := a.store.FindByDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("store lookup: %w", err)
	}
	if cached != nil {
		return cached, nil
	}

	// A future date (in the source's timezone) is served from the latest
	// persisted digest rather than fetched; the page does not exist yet.
	today := a.now().In(a.location).Format(domain.DateLayout)
	if date > today {
		a.logger.Info("future date requested, serving latest", "date", date, "today", today)
		latest, err := a.store.FindLatest(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("latest lookup: %w", err)
		}
		if latest == nil {
			return nil, domain.ErrNoDigestAvailable
		}
		return latest, nil
	}

	release, ok, err := a.lock.Acquire(ctx, day)
	if err != nil {
		// The store's unique key still guarantees a single digest per
		// date, so a broken lock backend degrades to duplicate work,
		// not duplicate rows.
		a.logger.Warn("lock acquire failed, proceeding unlocked", "date", date, "error", err)
	} else if !ok {
		return a.awaitOtherBuilder(ctx, day)
	}
	if release != nil {
		defer release()
	}

	// Double-checked: another worker may have finished between the first
	// lookup and the lock grant.
	cached, err = a.store.FindByDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("store re-check: %w", err)
	}
	if cached != nil {
		return cached, nil
	}

	return a.build(ctx, day, date)
}

// awaitOtherBuilder handles lock contention: back off briefly, adopt the
// other builder's result if it landed, otherwise fall back.
func (a *Assembler) awaitOtherBuilder(ctx context.Context, day time.Time) (*domain.Digest, error) {
	a.logger.Info("another worker is building this date", "date", day.Format(domain.DateLayout))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(a.backoff):
	}

	built, err := a.store.FindByDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("store re-read: %w", err)
	}
	if built != nil {
		return built, nil
	}

	return a.fallback(ctx, day)
}

func (a *Assembler) build(ctx context.Context, day time.Time, date string) (*domain.Digest, error) {
	raw, err := a.fetcher.Fetch(ctx, date)
	if err != nil {
		a.logger.Warn("source fetch failed, falling back", "date", date, "error", err)
		return a.fallback(ctx, day)
	}

	rawSections, err := a.parser.Parse(raw)
	if err != nil {
		a.logger.Warn("parse yielded no content, falling back", "date", date, "error", err)
		return a.fallback(ctx, day)
	}

	digest := a.assemble(ctx, day, rawSections)

	if err := a.store.InsertIfAbsent(ctx, digest); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// First successful writer wins; adopt its digest.
			winner, rerr := a.store.FindByDate(ctx, day)
			if rerr == nil && winner != nil {
				return winner, nil
			}
		}
		// The freshly built digest is still valid content for this
		// caller even when persistence failed.
		a.logger.Error("persist digest failed, returning unsaved build", "date", date, "error", err)
	}

	return digest, nil
}

// assemble translates all titles and bodies in two positional batches, zips
// the results back onto the articles, resolves images, and synthesizes the
// headline.
func (a *Assembler) assemble(ctx context.Context, day time.Time, rawSections []domain.RawSection) *domain.Digest {
	var titles, bodies []string
	for _, section := range rawSections {
		for _, article := range section.Articles {
			titles = append(titles, article.Title)
			bodies = append(bodies, article.BodyForLLM)
		}
	}

	titlesZh := a.translator.TranslateBatch(ctx, titles)
	bodiesZh := a.translator.TranslateBatch(ctx, bodies)

	sections := make([]domain.Section, 0, len(rawSections))
	idx := 0
	for _, rawSection := range rawSections {
		section := domain.Section{Name: rawSection.Name}
		for _, rawArticle := range rawSection.Articles {
			article := domain.Article{
				Title:   titlesZh[idx],
				TitleEn: rawArticle.Title,
				Body:    bodiesZh[idx],
				BodyEn:  rawArticle.BodyHTML,
				URL:     rawArticle.URL,
			}
			if article.Body == "" {
				article.Body = rawArticle.BodyHTML
			}

			if rawArticle.URL != "" {
				article.ImageURL = a.images.Resolve(ctx, rawArticle.URL)
			}

			section.Articles = append(section.Articles, article)
			idx++
		}
		sections = append(sections, section)
	}

	return &domain.Digest{
		Date:      day,
		Sections:  sections,
		Headline:  a.headline.Synthesize(ctx, sections),
		CreatedAt: a.now().UTC(),
	}
}

// fallback serves the most recent digest strictly before the requested date.
func (a *Assembler) fallback(ctx context.Context, day time.Time) (*domain.Digest, error) {
	latest, err := a.store.FindLatest(ctx, &day)
	if err != nil {
		return nil, fmt.Errorf("fallback lookup: %w", err)
	}
	if latest == nil {
		return nil, domain.ErrNoDigestAvailable
	}

	a.logger.Info("serving fallback digest",
		"requested", day.Format(domain.DateLayout),
		"served", latest.Date.Format(domain.DateLayout))
	return latest, nil
}
