package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"tldrchinese/internal/domain"
	"tldrchinese/internal/ports"
)

// availableDays is how many recent dates the API advertises to clients.
const availableDays = 7

// DigestProvider is the only pipeline surface the HTTP layer consumes.
type DigestProvider interface {
	GetDigest(ctx context.Context, date string) (*domain.Digest, error)
}

// ConfirmationSender mails the double-opt-in link to a new subscriber.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, email, confirmationLink string) error
}

// Deps wires the HTTP surface. Handlers only map requests and responses;
// all pipeline logic stays behind the use cases.
type Deps struct {
	Assembler     DigestProvider
	Subscribers   ports.SubscriberStore
	Confirmations ConfirmationSender
	Location      *time.Location
	BackendURL    string
	Logger        *slog.Logger
}

// Server is the thin HTTP boundary around the digest pipeline.
type Server struct {
	echo          *echo.Echo
	assembler     DigestProvider
	subscribers   ports.SubscriberStore
	confirmations ConfirmationSender
	location      *time.Location
	backendURL    string
	logger        *slog.Logger
}

// New builds the echo router with all routes registered.
func New(deps Deps) *Server {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:          e,
		assembler:     deps.Assembler,
		subscribers:   deps.Subscribers,
		confirmations: deps.Confirmations,
		location:      deps.Location,
		backendURL:    deps.BackendURL,
		logger:        deps.Logger,
	}

	e.GET("/health", s.health)
	e.GET("/api/newsletter", s.getNewsletter)
	e.GET("/api/newsletter/:date", s.getNewsletter)
	e.POST("/api/subscribe", s.subscribe)
	e.GET("/api/confirm/:id", s.confirm)
	e.GET("/api/unsubscribe/:id", s.unsubscribe)

	return s
}

// Start blocks serving HTTP until Shutdown or failure.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getNewsletter(c echo.Context) error {
	date := c.Param("date")

	digest, err := s.assembler.GetDigest(c.Request().Context(), date)
	switch {
	case errors.Is(err, domain.ErrInvalidDate):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid date format"})
	case errors.Is(err, domain.ErrNoDigestAvailable):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no content available for this date"})
	case err != nil:
		s.logger.Error("get newsletter failed", "date", date, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"articles":    digest.Sections,
		"headline":    digest.Headline,
		"currentDate": digest.Date.Format(domain.DateLayout),
		"dates":       s.availableDates(),
	})
}

func (s *Server) subscribe(c echo.Context) error {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&body); err != nil || body.Email == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email is required"})
	}

	subscriber, err := s.subscribers.Add(c.Request().Context(), body.Email)
	if err != nil {
		s.logger.Error("subscribe failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}

	if s.confirmations != nil && !subscriber.Confirmed {
		link := fmt.Sprintf("%s/api/confirm/%s", s.backendURL, subscriber.ID)
		if err := s.confirmations.SendConfirmation(c.Request().Context(), subscriber.Email, link); err != nil {
			s.logger.Warn("confirmation email failed", "email", subscriber.Email, "error", err)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "confirmation email sent"})
}

func (s *Server) confirm(c echo.Context) error {
	if err := s.subscribers.Confirm(c.Request().Context(), c.Param("id")); err != nil {
		s.logger.Error("confirm failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "subscription confirmed"})
}

func (s *Server) unsubscribe(c echo.Context) error {
	if err := s.subscribers.Remove(c.Request().Context(), c.Param("id")); err != nil {
		s.logger.Error("unsubscribe failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "unsubscribed"})
}

// availableDates lists the last week of dates in the reference timezone,
// newest first.
func (s *Server) availableDates() []string {
	dates := make([]string, 0, availableDays)
	now := time.Now().In(s.location)
	for i := 0; i < availableDays; i++ {
		dates = append(dates, now.AddDate(0, 0, -i).Format(domain.DateLayout))
	}
	return dates
}
