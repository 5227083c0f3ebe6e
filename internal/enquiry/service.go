// AngelaMos | 2026
// service.go

package enquiry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/mailer"
)

type Service struct {
	repo      Repository
	rules     Rules
	mail      mailer.Sender
	signature string
	logger    *slog.Logger
	now       func() time.Time
	observer  Observer
}

// Observer receives submission outcomes: stored, rejected or failed.
type Observer interface {
	ObserveEnquiry(result string)
}

type ServiceOption func(*Service)

// WithMailer enables the confirmation email sent after each stored
// enquiry.
func WithMailer(m mailer.Sender, signature string) ServiceOption {
	return func(s *Service) {
		s.mail = m
		s.signature = signature
	}
}

func WithObserver(o Observer) ServiceOption {
	return func(s *Service) {
		s.observer = o
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(
	repo Repository,
	rules Rules,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		repo:   repo,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates, deduplicates and stores an enquiry. The confirmation
// email is best effort and never fails the submission.
func (s *Service) Submit(ctx context.Context, p Payload) (*Enquiry, error) {
	ctx, span := core.StartSpan(ctx, "enquiry.Submit",
		attribute.String("enquiry.program", p.ProgramName()))
	defer span.End()

	if err := s.rules.Check(ctx, p, s.repo, s.now()); err != nil {
		core.SetSpanError(ctx, err)
		s.observe(err)
		return nil, err
	}

	record := p.Record(SourceCloud, s.now())
	if err := s.repo.Create(ctx, record); err != nil {
		core.SetSpanError(ctx, err)
		s.observe(err)
		return nil, err
	}
	s.observe(nil)

	core.AddSpanEvent(ctx, "enquiry.stored",
		attribute.String("enquiry.id", record.ID))

	s.logger.InfoContext(ctx, "enquiry stored",
		"enquiry_id", record.ID,
		"program", record.Program,
	)

	if s.mail != nil {
		core.BestEffort(ctx, s.logger, "enquiry confirmation email",
			func(ctx context.Context) error {
				core.AddSpanEvent(ctx, "enquiry.confirmation")
				return s.mail.Send(ctx, mailer.Confirmation(
					record.Email,
					record.Name,
					record.Program,
					record.Message,
					s.signature,
				))
			})
	}

	return record, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]Enquiry, error) {
	return s.repo.List(ctx, limit)
}

func (s *Service) CountSince(ctx context.Context, since time.Time) (int, error) {
	return s.repo.CountSince(ctx, since)
}

func (s *Service) observe(err error) {
	if s.observer == nil {
		return
	}
	switch {
	case err == nil:
		s.observer.ObserveEnquiry("stored")
	case errors.Is(err, core.ErrValidation):
		s.observer.ObserveEnquiry("rejected")
	default:
		s.observer.ObserveEnquiry("failed")
	}
}
