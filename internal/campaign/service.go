// AngelaMos | 2026
// service.go

package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/mailer"
	"github.com/nfphealth/nfp-backend/internal/validation"
)

const (
	previewLen = 500

	DefaultLogPageSize = 20
	MaxLogPageSize     = 100
)

var (
	ErrNoRecipients = errors.New("recipients required")
	ErrNoMessage    = errors.New("message required")
	ErrBadRecipient = errors.New("invalid email in list")
	ErrNoMailer     = errors.New("mailer not configured")
)

// Observer counts delivery outcomes by kind.
type Observer interface {
	ObserveMail(kind string, err error)
}

type Service struct {
	mail     mailer.Sender
	repo     Repository
	observer Observer
	logger   *slog.Logger
}

type Option func(*Service)

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService accepts a nil mailer; Send then fails with ErrNoMailer after
// input checks pass. A nil repo skips the audit log.
func NewService(m mailer.Sender, repo Repository, opts ...Option) *Service {
	s := &Service{mail: m, repo: repo, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send broadcasts message to every recipient as bcc and returns how many
// were addressed. Writing the audit log is best effort.
func (s *Service) Send(ctx context.Context, to []string, message string) (int, error) {
	if len(to) == 0 {
		return 0, ErrNoRecipients
	}
	if strings.TrimSpace(message) == "" {
		return 0, ErrNoMessage
	}
	for _, addr := range to {
		if !validation.IsAddress(addr) {
			return 0, ErrBadRecipient
		}
	}

	if s.mail == nil {
		return 0, ErrNoMailer
	}

	err := s.mail.Send(ctx, mailer.Notification(to, message))
	if s.observer != nil {
		s.observer.ObserveMail("bulk", err)
	}
	if err != nil {
		return 0, fmt.Errorf("send bulk email: %w", err)
	}

	s.logger.InfoContext(ctx, "bulk email sent", "recipients", len(to))

	if s.repo != nil {
		core.BestEffort(ctx, s.logger, "email log", func(ctx context.Context) error {
			return s.repo.Create(ctx, &Log{
				ID:         uuid.New().String(),
				Recipients: strings.Join(to, ","),
				Preview:    preview(message),
			})
		})
	}

	return len(to), nil
}

func preview(msg string) string {
	r := []rune(msg)
	if len(r) <= previewLen {
		return msg
	}
	return string(r[:previewLen])
}

// Logs returns one page of the audit log, newest first, with the total
// number of logs. Pages start at 1.
func (s *Service) Logs(ctx context.Context, page, pageSize int) ([]Log, int, error) {
	if s.repo == nil {
		return []Log{}, 0, nil
	}

	page, pageSize = logPage(page, pageSize)

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []Log{}, 0, nil
	}

	logs, err := s.repo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// logPage clamps paging input to a first page of 1 and a size within
// MaxLogPageSize, defaulting to DefaultLogPageSize.
func logPage(page, pageSize int) (int, int) {
	if pageSize <= 0 {
		pageSize = DefaultLogPageSize
	}
	return max(page, 1), min(pageSize, MaxLogPageSize)
}
