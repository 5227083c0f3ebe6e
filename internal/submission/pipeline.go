// AngelaMos | 2026
// pipeline.go

package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nfphealth/nfp-backend/internal/enquiry"
	"github.com/nfphealth/nfp-backend/internal/events"
	"github.com/nfphealth/nfp-backend/internal/localstore"
)

// ErrRemote marks a failed remote attempt. The pipeline never returns it;
// it is logged and replaced by the local fallback.
var ErrRemote = errors.New("remote submission failed")

// Remote posts a validated payload to the submission endpoint.
type Remote interface {
	SubmitEnquiry(ctx context.Context, p enquiry.Payload) (*Result, error)
}

type Result struct {
	OK       bool   `json:"ok"`
	ID       string `json:"id,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Pipeline validates an enquiry, tries the remote endpoint and always keeps
// a durable local copy. Remote failures degrade to a local-only record.
type Pipeline struct {
	remote        Remote
	records       *localstore.List[enquiry.Enquiry]
	bus           *events.Bus
	rules         enquiry.Rules
	logger        *slog.Logger
	now           func() time.Time
	fallbackDelay time.Duration
}

type Option func(*Pipeline)

// WithRemote enables the network path. A nil remote keeps the pipeline
// local-only.
func WithRemote(r Remote) Option {
	return func(p *Pipeline) { p.remote = r }
}

func WithBus(b *events.Bus) Option {
	return func(p *Pipeline) { p.bus = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithFallbackDelay pauses before a local-only write.
func WithFallbackDelay(d time.Duration) Option {
	return func(p *Pipeline) { p.fallbackDelay = d }
}

func New(backend localstore.Backend, rules enquiry.Rules, opts ...Option) *Pipeline {
	p := &Pipeline{
		records: localstore.NewList[enquiry.Enquiry](backend, localstore.KeySubmissions),
		rules:   rules,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.records.SetLogger(p.logger)
	return p
}

// Submit returns a *core.ValidationError for rejected payloads and a
// storage error when the local write fails. Nothing else is fatal.
func (p *Pipeline) Submit(ctx context.Context, payload enquiry.Payload) (*Result, error) {
	if err := p.rules.Check(ctx, payload, localDuplicates{p.records}, p.now()); err != nil {
		return nil, err
	}

	if p.remote != nil {
		res, err := p.submitRemote(ctx, payload)
		if err == nil {
			if err := p.store(ctx, payload, enquiry.SourceCloud); err != nil {
				return nil, err
			}
			return res, nil
		}

		p.logger.WarnContext(ctx, "remote submission failed, storing locally",
			"program", payload.ProgramName(),
			"error", err,
		)
	}

	if p.fallbackDelay > 0 {
		select {
		case <-time.After(p.fallbackDelay):
		case <-ctx.Done():
		}
	}

	if err := p.store(ctx, payload, enquiry.SourceLocal); err != nil {
		return nil, err
	}

	return &Result{OK: true, Fallback: true}, nil
}

func (p *Pipeline) submitRemote(ctx context.Context, payload enquiry.Payload) (*Result, error) {
	res, err := p.remote.SubmitEnquiry(ctx, payload.Normalized())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemote, err)
	}
	if res == nil || !res.OK {
		return nil, fmt.Errorf("%w: response not ok", ErrRemote)
	}
	return res, nil
}

func (p *Pipeline) store(ctx context.Context, payload enquiry.Payload, source string) error {
	record := payload.Record(source, p.now())

	if err := p.records.Append(ctx, *record); err != nil {
		return fmt.Errorf("store enquiry locally: %w", err)
	}

	p.logger.InfoContext(ctx, "enquiry recorded",
		"enquiry_id", record.ID,
		"source", source,
	)
	p.bus.Publish(ctx, events.EnquiryCreated, record)
	return nil
}

// Records returns the local copies in insertion order.
func (p *Pipeline) Records(ctx context.Context) ([]enquiry.Enquiry, error) {
	return p.records.All(ctx)
}

type localDuplicates struct {
	list *localstore.List[enquiry.Enquiry]
}

func (d localDuplicates) ExistsRecent(
	ctx context.Context,
	email, program string,
	since time.Time,
) (bool, error) {
	items, err := d.list.All(ctx)
	if err != nil {
		return false, err
	}

	for i := range items {
		e := &items[i]
		if e.Email == email && e.ProgramName() == program && e.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}
