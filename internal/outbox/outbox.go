// AngelaMos | 2026
// outbox.go

package outbox

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nfphealth/nfp-backend/internal/enquiry"
	"github.com/nfphealth/nfp-backend/internal/localstore"
	"github.com/nfphealth/nfp-backend/internal/submission"
)

// Entry is a deferred submission. EnqueuedAt is unix milliseconds.
type Entry struct {
	ID         string          `json:"id,omitempty"`
	Payload    enquiry.Payload `json:"payload"`
	EnqueuedAt int64           `json:"ts"`
}

type Submitter interface {
	Submit(ctx context.Context, p enquiry.Payload) (*submission.Result, error)
}

// Outbox is a durable FIFO of payloads awaiting delivery. An entry leaves
// the queue only after the submitter accepts it.
type Outbox struct {
	list      *localstore.List[Entry]
	submitter Submitter
	logger    *slog.Logger
	now       func() time.Time

	flushMu sync.Mutex
}

func New(backend localstore.Backend, submitter Submitter, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{
		list:      localstore.NewList[Entry](backend, localstore.KeyOutbox).SetLogger(logger),
		submitter: submitter,
		logger:    logger,
		now:       time.Now,
	}
}

// Enqueue appends p without validating or deduplicating it.
func (o *Outbox) Enqueue(ctx context.Context, p enquiry.Payload) (Entry, error) {
	e := Entry{
		ID:         uuid.New().String(),
		Payload:    p,
		EnqueuedAt: o.now().UnixMilli(),
	}
	if err := o.list.Append(ctx, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (o *Outbox) Count(ctx context.Context) (int, error) {
	entries, err := o.list.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (o *Outbox) Entries(ctx context.Context) ([]Entry, error) {
	return o.list.All(ctx)
}

// Flush replays entries oldest first, one at a time, and returns how many
// were accepted. Failed entries stay queued in their original order.
// Concurrent calls run one after another; entries enqueued during a flush
// are kept.
func (o *Outbox) Flush(ctx context.Context) (int, error) {
	o.flushMu.Lock()
	defer o.flushMu.Unlock()

	pending, err := o.snapshot(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, e := range pending {
		if ctx.Err() != nil {
			break
		}

		if _, err := o.submitter.Submit(ctx, e.Payload); err != nil {
			o.logger.InfoContext(ctx, "outbox entry kept for retry",
				"entry_id", e.ID,
				"error", err,
			)
			continue
		}

		if err := o.remove(ctx, e.ID); err != nil {
			return sent, err
		}
		sent++
	}

	if sent > 0 {
		o.logger.InfoContext(ctx, "outbox flushed",
			"sent", sent,
			"remaining", len(pending)-sent,
		)
	}
	return sent, nil
}

// snapshot reads the queue, giving ids to entries written without one.
func (o *Outbox) snapshot(ctx context.Context) ([]Entry, error) {
	var out []Entry
	err := o.list.Update(ctx, func(cur []Entry) ([]Entry, error) {
		for i := range cur {
			if cur[i].ID == "" {
				cur[i].ID = uuid.New().String()
			}
		}
		out = slices.Clone(cur)
		return cur, nil
	})
	return out, err
}

func (o *Outbox) remove(ctx context.Context, id string) error {
	return o.list.Update(ctx, func(cur []Entry) ([]Entry, error) {
		return slices.DeleteFunc(cur, func(e Entry) bool {
			return e.ID == id
		}), nil
	})
}

// AutoFlush flushes once at start if online reports the API reachable,
// then again on every value from restored until ctx ends. A nil online
// assumes the API is reachable. Flush errors are logged, never returned.
func (o *Outbox) AutoFlush(ctx context.Context, online func() bool, restored <-chan struct{}) {
	if online == nil || online() {
		o.tryFlush(ctx)
	} else {
		o.logger.InfoContext(ctx, "api unreachable, outbox held until it returns")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-restored:
			if !ok {
				return
			}
			o.tryFlush(ctx)
		}
	}
}

func (o *Outbox) tryFlush(ctx context.Context) {
	if _, err := o.Flush(ctx); err != nil {
		o.logger.WarnContext(ctx, "outbox auto-flush failed", "error", err)
	}
}
