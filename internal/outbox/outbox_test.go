// AngelaMos | 2026
// outbox_test.go

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfphealth/nfp-backend/internal/enquiry"
	"github.com/nfphealth/nfp-backend/internal/localstore"
	"github.com/nfphealth/nfp-backend/internal/submission"
)

func payload(program string) enquiry.Payload {
	return enquiry.Payload{
		Name:    "Jo Smith",
		Email:   "jo@x.com",
		Program: program,
		Message: "Looking forward to the class sessions!!",
		Consent: true,
	}
}

func newBackend(t *testing.T) localstore.Backend {
	t.Helper()
	b, err := localstore.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	return b
}

func TestFlush_RetainsOnlyFailures(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)

	pipeline := submission.New(backend, enquiry.DefaultRules())
	box := New(backend, pipeline, nil)

	invalid := payload("Pilates")
	invalid.Message = "short"

	_, err := box.Enqueue(ctx, payload("Yoga"))
	require.NoError(t, err)
	bad, err := box.Enqueue(ctx, invalid)
	require.NoError(t, err)
	_, err = box.Enqueue(ctx, payload("Tai Chi"))
	require.NoError(t, err)

	sent, err := box.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	left, err := box.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, bad.ID, left[0].ID)
	assert.Equal(t, "short", left[0].Payload.Message)

	records, err := pipeline.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFlush_FIFOOrder(t *testing.T) {
	ctx := context.Background()
	rec := &recordingSubmitter{}
	box := New(newBackend(t), rec, nil)

	for _, p := range []string{"a", "b", "c"} {
		_, err := box.Enqueue(ctx, payload(p))
		require.NoError(t, err)
	}

	sent, err := box.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, []string{"a", "b", "c"}, rec.programs())

	n, err := box.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFlush_LegacyEntriesWithoutID(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)

	legacy, err := json.Marshal([]map[string]any{
		{"payload": map[string]any{"name": "Jo", "program": "Yoga", "consent": "on"}, "ts": 1},
		{"payload": map[string]any{"name": "Al", "topic": "Pilates"}, "ts": 2},
	})
	require.NoError(t, err)
	require.NoError(t, backend.Save(ctx, localstore.KeyOutbox, legacy))

	rec := &recordingSubmitter{failPrograms: map[string]bool{"Pilates": true}}
	box := New(backend, rec, nil)

	sent, err := box.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	left, err := box.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "Pilates", left[0].Payload.ProgramName())
	assert.NotEmpty(t, left[0].ID)
	assert.True(t, bool(rec.seen[0].Consent))
}

func TestFlush_EnqueueDuringFlushIsKept(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)

	var box *Outbox
	blocking := &hookSubmitter{hook: func() {
		_, err := box.Enqueue(ctx, payload("late"))
		require.NoError(t, err)
	}}
	box = New(backend, blocking, nil)

	_, err := box.Enqueue(ctx, payload("early"))
	require.NoError(t, err)

	sent, err := box.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	left, err := box.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "late", left[0].Payload.Program)
}

func TestFlush_Serialized(t *testing.T) {
	ctx := context.Background()
	rec := &recordingSubmitter{delay: 5 * time.Millisecond}
	box := New(newBackend(t), rec, nil)

	for _, p := range []string{"a", "b", "c", "d"} {
		_, err := box.Enqueue(ctx, payload(p))
		require.NoError(t, err)
	}

	var total atomic.Int64
	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := box.Flush(ctx)
			assert.NoError(t, err)
			total.Add(int64(n))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(4), total.Load())
	assert.Len(t, rec.programs(), 4, "no entry may be sent twice")
}

func TestAutoFlush(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recordingSubmitter{}
	box := New(newBackend(t), rec, nil)

	_, err := box.Enqueue(ctx, payload("startup"))
	require.NoError(t, err)

	restored := make(chan struct{})
	done := make(chan struct{})
	go func() {
		box.AutoFlush(ctx, func() bool { return true }, restored)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(rec.programs()) == 1 },
		time.Second, 5*time.Millisecond)

	_, err = box.Enqueue(ctx, payload("reconnect"))
	require.NoError(t, err)
	restored <- struct{}{}

	require.Eventually(t, func() bool { return len(rec.programs()) == 2 },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AutoFlush did not stop after cancel")
	}
}

func TestAutoFlush_HoldsEntriesWhileOffline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	backend := newBackend(t)
	pipeline := submission.New(backend, enquiry.DefaultRules(),
		submission.WithRemote(unreachableRemote{}))
	box := New(backend, pipeline, nil)

	_, err := box.Enqueue(ctx, payload("Yoga"))
	require.NoError(t, err)

	box.AutoFlush(ctx, func() bool { return false }, make(chan struct{}))

	n, err := box.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := pipeline.Records(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAutoFlush_FlushesWhenConnectivityReturns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recordingSubmitter{}
	box := New(newBackend(t), rec, nil)

	_, err := box.Enqueue(ctx, payload("held"))
	require.NoError(t, err)

	restored := make(chan struct{})
	go box.AutoFlush(ctx, func() bool { return false }, restored)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.programs())

	restored <- struct{}{}
	require.Eventually(t, func() bool { return len(rec.programs()) == 1 },
		time.Second, 5*time.Millisecond)
}

type unreachableRemote struct{}

func (unreachableRemote) SubmitEnquiry(context.Context, enquiry.Payload) (*submission.Result, error) {
	return nil, errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
}

type recordingSubmitter struct {
	mu           sync.Mutex
	seen         []enquiry.Payload
	failPrograms map[string]bool
	delay        time.Duration
}

func (r *recordingSubmitter) Submit(_ context.Context, p enquiry.Payload) (*submission.Result, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, p)
	if r.failPrograms[p.ProgramName()] {
		return nil, assert.AnError
	}
	return &submission.Result{OK: true}, nil
}

func (r *recordingSubmitter) programs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.seen))
	for _, p := range r.seen {
		out = append(out, p.ProgramName())
	}
	return out
}

type hookSubmitter struct {
	hook func()
	once sync.Once
}

func (h *hookSubmitter) Submit(context.Context, enquiry.Payload) (*submission.Result, error) {
	h.once.Do(h.hook)
	return &submission.Result{OK: true}, nil
}
