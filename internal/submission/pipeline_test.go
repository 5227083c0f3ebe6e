// AngelaMos | 2026
// pipeline_test.go

package submission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/enquiry"
	"github.com/nfphealth/nfp-backend/internal/events"
	"github.com/nfphealth/nfp-backend/internal/localstore"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) SubmitEnquiry(ctx context.Context, p enquiry.Payload) (*Result, error) {
	args := m.Called(ctx, p)
	res, _ := args.Get(0).(*Result)
	return res, args.Error(1)
}

func payload() enquiry.Payload {
	return enquiry.Payload{
		Name:    "Jo Smith",
		Email:   "jo@x.com",
		Program: "Yoga",
		Message: "Looking forward to the class sessions!!",
		Consent: true,
	}
}

type fixture struct {
	pipeline *Pipeline
	backend  localstore.Backend
	created  []*enquiry.Enquiry
	now      time.Time
}

func newFixture(t *testing.T, remote Remote) *fixture {
	t.Helper()

	backend, err := localstore.NewFileBackend(t.TempDir())
	require.NoError(t, err)

	f := &fixture{backend: backend, now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}

	bus := events.NewBus(nil)
	bus.Subscribe(events.EnquiryCreated, func(_ context.Context, v any) {
		f.created = append(f.created, v.(*enquiry.Enquiry))
	})

	opts := []Option{WithBus(bus), WithClock(func() time.Time { return f.now })}
	if remote != nil {
		opts = append(opts, WithRemote(remote))
	}
	f.pipeline = New(backend, enquiry.DefaultRules(), opts...)
	return f
}

func TestSubmit_RemoteSuccessKeepsCloudCopy(t *testing.T) {
	remote := &mockRemote{}
	remote.On("SubmitEnquiry", mock.Anything, mock.AnythingOfType("enquiry.Payload")).
		Return(&Result{OK: true, ID: "remote-1"}, nil).Once()

	f := newFixture(t, remote)

	res, err := f.pipeline.Submit(context.Background(), payload())
	require.NoError(t, err)
	assert.Equal(t, &Result{OK: true, ID: "remote-1"}, res)

	records, err := f.pipeline.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, enquiry.SourceCloud, records[0].Source)
	assert.Equal(t, "Yoga", records[0].Program)
	assert.Equal(t, "Yoga", records[0].Topic)
	require.Len(t, f.created, 1)
	remote.AssertExpectations(t)
}

func TestSubmit_RemoteFailureFallsBack(t *testing.T) {
	tests := []struct {
		name string
		res  *Result
		err  error
	}{
		{"transport error", nil, errors.New("dial tcp: connection refused")},
		{"not ok", &Result{OK: false}, nil},
		{"empty response", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &mockRemote{}
			remote.On("SubmitEnquiry", mock.Anything, mock.Anything).Return(tt.res, tt.err)

			f := newFixture(t, remote)

			res, err := f.pipeline.Submit(context.Background(), payload())
			require.NoError(t, err)
			assert.Equal(t, &Result{OK: true, Fallback: true}, res)

			records, err := f.pipeline.Records(context.Background())
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, enquiry.SourceLocal, records[0].Source)
			assert.Len(t, f.created, 1)
		})
	}
}

func TestSubmit_NoRemoteIsLocal(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.pipeline.Submit(context.Background(), payload())
	require.NoError(t, err)
	assert.True(t, res.Fallback)
}

func TestSubmit_ValidationHasNoSideEffects(t *testing.T) {
	remote := &mockRemote{}
	f := newFixture(t, remote)

	p := payload()
	p.Message = "short"

	_, err := f.pipeline.Submit(context.Background(), p)
	verr, ok := core.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, []string{enquiry.FieldMessage}, keys(verr.Fields))

	records, err := f.pipeline.Records(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, f.created)
	remote.AssertNotCalled(t, "SubmitEnquiry", mock.Anything, mock.Anything)
}

func TestSubmit_DuplicateWindow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.pipeline.Submit(ctx, payload())
	require.NoError(t, err)

	f.now = f.now.Add(60 * time.Second)
	_, err = f.pipeline.Submit(ctx, payload())
	verr, ok := core.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, core.GlobalField)

	f.now = f.now.Add(61 * time.Second)
	_, err = f.pipeline.Submit(ctx, payload())
	require.NoError(t, err)

	records, err := f.pipeline.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSubmit_LegacyTopicCountsForDuplicates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	legacy := payload()
	legacy.Program = ""
	legacy.Topic = "Yoga"
	_, err := f.pipeline.Submit(ctx, legacy)
	require.NoError(t, err)

	_, err = f.pipeline.Submit(ctx, payload())
	assert.ErrorIs(t, err, core.ErrValidation)
}

type brokenBackend struct{}

func (brokenBackend) Load(context.Context, string) ([]byte, error) { return nil, nil }
func (brokenBackend) Save(context.Context, string, []byte) error   { return errors.New("disk full") }

func TestSubmit_StorageFailureIsHard(t *testing.T) {
	p := New(brokenBackend{}, enquiry.DefaultRules())

	_, err := p.Submit(context.Background(), payload())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorage)
}

func TestNormalize(t *testing.T) {
	yes := true
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	rows := Normalize([]enquiry.Enquiry{
		{Name: "Jo", Email: "jo@x.com", Program: "Yoga", Consent: &yes, CreatedAt: at, Message: "a <b>"},
		{Name: "Al", Topic: "Legacy"},
		{Name: "Bo"},
	}, time.UTC, now)

	require.Len(t, rows, 3)
	assert.Equal(t, "2026-03-01 09:30:00", rows[0].Time)
	assert.Equal(t, "Yes", rows[0].Consent)
	assert.Equal(t, "a &lt;b&gt;", rows[0].Message)
	assert.Equal(t, "Legacy", rows[1].Program)
	assert.Equal(t, "-", rows[1].Consent)
	assert.Equal(t, "-", rows[2].Program)
	assert.Equal(t, "2026-03-02 00:00:00", rows[2].Time)
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
