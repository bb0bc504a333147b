package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coldwatch/coldwatch/internal/alerter"
	"github.com/coldwatch/coldwatch/internal/evaluator"
	"github.com/coldwatch/coldwatch/internal/types"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) AppendRecord(ctx context.Context, r types.Reading) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockStore) PersistLast(ctx context.Context, r types.Reading) error {
	return m.Called(ctx, r).Error(0)
}

func TestParsePayload(t *testing.T) {
	valid := map[string]float64{
		"4.5":     4.5,
		" -18\n":  -18,
		"6":       6,
		"1e1":     10,
		"\t0.0\r": 0,
	}
	for in, want := range valid {
		got, err := ParsePayload([]byte(in))
		require.NoError(t, err, "payload %q", in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "   ", "abc", "4,5", "NaN", "inf", "-Inf", "{\"t\":4}"} {
		_, err := ParsePayload([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedPayload, "payload %q", in)
	}
}

func newPipeline(store ReadingStore, n alerter.Notifier) (*Pipeline, *alerter.Engine) {
	engine := alerter.NewEngine(evaluator.NewEvaluator(5.0), n, "fridge", time.Second, zerolog.Nop())
	p := NewPipeline(store, engine, 50*time.Millisecond, zerolog.Nop())
	p.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	return p, engine
}

func TestPipeline_PersistsThenEvaluates(t *testing.T) {
	store := new(mockStore)
	n := &fakeNotifier{}
	p, engine := newPipeline(store, n)

	want := types.NewReading(6.5, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))
	store.On("PersistLast", mock.Anything, want).Return(nil).Once()
	store.On("AppendRecord", mock.Anything, want).Return(nil).Once()

	r, d, err := p.Handle(context.Background(), []byte("6.5"))
	require.NoError(t, err)
	assert.Equal(t, want, r)
	assert.True(t, d.Notify)
	assert.True(t, engine.State().Armed)
	assert.Equal(t, 1, n.count())
	store.AssertExpectations(t)
}

func TestPipeline_MalformedPayloadLeavesStateAlone(t *testing.T) {
	store := new(mockStore)
	n := &fakeNotifier{}
	p, engine := newPipeline(store, n)

	store.On("PersistLast", mock.Anything, mock.Anything).Return(nil)
	store.On("AppendRecord", mock.Anything, mock.Anything).Return(nil)

	_, _, err := p.Handle(context.Background(), []byte("7.0"))
	require.NoError(t, err)
	require.True(t, engine.State().Armed)

	_, _, err = p.Handle(context.Background(), []byte("garbage"))
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.True(t, engine.State().Armed)
	store.AssertNumberOfCalls(t, "PersistLast", 1)
	store.AssertNumberOfCalls(t, "AppendRecord", 1)

	_, _, err = p.Handle(context.Background(), []byte("1.0"))
	require.NoError(t, err)
	assert.False(t, engine.State().Armed)
}

func TestPipeline_PersistenceFailureStillAlerts(t *testing.T) {
	store := new(mockStore)
	n := &fakeNotifier{}
	p, _ := newPipeline(store, n)

	store.On("PersistLast", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	store.On("AppendRecord", mock.Anything, mock.Anything).Return(errors.New("db unavailable"))

	_, d, err := p.Handle(context.Background(), []byte("9"))
	require.NoError(t, err)
	assert.True(t, d.Notify)
	assert.Equal(t, 1, n.count())
}

func TestPipeline_PersistenceCallsAreBounded(t *testing.T) {
	store := &fakeStore{block: true}
	n := &fakeNotifier{}
	p, _ := newPipeline(store, n)

	start := time.Now()
	_, d, err := p.Handle(context.Background(), []byte("9"))
	require.NoError(t, err)
	assert.True(t, d.Notify)
	assert.Less(t, time.Since(start), time.Second)
}
