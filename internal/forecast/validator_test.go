package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandri918/prediksi-cuaca/internal/contracts"
)

type fakeStore struct {
	runs     map[string]*contracts.RunResult
	due      []RunSummary
	saved    map[string][]contracts.ModelMetrics
	savedAt  time.Time
	asOf     time.Time
	saveFail error
}

func (s *fakeStore) GetRun(_ context.Context, runID string) (*contracts.RunResult, error) {
	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

func (s *fakeStore) ListUnverified(_ context.Context, asOf time.Time, _ int) ([]RunSummary, error) {
	s.asOf = asOf
	return s.due, nil
}

func (s *fakeStore) SaveVerification(_ context.Context, runID string, metrics []contracts.ModelMetrics, at time.Time) error {
	if s.saveFail != nil {
		return s.saveFail
	}
	if s.saved == nil {
		s.saved = make(map[string][]contracts.ModelMetrics)
	}
	s.saved[runID] = metrics
	s.savedAt = at
	return nil
}

type fakeActuals struct {
	series   *contracts.TimeSeries
	err      error
	from, to time.Time
}

func (f *fakeActuals) FetchActuals(_ context.Context, _ contracts.Location, _ string, from, to time.Time) (*contracts.TimeSeries, error) {
	f.from, f.to = from, to
	return f.series, f.err
}

func newTestVerifier(store VerificationStore, actuals ActualsFetcher, now time.Time) *Verifier {
	v := NewVerifier(store, actuals, zerolog.Nop())
	v.now = func() time.Time { return now }
	return v
}

func TestVerifier_VerifyRun(t *testing.T) {
	run := sampleRun()
	store := &fakeStore{runs: map[string]*contracts.RunResult{"run-1": run}}
	// 두 번째 날 관측은 결측
	actual := &contracts.TimeSeries{Points: []contracts.Observation{
		{Time: testStart, Value: 26.0},
		{Time: testStart.AddDate(0, 0, 1), Value: math.NaN()},
	}}
	fetcher := &fakeActuals{series: actual}
	now := testStart.AddDate(0, 0, 10)

	metrics, err := newTestVerifier(store, fetcher, now).VerifyRun(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, testStart, fetcher.from)
	assert.Equal(t, testStart.AddDate(0, 0, 1), fetcher.to)

	// 통계 + 트리 + 앙상블
	require.Len(t, metrics, 3)
	assert.Equal(t, contracts.ModelEnsemble, metrics[2].Model)
	for _, m := range metrics {
		assert.Equal(t, 1, m.HoldoutSize)
	}
	assert.InDelta(t, 0.1, metrics[0].MAE, 1e-9)
	assert.InDelta(t, 0.9, metrics[1].MAE, 1e-9)

	assert.Equal(t, metrics, store.saved["run-1"])
	assert.Equal(t, now, store.savedAt)
}

func TestVerifier_VerifyRunErrors(t *testing.T) {
	noLocation := sampleRun()
	noLocation.RunID = "run-2"
	noLocation.Location = nil

	store := &fakeStore{runs: map[string]*contracts.RunResult{"run-1": sampleRun(), "run-2": noLocation}}
	ctx := context.Background()

	_, err := newTestVerifier(store, &fakeActuals{}, time.Now()).VerifyRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = newTestVerifier(store, &fakeActuals{}, time.Now()).VerifyRun(ctx, "run-2")
	assert.ErrorIs(t, err, contracts.ErrValidation)

	_, err = newTestVerifier(store, &fakeActuals{err: errors.New("upstream 503")}, time.Now()).VerifyRun(ctx, "run-1")
	assert.ErrorContains(t, err, "upstream 503")

	// 겹치는 관측 없음
	later := &contracts.TimeSeries{Points: []contracts.Observation{{Time: testStart.AddDate(1, 0, 0), Value: 20}}}
	_, err = newTestVerifier(store, &fakeActuals{series: later}, time.Now()).VerifyRun(ctx, "run-1")
	assert.ErrorIs(t, err, contracts.ErrInsufficientData)
	assert.Empty(t, store.saved)
}

func TestVerifier_VerifyDueContinuesPastFailures(t *testing.T) {
	broken := sampleRun()
	broken.RunID = "run-broken"
	broken.Location = nil

	store := &fakeStore{
		runs: map[string]*contracts.RunResult{"run-1": sampleRun(), "run-broken": broken},
		due:  []RunSummary{{RunID: "run-broken"}, {RunID: "run-1"}},
	}
	actual := &contracts.TimeSeries{Points: []contracts.Observation{
		{Time: testStart, Value: 26.0},
		{Time: testStart.AddDate(0, 0, 1), Value: 26.5},
	}}
	now := testStart.AddDate(0, 1, 0)

	n, err := newTestVerifier(store, &fakeActuals{series: actual}, now).VerifyDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, now, store.asOf)
	assert.Contains(t, store.saved, "run-1")
	assert.NotContains(t, store.saved, "run-broken")
}

func TestCompareWith_ProviderBaseline(t *testing.T) {
	reference := &contracts.TimeSeries{Points: []contracts.Observation{
		{Time: testStart, Value: 26.0},
		{Time: testStart.AddDate(0, 0, 1), Value: 27.0},
	}}
	metrics, err := CompareWith(sampleRun(), reference)
	require.NoError(t, err)
	require.Len(t, metrics, 3)
	assert.Equal(t, 2, metrics[0].HoldoutSize)
	assert.InDelta(t, (0.1+0.6)/2, metrics[0].MAE, 1e-9)

	none, err := CompareWith(sampleRun(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}
