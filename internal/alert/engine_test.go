package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"QuoteWatch/internal/model"
	"QuoteWatch/internal/recorder"
	"QuoteWatch/internal/session"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, recipient, subject, body string) error {
	args := m.Called(ctx, recipient, subject, body)
	return args.Error(0)
}

var fixedNow = time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC) // 10:00 Shanghai, 03:00 Paris

func newEngine(t *testing.T, sink Sender, rec recorder.Recorder) *Engine {
	t.Helper()
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	svc := session.ForExchange(model.Shanghai, paris, func() time.Time { return fixedNow })
	return NewEngine(Config{
		Clock:     svc,
		Sink:      sink,
		Recipient: "me@example.com",
		Recorder:  rec,
		Logger:    zerolog.Nop(),
	})
}

func TestCreate_Validation(t *testing.T) {
	e := newEngine(t, nil, nil)
	x := model.MustSymbol("X")

	_, err := e.Create(x, 0, Above, OneTime)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
	_, err = e.Create(x, -5, Below, Permanent)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
	_, err = e.Create(x, 5, Condition("sideways"), Permanent)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
	_, err = e.Create(model.Symbol{}, 5, Above, Permanent)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)

	a, err := e.Create(x, 50, Above, OneTime)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, Active, a.Status)
	assert.Equal(t, fixedNow, a.CreatedAt)
	assert.Len(t, e.List(), 1)
}

func TestEvaluate_OneTimeScenario(t *testing.T) {
	e := newEngine(t, nil, nil)
	x := model.MustSymbol("X")
	a, err := e.Create(x, 50, Above, OneTime)
	require.NoError(t, err)

	fired, err := e.Evaluate(context.Background(), x, 45)
	require.NoError(t, err)
	assert.Empty(t, fired)
	require.Len(t, e.List(), 1)
	assert.Equal(t, Active, e.List()[0].Status)

	fired, err = e.Evaluate(context.Background(), x, 51)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, a.ID, fired[0].ID)
	assert.Equal(t, Retired, fired[0].Status)
	assert.Empty(t, e.List())

	fired, err = e.Evaluate(context.Background(), x, 60)
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestEvaluate_OneTimeFiresOnceOverRisingPrices(t *testing.T) {
	e := newEngine(t, nil, nil)
	x := model.MustSymbol("X")
	_, err := e.Create(x, 100, Above, OneTime)
	require.NoError(t, err)

	total := 0
	for _, p := range []float64{90, 100, 100, 120, 150} {
		fired, err := e.Evaluate(context.Background(), x, p)
		require.NoError(t, err)
		total += len(fired)
	}
	assert.Equal(t, 1, total)
}

func TestEvaluate_PermanentRefiresUntilDeleted(t *testing.T) {
	e := newEngine(t, nil, nil)
	x := model.MustSymbol("X")
	a, err := e.Create(x, 20, Below, Permanent)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		fired, err := e.Evaluate(context.Background(), x, 19.5)
		require.NoError(t, err)
		require.Len(t, fired, 1)
		assert.Equal(t, Active, fired[0].Status)
		assert.Equal(t, i, fired[0].FireCount)
	}

	assert.True(t, e.Delete(a.ID))
	assert.False(t, e.Delete(a.ID))
	fired, err := e.Evaluate(context.Background(), x, 1)
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestEvaluate_OnlyMatchingSymbol(t *testing.T) {
	e := newEngine(t, nil, nil)
	_, err := e.Create(model.MustSymbol("AAA"), 10, Above, Permanent)
	require.NoError(t, err)

	fired, err := e.Evaluate(context.Background(), model.MustSymbol("BBB"), 99)
	require.NoError(t, err)
	assert.Empty(t, fired)

	_, err = e.Evaluate(context.Background(), model.MustSymbol("AAA"), 0)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestEvaluate_SendsNotification(t *testing.T) {
	sink := &mockSender{}
	sink.On("Send", mock.Anything, "me@example.com", "Price alert - 600519.SS",
		mock.MatchedBy(func(body string) bool {
			return assert.Contains(t, body, "¥1800.00") && assert.Contains(t, body, "2024-03-04 03:00:00")
		})).Return(nil).Once()

	e := newEngine(t, sink, nil)
	sym := model.MustSymbol("600519.SS")
	_, err := e.Create(sym, 1750, Above, OneTime)
	require.NoError(t, err)

	fired, err := e.Evaluate(context.Background(), sym, 1800)
	require.NoError(t, err)
	assert.Len(t, fired, 1)
	sink.AssertExpectations(t)
}

func TestEvaluate_SinkFailureKeepsTransition(t *testing.T) {
	sink := &mockSender{}
	sink.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp down"))

	rec, err := recorder.NewSQLiteRecorder(":memory:")
	require.NoError(t, err)
	defer rec.Close()

	e := newEngine(t, sink, rec)
	x := model.MustSymbol("X")
	_, err = e.Create(x, 50, Above, OneTime)
	require.NoError(t, err)

	fired, err := e.Evaluate(context.Background(), x, 55)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, fired, 1)
	assert.Empty(t, e.List())

	hist, err := rec.AlertHistory(10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.False(t, hist[0].Delivered)
}

func TestEvaluate_ConcurrentOneTimeFiresOnce(t *testing.T) {
	e := newEngine(t, nil, nil)
	x := model.MustSymbol("X")
	_, err := e.Create(x, 10, Above, OneTime)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fired, _ := e.Evaluate(context.Background(), x, 11)
			mu.Lock()
			total += len(fired)
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, total)
}

func TestSymbols(t *testing.T) {
	e := newEngine(t, nil, nil)
	for _, s := range []string{"b", "a", "b"} {
		_, err := e.Create(model.MustSymbol(s), 1, Above, Permanent)
		require.NoError(t, err)
	}
	syms := e.Symbols()
	require.Len(t, syms, 2)
	assert.Equal(t, "A", syms[0].String())
}

func TestParse(t *testing.T) {
	c, err := ParseCondition(" Above ")
	require.NoError(t, err)
	assert.Equal(t, Above, c)
	_, err = ParseCondition("over")
	assert.ErrorIs(t, err, model.ErrInvalidParameter)

	l, err := ParseLifetime("")
	require.NoError(t, err)
	assert.Equal(t, OneTime, l)
	l, err = ParseLifetime("permanent")
	require.NoError(t, err)
	assert.Equal(t, Permanent, l)
	_, err = ParseLifetime("forever")
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}
