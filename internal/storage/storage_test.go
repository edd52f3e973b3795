package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mselser95/bangr-engine/internal/events"
	"github.com/mselser95/bangr-engine/internal/testutil"
	"github.com/mselser95/bangr-engine/pkg/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var eventTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testMarket() types.Market {
	return types.Market{
		ID:           3,
		TweetURL:     "https://x.com/someone/status/17",
		TweetID:      "17",
		Metric:       types.MetricLikes,
		Duration:     types.WindowHour6,
		Multiplier:   5,
		CurrentValue: 200,
		TargetValue:  1000,
		StartTime:    eventTime,
		EndTime:      eventTime.Add(6 * time.Hour),
		Status:       types.StatusPending,
	}
}

func testEvent(seq uint64, eventType types.EventType, payload any) *types.Event {
	return &types.Event{
		ID:       uuid.NewString(),
		Version:  types.EventVersion,
		Sequence: seq,
		Type:     eventType,
		MarketID: 3,
		Time:     eventTime,
		Payload:  payload,
	}
}

func TestConsoleStorage_New(t *testing.T) {
	storage := NewConsoleStorage(zap.NewNop())

	if storage == nil {
		t.Fatal("expected non-nil storage")
	}
	if storage.logger == nil {
		t.Error("expected non-nil logger")
	}
}

func TestConsoleStorage_Store(t *testing.T) {
	storage := NewConsoleStorage(zaptest.NewLogger(t))

	err := storage.Store(context.Background(), testEvent(1, types.EventOrderCancelled, types.OrderCancelledPayload{
		OrderID: 4,
		Side:    types.SideBuy,
		Outcome: types.OutcomeYes,
		Reason:  types.CancelByMaker,
	}))
	require.NoError(t, err)
	require.NoError(t, storage.Close())
}

func TestPostgresStorage_Migrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: zap.NewNop()}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS engine_events").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, storage.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_Store(t *testing.T) {
	market := testMarket()
	resolved := types.MarketResolvedPayload{MarketID: 3, Status: types.StatusResolvedNo, FinalValue: 900}

	tests := []struct {
		name   string
		event  *types.Event
		expect func(mock sqlmock.Sqlmock)
	}{
		{
			name: "order-event-appends-only",
			event: testEvent(2, types.EventOrderPlaced, types.OrderPlacedPayload{
				Order: types.Order{ID: 1, MarketID: 3, Side: types.SideBuy, Outcome: types.OutcomeNo},
			}),
		},
		{
			name:  "market-created-upserts-market",
			event: testEvent(1, types.EventMarketCreated, types.MarketCreatedPayload{Market: market}),
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO markets").
					WithArgs(
						market.ID, market.TweetID, market.TweetURL, "LIKES", "HOUR_6", market.Multiplier,
						market.CurrentValue, market.TargetValue, sqlmock.AnyArg(), sqlmock.AnyArg(), "PENDING",
					).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name:  "market-resolved-updates-status",
			event: testEvent(9, types.EventMarketResolved, resolved),
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE markets SET status").
					WithArgs(resolved.MarketID, "RESOLVED_NO", resolved.FinalValue, sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			storage := &PostgresStorage{db: db, logger: zaptest.NewLogger(t)}

			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO engine_events").
				WithArgs(
					tt.event.ID,
					tt.event.Sequence,
					types.EventVersion,
					string(tt.event.Type),
					tt.event.MarketID,
					sqlmock.AnyArg(),
					sqlmock.AnyArg(),
				).
				WillReturnResult(sqlmock.NewResult(0, 1))
			if tt.expect != nil {
				tt.expect(mock)
			}
			mock.ExpectCommit()

			require.NoError(t, storage.Store(context.Background(), tt.event))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStorage_Store_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	storage := &PostgresStorage{db: db, logger: zap.NewNop()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO engine_events").
		WillReturnError(sqlmock.ErrCancelled)
	mock.ExpectRollback()

	err = storage.Store(context.Background(), testEvent(1, types.EventOrderPlaced, types.OrderPlacedPayload{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	storage := &PostgresStorage{db: db, logger: zap.NewNop()}

	mock.ExpectClose()

	require.NoError(t, storage.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeRedis struct {
	mu       sync.Mutex
	channels []string
	messages [][]byte
	err      error
	closed   bool
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, message.([]byte))
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisStorage_Store(t *testing.T) {
	client := &fakeRedis{}
	storage := newRedisStorage(client, "bangr-test", zaptest.NewLogger(t))

	ev := testEvent(5, types.EventTradeExecuted, types.Trade{FillID: 2, MarketID: 3, Side: types.SideSell})
	require.NoError(t, storage.Store(context.Background(), ev))

	require.Len(t, client.channels, 1)
	assert.Equal(t, "bangr-test:TradeExecuted", client.channels[0])

	var decoded struct {
		Sequence uint64          `json:"sequence"`
		Type     types.EventType `json:"type"`
	}
	require.NoError(t, json.Unmarshal(client.messages[0], &decoded))
	assert.Equal(t, uint64(5), decoded.Sequence)
	assert.Equal(t, types.EventTradeExecuted, decoded.Type)

	require.NoError(t, storage.Close())
	assert.True(t, client.closed)
}

func TestRedisStorage_Store_Error(t *testing.T) {
	storage := newRedisStorage(&fakeRedis{err: errors.New("connection refused")}, "", zap.NewNop())
	assert.Equal(t, "bangr:Redeemed", storage.Channel(types.EventRedeemed))

	err := storage.Store(context.Background(), testEvent(1, types.EventRedeemed, types.RedeemedPayload{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bangr:Redeemed")
}

func TestRecorder_Run(t *testing.T) {
	sink := testutil.NewMockSink(2)
	recorder, err := NewRecorder(&RecorderConfig{Sink: sink, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	stream := make(chan types.Event, 3)
	for seq := uint64(1); seq <= 3; seq++ {
		stream <- *testEvent(seq, types.EventOrderPlaced, types.OrderPlacedPayload{})
	}
	close(stream)

	recorder.Run(context.Background(), stream)
	assert.Equal(t, []uint64{1, 3}, sink.Sequences())
}

func TestRecorder_SlowSinkKeepsEveryEvent(t *testing.T) {
	bus, err := events.New(&events.Config{Logger: zaptest.NewLogger(t), BufferSize: 4})
	require.NoError(t, err)

	sink := testutil.NewMockSink()
	sink.SetDelay(2 * time.Millisecond)
	recorder, err := NewRecorder(&RecorderConfig{Sink: sink, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	sub := bus.SubscribeDurable("recorder", nil)
	done := make(chan struct{})
	go func() {
		recorder.Run(context.Background(), sub.Events())
		close(done)
	}()

	const total = 100
	for seq := uint64(1); seq <= total; seq += 2 {
		bus.Publish([]types.Event{
			*testEvent(seq, types.EventTradeExecuted, types.Trade{FillID: seq}),
			*testEvent(seq+1, types.EventTradeExecuted, types.Trade{FillID: seq}),
		})
	}
	bus.Close()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("recorder did not drain the backlog")
	}

	seqs := sink.Sequences()
	require.Len(t, seqs, total)
	assert.IsIncreasing(t, seqs)
}

func TestRecorder_LogsSequenceGaps(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	recorder, err := NewRecorder(&RecorderConfig{Sink: testutil.NewMockSink(), Logger: zap.New(core)})
	require.NoError(t, err)

	stream := make(chan types.Event, 4)
	for _, seq := range []uint64{4, 5, 8, 9} {
		stream <- *testEvent(seq, types.EventOrderPlaced, types.OrderPlacedPayload{})
	}
	close(stream)

	recorder.Run(context.Background(), stream)

	gaps := logs.FilterMessage("event-sequence-gap").All()
	require.Len(t, gaps, 1)
	fields := gaps[0].ContextMap()
	assert.Equal(t, uint64(5), fields["after-sequence"])
	assert.Equal(t, uint64(2), fields["missing"])
}

func TestRecorder_StopsOnCancel(t *testing.T) {
	recorder, err := NewRecorder(&RecorderConfig{Sink: testutil.NewMockSink(), Logger: zap.NewNop()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		recorder.Run(ctx, make(chan types.Event))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}
}

func TestNewRecorder_Validation(t *testing.T) {
	_, err := NewRecorder(nil)
	assert.EqualError(t, err, "config cannot be nil")
	_, err = NewRecorder(&RecorderConfig{Logger: zap.NewNop()})
	assert.EqualError(t, err, "sink cannot be nil")
	_, err = NewRecorder(&RecorderConfig{Sink: testutil.NewMockSink()})
	assert.EqualError(t, err, "logger cannot be nil")
}

func TestValidMode(t *testing.T) {
	for _, mode := range []string{ModeConsole, ModePostgres, ModeRedis} {
		assert.NoError(t, ValidMode(mode))
	}
	assert.Error(t, ValidMode("sqlite"))
}

func TestStorage_Interface(t *testing.T) {
	var _ Sink = NewConsoleStorage(zap.NewNop())
	var _ Sink = &PostgresStorage{}
	var _ Sink = &RedisStorage{}
}
