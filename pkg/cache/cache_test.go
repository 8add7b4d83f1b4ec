package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/algomatic/regime-backtest/internal/synth"
	"github.com/algomatic/regime-backtest/pkg/config"
	"github.com/algomatic/regime-backtest/pkg/engine"
	"github.com/algomatic/regime-backtest/pkg/regime"
	"github.com/algomatic/regime-backtest/pkg/types"
)

func sampleReport() *engine.Report {
	return &engine.Report{
		Strategy:       "regime",
		Candles:        300,
		Trades:         2,
		Wins:           1,
		NetPnL:         1520.25,
		FinalEquity:    501520.25,
		RegimeDays:     map[regime.Label]int{regime.Trending: 120, regime.Normal: 60, regime.Choppy: 56},
		RegimeTrades:   map[regime.Label]int{regime.Trending: 2, regime.Normal: 0, regime.Choppy: 0},
		Rejections:     map[string]int{"pullback": 40},
		ExitReasons:    map[types.ExitReason]int{types.ExitTrailingStop: 2},
		FirstTimestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ClosedTrades: []types.ClosedTrade{
			{Direction: types.Long, EntryPrice: 100, ExitPrice: 110, Quantity: 10, NetPnL: 90, ExitReason: types.ExitTrailingStop},
		},
	}
}

func TestKey(t *testing.T) {
	candles := synth.Uptrend(100)
	params := config.DefaultStrategy()

	k1, err := Key("regime", params, candles)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(k1, KeyPrefix))
	assert.Len(t, strings.TrimPrefix(k1, KeyPrefix), 64)

	k2, err := Key("regime", params, candles)
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "key must be deterministic")

	other, _ := Key("trending", params, candles)
	assert.NotEqual(t, k1, other, "strategy name is part of the key")

	params.RiskPerTrade = 0.01
	tweaked, _ := Key("regime", params, candles)
	assert.NotEqual(t, k1, tweaked, "params are part of the key")

	shorter, _ := Key("regime", config.DefaultStrategy(), candles[:99])
	assert.NotEqual(t, k1, shorter, "candles are part of the key")
}

func TestGet_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWithClient(db, time.Hour, nil)

	rep := sampleReport()
	data, err := json.Marshal(rep)
	require.NoError(t, err)
	mock.ExpectGet("k").SetVal(string(data))

	got, found, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rep.Strategy, got.Strategy)
	assert.Equal(t, rep.NetPnL, got.NetPnL)
	assert.Equal(t, rep.RegimeDays, got.RegimeDays)
	assert.Equal(t, rep.ExitReasons, got.ExitReasons)
	require.Len(t, got.ClosedTrades, 1)
	assert.Equal(t, types.Long, got.ClosedTrades[0].Direction)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_Miss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWithClient(db, time.Hour, nil)
	mock.ExpectGet("k").RedisNil()

	got, found, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_Errors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWithClient(db, time.Hour, nil)

	mock.ExpectGet("k").SetErr(errors.New("connection refused"))
	_, found, err := c.Get(context.Background(), "k")
	assert.ErrorContains(t, err, "connection refused")
	assert.False(t, found)

	mock.ExpectGet("k").SetVal("{not json")
	_, found, err = c.Get(context.Background(), "k")
	assert.ErrorContains(t, err, "decoding cached report")
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWithClient(db, 24*time.Hour, nil)

	rep := sampleReport()
	data, err := json.Marshal(rep)
	require.NoError(t, err)
	mock.ExpectSet("k", data, 24*time.Hour).SetVal("OK")

	require.NoError(t, c.Set(context.Background(), "k", rep))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSet_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWithClient(db, time.Minute, nil)

	rep := sampleReport()
	data, _ := json.Marshal(rep)
	mock.ExpectSet("k", data, time.Minute).SetErr(errors.New("READONLY"))

	assert.ErrorContains(t, c.Set(context.Background(), "k", rep), "READONLY")
}

func TestHealthCheck(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWithClient(db, 0, nil)
	mock.ExpectPing().SetVal("PONG")

	assert.NoError(t, c.HealthCheck(context.Background()))
	assert.NoError(t, c.Close())
}
