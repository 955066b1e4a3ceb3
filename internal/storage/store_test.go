package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	store, err := NewSQLiteStore(logger, filepath.Join(t.TempDir(), "upmon.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_TargetLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	target := &model.Target{
		Name:            "web",
		Address:         "https://example.com",
		CheckType:       model.CheckHTTP,
		IntervalSeconds: 60,
		Enabled:         true,
		MaxFailures:     3,
	}
	require.NoError(t, store.CreateTarget(ctx, target))
	require.NotZero(t, target.ID)

	got, err := store.Get(ctx, target.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "web", got.Name)
	require.Equal(t, model.CheckHTTP, got.CheckType)
	require.Equal(t, 3, got.MaxFailures)
	require.True(t, got.Enabled)
	require.Nil(t, got.LastCheckTime)
	require.Equal(t, model.StatusUnknown, got.LastCheckStatus)

	// Unknown ID is nil, not an error
	missing, err := store.Get(ctx, 9999)
	require.NoError(t, err)
	require.Nil(t, missing)

	got.Address = "https://example.org"
	got.Enabled = false
	require.NoError(t, store.UpdateTarget(ctx, got))

	updated, err := store.Get(ctx, target.ID)
	require.NoError(t, err)
	require.Equal(t, "https://example.org", updated.Address)
	require.False(t, updated.Enabled)
}

func TestSQLiteStore_ListEnabled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	enabled := &model.Target{Name: "on", Address: "a", CheckType: model.CheckHTTP, Enabled: true, MaxFailures: 1}
	disabled := &model.Target{Name: "off", Address: "b", CheckType: model.CheckHTTP, Enabled: false, MaxFailures: 1}
	require.NoError(t, store.CreateTarget(ctx, enabled))
	require.NoError(t, store.CreateTarget(ctx, disabled))

	targets, err := store.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, "on", targets[0].Name)
}

func TestSQLiteStore_UpdateCheckResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	target := &model.Target{Name: "web", Address: "a", CheckType: model.CheckHTTP, Enabled: true, MaxFailures: 1}
	require.NoError(t, store.CreateTarget(ctx, target))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.UpdateCheckResult(ctx, target.ID, true, now))
	require.NoError(t, store.UpdateCheckResult(ctx, target.ID, true, now))
	require.NoError(t, store.UpdateCheckResult(ctx, target.ID, false, now))

	got, err := store.Get(ctx, target.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.SuccessCount)
	require.Equal(t, int64(1), got.FailureCount)
	require.Equal(t, model.StatusDown, got.LastCheckStatus)
	require.NotNil(t, got.LastCheckTime)
}

func TestSQLiteStore_Pause(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	target := &model.Target{Name: "web", Address: "a", CheckType: model.CheckHTTP, Enabled: true, MaxFailures: 1}
	require.NoError(t, store.CreateTarget(ctx, target))

	until := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, store.SetPaused(ctx, target.ID, &until))

	got, err := store.Get(ctx, target.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PausedUntil)
	require.True(t, got.Paused(time.Now()))

	require.NoError(t, store.SetPaused(ctx, target.ID, nil))
	got, err = store.Get(ctx, target.ID)
	require.NoError(t, err)
	require.Nil(t, got.PausedUntil)
}

func TestSQLiteStore_Channels(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	target := &model.Target{Name: "web", Address: "a", CheckType: model.CheckHTTP, Enabled: true, MaxFailures: 1}
	require.NoError(t, store.CreateTarget(ctx, target))

	hook := &model.Channel{Name: "ops-hook", Kind: model.ChannelWebhook, Endpoint: "https://hooks.example.com/x", Active: true}
	bot := &model.Channel{Name: "ops-bot", Kind: model.ChannelChatBot, Endpoint: "token,chat", Active: true}
	require.NoError(t, store.CreateChannel(ctx, hook))
	require.NoError(t, store.CreateChannel(ctx, bot))

	require.NoError(t, store.LinkChannel(ctx, target.ID, hook.ID))
	require.NoError(t, store.LinkChannel(ctx, target.ID, bot.ID))
	// Linking twice is harmless
	require.NoError(t, store.LinkChannel(ctx, target.ID, hook.ID))

	channels, err := store.ChannelsFor(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	require.Equal(t, model.ChannelWebhook, channels[0].Kind)
	require.Equal(t, model.ChannelChatBot, channels[1].Kind)

	// A target with no links has no channels
	other := &model.Target{Name: "db", Address: "b", CheckType: model.CheckTCPOpen, Enabled: true, MaxFailures: 1}
	require.NoError(t, store.CreateTarget(ctx, other))
	channels, err = store.ChannelsFor(ctx, other.ID)
	require.NoError(t, err)
	require.Empty(t, channels)
}

func TestSQLiteStore_HistoryAndRetention(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	target := &model.Target{Name: "web", Address: "a", CheckType: model.CheckHTTP, Enabled: true, MaxFailures: 1}
	require.NoError(t, store.CreateTarget(ctx, target))

	now := time.Now().UTC()
	old := now.Add(-40 * 24 * time.Hour)

	require.NoError(t, store.RecordCheck(ctx, target.ID, model.CheckHTTP,
		model.Outcome{Success: true, Latency: 50 * time.Millisecond, Message: "ok"}, old))
	require.NoError(t, store.RecordCheck(ctx, target.ID, model.CheckHTTP,
		model.Failure(model.FailureTransient, "timeout"), now))

	records, err := store.ListHistory(ctx, target.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first
	require.False(t, records[0].Success)
	require.Equal(t, model.FailureTransient, records[0].FailureKind)
	require.True(t, records[1].Success)
	require.Equal(t, 50*time.Millisecond, records[1].Latency)

	// Retention sweep drops only the old row
	require.NoError(t, store.DeleteHistoryBefore(ctx, now.Add(-30*24*time.Hour)))
	records, err = store.ListHistory(ctx, target.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.False(t, records[0].Success)
}
