package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-race-service/internal/app"
	"trivia-race-service/internal/domain"
)

func TestRoomStoreClaimsAndReleasesTokens(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRoomStore(client, time.Hour)

	room := app.NewRoom("ABC123", nil, app.RoomDeps{})
	require.NoError(t, store.Create(context.Background(), room))
	assert.True(t, mr.Exists("trivia:room:ABC123"))
	assert.Equal(t, time.Hour, mr.TTL("trivia:room:ABC123"))

	got, ok := store.Get("ABC123")
	require.True(t, ok)
	assert.Same(t, room, got)
	assert.Equal(t, 1, store.Len())
	assert.Len(t, store.Rooms(), 1)

	store.Remove("ABC123")
	assert.False(t, mr.Exists("trivia:room:ABC123"))
	assert.Zero(t, store.Len())
}

func TestRoomStoreRejectsTokenClaimedElsewhere(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	first := NewRoomStore(client, time.Hour)
	second := NewRoomStore(client, time.Hour)

	require.NoError(t, first.Create(context.Background(), app.NewRoom("SHARED", nil, app.RoomDeps{})))

	err := second.Create(context.Background(), app.NewRoom("SHARED", nil, app.RoomDeps{}))
	assert.ErrorIs(t, err, domain.ErrRoomExists)
	_, ok := second.Get("SHARED")
	assert.False(t, ok)
}

func TestRoomStoreRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	store := NewRoomStore(client, time.Hour)
	mr.Close()

	err := store.Create(context.Background(), app.NewRoom("ABC123", nil, app.RoomDeps{}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRoomExists)
	assert.Zero(t, store.Len())
}

func TestRoomStoreRenewKeepsLiveClaims(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	first := NewRoomStore(client, time.Hour)
	second := NewRoomStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, first.Create(ctx, app.NewRoom("SHARED", nil, app.RoomDeps{})))

	for i := 0; i < 3; i++ {
		mr.FastForward(45 * time.Minute)
		lost, err := first.Renew(ctx)
		require.NoError(t, err)
		assert.Empty(t, lost)
	}
	assert.Equal(t, time.Hour, mr.TTL("trivia:room:SHARED"))

	err := second.Create(ctx, app.NewRoom("SHARED", nil, app.RoomDeps{}))
	assert.ErrorIs(t, err, domain.ErrRoomExists)
}

func TestRoomStoreRemoveLeavesForeignClaim(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	first := NewRoomStore(client, time.Hour)
	second := NewRoomStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, first.Create(ctx, app.NewRoom("SHARED", nil, app.RoomDeps{})))
	mr.FastForward(time.Hour + time.Second)
	require.False(t, mr.Exists("trivia:room:SHARED"))

	require.NoError(t, second.Create(ctx, app.NewRoom("SHARED", nil, app.RoomDeps{})))
	first.Remove("SHARED")

	assert.True(t, mr.Exists("trivia:room:SHARED"), "claim of the other instance must survive")
	_, ok := first.Get("SHARED")
	assert.False(t, ok)
}

func TestRoomStoreRenewReportsLostClaim(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	first := NewRoomStore(client, time.Hour)
	second := NewRoomStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, first.Create(ctx, app.NewRoom("ALPHA1", nil, app.RoomDeps{})))
	require.NoError(t, first.Create(ctx, app.NewRoom("BRAVO2", nil, app.RoomDeps{})))
	mr.FastForward(time.Hour + time.Second)
	require.NoError(t, second.Create(ctx, app.NewRoom("ALPHA1", nil, app.RoomDeps{})))

	lost, err := first.Renew(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ALPHA1"}, lost)
	assert.True(t, mr.Exists("trivia:room:BRAVO2"), "lapsed claim nobody took is taken back")
	assert.Equal(t, time.Hour, mr.TTL("trivia:room:BRAVO2"))
}
