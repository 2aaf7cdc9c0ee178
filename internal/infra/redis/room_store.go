package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trivia-race-service/internal/app"
	"trivia-race-service/internal/domain"
	"trivia-race-service/internal/infra/memory"
)

// releaseScript deletes a claim only while this instance still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends an owned claim, or takes it back if it lapsed and nobody else grabbed it.
var renewScript = redis.NewScript(`
local owner = redis.call("GET", KEYS[1])
if owner == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if not owner then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
end
return 0
`)

// RoomStore is a Redis-aware implementation of app.RoomRegistry.
// Notes:
//   - Rooms live in a local sharded map; their goroutines, timers and
//     subscribers cannot move between processes.
//   - Redis holds one key per token, claimed with SET NX under this
//     instance's owner id, so two instances sharing a Redis never hand out
//     the same token. KeepAlive renews the claims of live rooms.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	owner  string
	local  *memory.RoomStore
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		owner:  uuid.NewString(),
		local:  memory.NewRoomStore(),
	}
}

func (s *RoomStore) Create(ctx context.Context, room *app.Room) error {
	claimed, err := s.client.SetNX(ctx, s.key(room.Token()), s.owner, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim room token: %w", err)
	}
	if !claimed {
		return domain.ErrRoomExists
	}
	if err := s.local.Create(ctx, room); err != nil {
		_ = s.release(ctx, room.Token())
		return err
	}
	return nil
}

func (s *RoomStore) Get(token string) (*app.Room, bool) {
	return s.local.Get(token)
}

func (s *RoomStore) Remove(token string) {
	s.local.Remove(token)
	// best-effort release; an unrenewed claim also expires on its own
	_ = s.release(context.Background(), token)
}

func (s *RoomStore) Rooms() []*app.Room {
	return s.local.Rooms()
}

func (s *RoomStore) Len() int {
	return s.local.Len()
}

// KeepAlive renews the claims of every live room each interval until ctx is done.
func (s *RoomStore) KeepAlive(ctx context.Context, interval time.Duration, log zerolog.Logger) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			lost, err := s.Renew(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("room claim renewal failed")
			}
			for _, token := range lost {
				log.Warn().Str("room", token).Msg("room token claimed by another instance")
			}
		}
	}
}

// Renew extends the claim of every live room and returns the tokens whose
// claim is now held by another instance.
func (s *RoomStore) Renew(ctx context.Context) ([]string, error) {
	if s.ttl <= 0 {
		// claims without a ttl never lapse
		return nil, nil
	}
	var lost []string
	for _, room := range s.local.Rooms() {
		ok, err := renewScript.Run(ctx, s.client, []string{s.key(room.Token())}, s.owner, s.ttl.Milliseconds()).Int()
		if err != nil {
			return lost, fmt.Errorf("renew room claim: %w", err)
		}
		if ok == 0 {
			lost = append(lost, room.Token())
		}
	}
	return lost, nil
}

func (s *RoomStore) release(ctx context.Context, token string) error {
	return releaseScript.Run(ctx, s.client, []string{s.key(token)}, s.owner).Err()
}

func (s *RoomStore) key(token string) string {
	return "trivia:room:" + token
}
