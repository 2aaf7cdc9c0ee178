package memory

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"

	"trivia-race-service/internal/app"
	"trivia-race-service/internal/domain"
)

const shardCount = 32

// RoomStore is an in-memory implementation of app.RoomRegistry. Tokens are
// spread over shards so rooms in different shards never share a lock.
type RoomStore struct {
	shards [shardCount]roomShard
}

type roomShard struct {
	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomStore() *RoomStore {
	s := &RoomStore{}
	for i := range s.shards {
		s.shards[i].rooms = make(map[string]*app.Room)
	}
	return s
}

func (s *RoomStore) shard(token string) *roomShard {
	return &s.shards[xxhash.Sum64String(token)%shardCount]
}

func (s *RoomStore) Create(_ context.Context, room *app.Room) error {
	sh := s.shard(room.Token())
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.rooms[room.Token()]; ok {
		return domain.ErrRoomExists
	}
	sh.rooms[room.Token()] = room
	return nil
}

func (s *RoomStore) Get(token string) (*app.Room, bool) {
	sh := s.shard(token)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	room, ok := sh.rooms[token]
	return room, ok
}

func (s *RoomStore) Remove(token string) {
	sh := s.shard(token)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.rooms, token)
}

func (s *RoomStore) Rooms() []*app.Room {
	var out []*app.Room
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, room := range sh.rooms {
			out = append(out, room)
		}
		sh.mu.RUnlock()
	}
	return out
}

func (s *RoomStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.rooms)
		sh.mu.RUnlock()
	}
	return n
}
