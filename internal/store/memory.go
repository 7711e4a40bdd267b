package store

import (
	"context"
	"sync"
)

// Memory is an in-process RoomStore for tests and single-node runs.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]RoomSnapshot
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{rooms: make(map[string]RoomSnapshot)}
}

func (m *Memory) SaveRoom(_ context.Context, snapshot RoomSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[snapshot.RoomID] = snapshot
	return nil
}

func (m *Memory) GetRoom(_ context.Context, roomID string) (RoomSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot, ok := m.rooms[roomID]
	if !ok {
		return RoomSnapshot{}, ErrRoomNotFound
	}
	return snapshot, nil
}

func (m *Memory) DeleteRoom(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
	return nil
}

func (m *Memory) Close() error { return nil }
