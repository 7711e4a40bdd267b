// Package store persists room snapshots so clients can rejoin and
// operators can inspect rooms without touching live sessions.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrRoomNotFound is returned when no snapshot exists for a room.
var ErrRoomNotFound = errors.New("room not found")

// SeatSnapshot is one seat in a room snapshot.
type SeatSnapshot struct {
	UserID string `json:"user_id"`
	Seat   int    `json:"seat"`
	Stack  int    `json:"stack"`
}

// RoomSnapshot is the persisted view of a room. It is advisory: the
// session in memory is authoritative and every write supersedes the
// last, so there is no version check.
type RoomSnapshot struct {
	RoomID     string         `json:"room_id"`
	Variant    string         `json:"variant"`
	Status     string         `json:"status"`
	DealerSeat int            `json:"dealer_seat"`
	Pot        int            `json:"pot"`
	Round      int            `json:"round"`
	Players    []SeatSnapshot `json:"players"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// RoomStore persists room snapshots.
type RoomStore interface {
	SaveRoom(ctx context.Context, snapshot RoomSnapshot) error
	GetRoom(ctx context.Context, roomID string) (RoomSnapshot, error)
	DeleteRoom(ctx context.Context, roomID string) error
	Close() error
}
