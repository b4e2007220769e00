package core

import (
	"context"
	"errors"

	"github.com/seeitsmanish/SongCircle/internal/domain"
)

// Frame is a raw outbound payload (marshaled JSON envelope).
type Frame []byte

var (
	// ErrNotFound is returned by KeyedStore for a missing scalar or an
	// empty list pop.
	ErrNotFound = errors.New("not found")

	// ErrRoomNotRegistered means the room has no record in the external
	// registry, so a session cannot be created for it.
	ErrRoomNotRegistered = errors.New("room is not registered")

	// ErrNotMember means the acting participant never joined the room.
	// The transport treats this as a protocol violation and closes the
	// connection.
	ErrNotMember = errors.New("participant is not a member of the room")

	ErrBackpressure = errors.New("backpressure")
)

// SignalConnection abstracts the messaging transport endpoint.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// KeyedStore is the keyed state abstraction the coordinator persists room
// sessions in. Keys are plain strings; the coordinator owns namespacing.
// Backed by redis in production and by an in-memory map in tests.
type KeyedStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error

	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SCard(ctx context.Context, key string) (int64, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)

	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	RPush(ctx context.Context, key, value string) error
	LPush(ctx context.Context, key, value string) error
	LPop(ctx context.Context, key string) (string, error)
	LRange(ctx context.Context, key string) ([]string, error)
}

// RoomDirectory is the persistent room registry consumed by the
// coordinator to seed a session's admin on first join.
type RoomDirectory interface {
	FindAdminForRoom(ctx context.Context, name domain.RoomName) (domain.ParticipantID, error)
}

// TokenVerifier resolves an auth token to a participant identity at
// connection-bind time.
type TokenVerifier interface {
	Verify(token string) (domain.ParticipantID, error)
}
