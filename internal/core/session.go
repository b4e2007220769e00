package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/seeitsmanish/SongCircle/internal/domain"
)

// Store key suffixes under the per-room prefix.
const (
	fieldAdminID      = "admin_id"
	fieldAdminPresent = "admin_present"
)

func membersKey(room domain.RoomName) string { return "room:" + string(room) + ":members" }
func metaKey(room domain.RoomName) string    { return "room:" + string(room) + ":meta" }
func queueKey(room domain.RoomName) string   { return "room:" + string(room) + ":queue" }
func currentKey(room domain.RoomName) string { return "room:" + string(room) + ":current" }

// SessionView is the assembled state of one room session.
type SessionView struct {
	Members      []domain.ParticipantID
	AdminID      domain.ParticipantID
	AdminPresent bool
	CurrentTrack *domain.Track
	Queue        []domain.Track
}

// RoomState projects the view into the wire shape. The member list stays
// server-side.
func (v SessionView) RoomState() RoomState {
	return RoomState{
		CurrentTrack: v.CurrentTrack,
		Queue:        v.Queue,
		AdminPresent: v.AdminPresent,
	}
}

type JoinResult struct {
	View SessionView
	// IsAdmin is true when the joining participant is the room's admin;
	// the adapter then announces the arrival to everyone else.
	IsAdmin bool
}

type LeaveResult struct {
	// RoomDeleted means membership emptied and the whole session record
	// was torn down; there is no one left to notify.
	RoomDeleted bool
	// AdminLeft means the departing participant was the admin: playback
	// state was cleared and the remaining members need a notice.
	AdminLeft bool
	View      SessionView
}

// SessionCoordinator is the room state machine. It validates events
// against the keyed store and the connection registry, mutates session
// state, and tells the caller what to broadcast. All operations for one
// room are serialized through a per-room mutex; different rooms never
// contend.
type SessionCoordinator struct {
	store     KeyedStore
	directory RoomDirectory
	registry  *ConnectionRegistry

	mu    sync.Mutex
	locks map[domain.RoomName]*sync.Mutex
}

func NewSessionCoordinator(store KeyedStore, directory RoomDirectory, registry *ConnectionRegistry) *SessionCoordinator {
	return &SessionCoordinator{
		store:     store,
		directory: directory,
		registry:  registry,
		locks:     make(map[domain.RoomName]*sync.Mutex),
	}
}

// lockRoom returns the unlock func for the room's mutex. Lock entries are
// kept for the process lifetime; room names are bounded by the registry.
func (c *SessionCoordinator) lockRoom(room domain.RoomName) func() {
	c.mu.Lock()
	l, ok := c.locks[room]
	if !ok {
		l = &sync.Mutex{}
		c.locks[room] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Join ensures the session record exists (seeding the admin from the room
// directory on first join), adds the participant to the membership set and
// registers the connection. Rejoining an existing member is a no-op for
// membership but still re-registers the connection.
func (c *SessionCoordinator) Join(ctx context.Context, room domain.RoomName, pid domain.ParticipantID, conn SignalConnection) (JoinResult, error) {
	defer c.lockRoom(room)()

	meta, err := c.store.HGetAll(ctx, metaKey(room))
	if err != nil {
		return JoinResult{}, c.storeFail(room, "join", err)
	}
	adminID := domain.ParticipantID(meta[fieldAdminID])
	if adminID == "" {
		adminID, err = c.directory.FindAdminForRoom(ctx, room)
		if err != nil {
			log.Warn().Err(err).Str("module", "core.session").Str("room", string(room)).Msg("admin lookup failed")
			if errors.Is(err, ErrRoomNotRegistered) {
				return JoinResult{}, ErrRoomNotRegistered
			}
			return JoinResult{}, fmt.Errorf("admin lookup for %q: %w", room, err)
		}
		fields := map[string]string{fieldAdminID: string(adminID), fieldAdminPresent: "0"}
		if err := c.store.HSet(ctx, metaKey(room), fields); err != nil {
			return JoinResult{}, c.storeFail(room, "join", err)
		}
	}

	if err := c.store.SAdd(ctx, membersKey(room), string(pid)); err != nil {
		return JoinResult{}, c.storeFail(room, "join", err)
	}

	isAdmin := pid == adminID
	if isAdmin {
		if err := c.store.HSet(ctx, metaKey(room), map[string]string{fieldAdminPresent: "1"}); err != nil {
			return JoinResult{}, c.storeFail(room, "join", err)
		}
	}
	c.registry.Register(room, pid, conn, isAdmin)

	view, err := c.getState(ctx, room)
	if err != nil {
		return JoinResult{}, err
	}
	log.Info().Str("module", "core.session").Str("room", string(room)).Str("participant", string(pid)).Bool("is_admin", isAdmin).Msg("joined room")
	return JoinResult{View: view, IsAdmin: isAdmin}, nil
}

// Leave unregisters the connection and removes the participant from the
// membership set. The last member out tears the whole record down. The
// admin leaving clears playback but keeps the session alive for the rest.
// Safe to call more than once per connection.
func (c *SessionCoordinator) Leave(ctx context.Context, room domain.RoomName, pid domain.ParticipantID, conn SignalConnection) (LeaveResult, error) {
	defer c.lockRoom(room)()

	c.registry.Unregister(room, conn)

	meta, err := c.store.HGetAll(ctx, metaKey(room))
	if err != nil {
		return LeaveResult{}, c.storeFail(room, "leave", err)
	}
	if len(meta) == 0 {
		// Session already gone; nothing to unwind.
		return LeaveResult{}, nil
	}
	member, err := c.store.SIsMember(ctx, membersKey(room), string(pid))
	if err != nil {
		return LeaveResult{}, c.storeFail(room, "leave", err)
	}
	if !member {
		// A connection that authenticated but never joined has no session
		// state to unwind, even when it belongs to the admin.
		return LeaveResult{}, nil
	}

	if err := c.store.SRem(ctx, membersKey(room), string(pid)); err != nil {
		return LeaveResult{}, c.storeFail(room, "leave", err)
	}
	remaining, err := c.store.SCard(ctx, membersKey(room))
	if err != nil {
		return LeaveResult{}, c.storeFail(room, "leave", err)
	}
	if remaining == 0 {
		if err := c.store.Del(ctx, membersKey(room), metaKey(room), queueKey(room), currentKey(room)); err != nil {
			return LeaveResult{}, c.storeFail(room, "leave", err)
		}
		c.registry.DropRoom(room)
		log.Info().Str("module", "core.session").Str("room", string(room)).Msg("room torn down")
		return LeaveResult{RoomDeleted: true}, nil
	}

	adminLeft := meta[fieldAdminID] == string(pid)
	if adminLeft {
		// No unattended playback: the queue dies with the admin.
		if err := c.store.HSet(ctx, metaKey(room), map[string]string{fieldAdminPresent: "0"}); err != nil {
			return LeaveResult{}, c.storeFail(room, "leave", err)
		}
		if err := c.store.Del(ctx, queueKey(room), currentKey(room)); err != nil {
			return LeaveResult{}, c.storeFail(room, "leave", err)
		}
		log.Info().Str("module", "core.session").Str("room", string(room)).Msg("admin left, playback cleared")
	}

	view, err := c.getState(ctx, room)
	if err != nil {
		return LeaveResult{}, err
	}
	return LeaveResult{AdminLeft: adminLeft, View: view}, nil
}

// AddToQueue appends a track, or promotes it straight to the current slot
// when nothing is playing. Only members of an existing session may add.
func (c *SessionCoordinator) AddToQueue(ctx context.Context, room domain.RoomName, pid domain.ParticipantID, track domain.Track) (SessionView, error) {
	defer c.lockRoom(room)()

	if err := c.requireMember(ctx, room, pid); err != nil {
		return SessionView{}, err
	}
	raw, err := json.Marshal(track)
	if err != nil {
		return SessionView{}, fmt.Errorf("encode track: %w", err)
	}

	_, err = c.store.Get(ctx, currentKey(room))
	switch {
	case errors.Is(err, ErrNotFound):
		if err := c.store.Set(ctx, currentKey(room), string(raw)); err != nil {
			return SessionView{}, c.storeFail(room, "add_to_queue", err)
		}
	case err != nil:
		return SessionView{}, c.storeFail(room, "add_to_queue", err)
	default:
		if err := c.store.RPush(ctx, queueKey(room), string(raw)); err != nil {
			return SessionView{}, c.storeFail(room, "add_to_queue", err)
		}
	}

	log.Info().Str("module", "core.session").Str("room", string(room)).Str("participant", string(pid)).Str("track", track.ID).Msg("track added")
	return c.getState(ctx, room)
}

// AdvanceQueue pops the queue head into the current slot. On an empty
// queue it just clears the current track; calling it again is harmless.
func (c *SessionCoordinator) AdvanceQueue(ctx context.Context, room domain.RoomName, pid domain.ParticipantID) (SessionView, error) {
	defer c.lockRoom(room)()

	if err := c.requireMember(ctx, room, pid); err != nil {
		return SessionView{}, err
	}

	head, err := c.store.LPop(ctx, queueKey(room))
	switch {
	case errors.Is(err, ErrNotFound):
		if err := c.store.Del(ctx, currentKey(room)); err != nil {
			return SessionView{}, c.storeFail(room, "advance", err)
		}
	case err != nil:
		return SessionView{}, c.storeFail(room, "advance", err)
	default:
		if err := c.store.Set(ctx, currentKey(room), head); err != nil {
			return SessionView{}, c.storeFail(room, "advance", err)
		}
	}

	log.Info().Str("module", "core.session").Str("room", string(room)).Msg("queue advanced")
	return c.getState(ctx, room)
}

// GetState assembles the full session view from the store. Reads happen
// after every mutation rather than from a cached copy.
func (c *SessionCoordinator) GetState(ctx context.Context, room domain.RoomName) (SessionView, error) {
	defer c.lockRoom(room)()
	return c.getState(ctx, room)
}

func (c *SessionCoordinator) requireMember(ctx context.Context, room domain.RoomName, pid domain.ParticipantID) error {
	meta, err := c.store.HGetAll(ctx, metaKey(room))
	if err != nil {
		return c.storeFail(room, "member_check", err)
	}
	if len(meta) == 0 {
		return ErrRoomNotRegistered
	}
	member, err := c.store.SIsMember(ctx, membersKey(room), string(pid))
	if err != nil {
		return c.storeFail(room, "member_check", err)
	}
	if !member {
		return ErrNotMember
	}
	return nil
}

func (c *SessionCoordinator) getState(ctx context.Context, room domain.RoomName) (SessionView, error) {
	members, err := c.store.SMembers(ctx, membersKey(room))
	if err != nil {
		return SessionView{}, c.storeFail(room, "get_state", err)
	}
	meta, err := c.store.HGetAll(ctx, metaKey(room))
	if err != nil {
		return SessionView{}, c.storeFail(room, "get_state", err)
	}
	rawQueue, err := c.store.LRange(ctx, queueKey(room))
	if err != nil {
		return SessionView{}, c.storeFail(room, "get_state", err)
	}

	view := SessionView{
		AdminID:      domain.ParticipantID(meta[fieldAdminID]),
		AdminPresent: meta[fieldAdminPresent] == "1",
		Queue:        make([]domain.Track, 0, len(rawQueue)),
	}
	for _, m := range members {
		view.Members = append(view.Members, domain.ParticipantID(m))
	}
	for _, raw := range rawQueue {
		var t domain.Track
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return SessionView{}, fmt.Errorf("decode queued track: %w", err)
		}
		view.Queue = append(view.Queue, t)
	}

	cur, err := c.store.Get(ctx, currentKey(room))
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return SessionView{}, c.storeFail(room, "get_state", err)
	default:
		var t domain.Track
		if err := json.Unmarshal([]byte(cur), &t); err != nil {
			return SessionView{}, fmt.Errorf("decode current track: %w", err)
		}
		view.CurrentTrack = &t
	}
	return view, nil
}

func (c *SessionCoordinator) storeFail(room domain.RoomName, op string, err error) error {
	log.Error().Err(err).Str("module", "core.session").Str("room", string(room)).Str("op", op).Msg("store failure")
	return fmt.Errorf("store %s for %q: %w", op, room, err)
}
