package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/seeitsmanish/SongCircle/internal/core"
	"github.com/seeitsmanish/SongCircle/internal/domain"
	"github.com/seeitsmanish/SongCircle/internal/store"
)

type fakeDirectory struct {
	admins map[domain.RoomName]domain.ParticipantID
}

func (d *fakeDirectory) FindAdminForRoom(_ context.Context, name domain.RoomName) (domain.ParticipantID, error) {
	admin, ok := d.admins[name]
	if !ok {
		return "", core.ErrRoomNotRegistered
	}
	return admin, nil
}

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func newCoordinator(t *testing.T, admins map[domain.RoomName]domain.ParticipantID) (*core.SessionCoordinator, *core.ConnectionRegistry) {
	t.Helper()
	registry := core.NewConnectionRegistry()
	coord := core.NewSessionCoordinator(store.NewMemory(), &fakeDirectory{admins: admins}, registry)
	return coord, registry
}

func track(id string) domain.Track {
	return domain.Track{ID: id, SourceID: "src-" + id, Title: id, Platform: "youtube"}
}

func TestJoinUnregisteredRoom(t *testing.T) {
	coord, _ := newCoordinator(t, nil)
	_, err := coord.Join(context.Background(), "no-such-room", "alice", &fakeConn{})
	if !errors.Is(err, core.ErrRoomNotRegistered) {
		t.Fatalf("expected ErrRoomNotRegistered, got %v", err)
	}
}

func TestJoinSetsAdminPresence(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(t, map[domain.RoomName]domain.ParticipantID{"jazz-lounge": "admin-a"})

	res, err := coord.Join(ctx, "jazz-lounge", "admin-a", &fakeConn{})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if !res.IsAdmin {
		t.Error("admin join should report IsAdmin")
	}
	if !res.View.AdminPresent {
		t.Error("admin join should set admin presence")
	}
	if res.View.CurrentTrack != nil || len(res.View.Queue) != 0 {
		t.Error("fresh session should have empty playback state")
	}

	viewer, err := coord.Join(ctx, "jazz-lounge", "bob", &fakeConn{})
	if err != nil {
		t.Fatalf("viewer join: %v", err)
	}
	if viewer.IsAdmin {
		t.Error("viewer join must not report IsAdmin")
	}
	if !viewer.View.AdminPresent {
		t.Error("viewer join must not clear admin presence")
	}
}

func TestJoinIsIdempotentForMembership(t *testing.T) {
	ctx := context.Background()
	coord, registry := newCoordinator(t, map[domain.RoomName]domain.ParticipantID{"jazz-lounge": "admin-a"})

	c1, c2 := &fakeConn{}, &fakeConn{}
	if _, err := coord.Join(ctx, "jazz-lounge", "bob", c1); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := coord.Join(ctx, "jazz-lounge", "bob", c2); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	view, err := coord.GetState(ctx, "jazz-lounge")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if len(view.Members) != 1 {
		t.Errorf("members = %v, want exactly one entry for bob", view.Members)
	}
	if got := registry.ConnCount("jazz-lounge"); got != 2 {
		t.Errorf("registry connections = %d, want 2 (both sockets stay registered)", got)
	}
}

func TestAddToQueuePromotesWhenIdle(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(t, map[domain.RoomName]domain.ParticipantID{"jazz-lounge": "admin-a"})
	if _, err := coord.Join(ctx, "jazz-lounge", "bob", &fakeConn{}); err != nil {
		t.Fatalf("join: %v", err)
	}

	view, err := coord.AddToQueue(ctx, "jazz-lounge", "bob", track("x"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if view.CurrentTrack == nil || view.CurrentTrack.ID != "x" {
		t.Fatalf("current = %+v, want track x promoted", view.CurrentTrack)
	}
	if len(view.Queue) != 0 {
		t.Errorf("queue = %v, want empty after promotion", view.Queue)
	}

	view, err = coord.AddToQueue(ctx, "jazz-lounge", "bob", track("y"))
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if view.CurrentTrack.ID != "x" {
		t.Errorf("current changed to %q, want x untouched", view.CurrentTrack.ID)
	}
	if len(view.Queue) != 1 || view.Queue[0].ID != "y" {
		t.Errorf("queue = %+v, want [y]", view.Queue)
	}
}

func TestAddToQueueRejectsNonMember(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(t, map[domain.RoomName]domain.ParticipantID{"jazz-lounge": "admin-a"})
	if _, err := coord.Join(ctx, "jazz-lounge", "bob", &fakeConn{}); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := coord.AddToQueue(ctx, "jazz-lounge", "mallory", track("x")); !errors.Is(err, core.ErrNotMember) {
		t.Errorf("non-member add: got %v, want ErrNotMember", err)
	}
	if _, err := coord.AddToQueue(ctx, "empty-room", "bob", track("x")); !errors.Is(err, core.ErrRoomNotRegistered) {
		t.Errorf("unknown room add: got %v, want ErrRoomNotRegistered", err)
	}
}

func TestAdvanceQueue(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(t, map[domain.RoomName]domain.ParticipantID{"jazz-lounge": "admin-a"})
	if _, err := coord.Join(ctx, "jazz-lounge", "bob", &fakeConn{}); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Advancing with nothing queued clears nothing and does not error.
	view, err := coord.AdvanceQueue(ctx, "jazz-lounge", "bob")
	if err != nil {
		t.Fatalf("advance on empty: %v", err)
	}
	if view.CurrentTrack != nil {
		t.Errorf("current = %+v, want nil", view.CurrentTrack)
	}

	for _, id := range []string{"x", "y", "z"} {
		if _, err := coord.AddToQueue(ctx, "jazz-lounge", "bob", track(id)); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	view, err = coord.AdvanceQueue(ctx, "jazz-lounge", "bob")
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if view.CurrentTrack.ID != "y" {
		t.Errorf("current = %q, want y (queue head)", view.CurrentTrack.ID)
	}
	if len(view.Queue) != 1 || view.Queue[0].ID != "z" {
		t.Errorf("queue = %+v, want [z]", view.Queue)
	}

	// Drain the rest, then confirm the empty-queue advance clears current.
	if view, err = coord.AdvanceQueue(ctx, "jazz-lounge", "bob"); err != nil || view.CurrentTrack.ID != "z" {
		t.Fatalf("advance to z: view=%+v err=%v", view, err)
	}
	if view, err = coord.AdvanceQueue(ctx, "jazz-lounge", "bob"); err != nil || view.CurrentTrack != nil {
		t.Fatalf("final advance: current=%+v err=%v, want cleared", view.CurrentTrack, err)
	}
}

func TestAdminLeaveClearsPlayback(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(t, map[domain.RoomName]domain.ParticipantID{"jazz-lounge": "admin-a"})

	adminConn := &fakeConn{}
	if _, err := coord.Join(ctx, "jazz-lounge", "admin-a", adminConn); err != nil {
		t.Fatalf("admin join: %v", err)
	}
	if _, err := coord.Join(ctx, "jazz-lounge", "bob", &fakeConn{}); err != nil {
		t.Fatalf("viewer join: %v", err)
	}
	if _, err := coord.AddToQueue(ctx, "jazz-lounge", "bob", track("x")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := coord.AddToQueue(ctx, "jazz-lounge", "bob", track("y")); err != nil {
		t.Fatalf("add: %v", err)
	}

	res, err := coord.Leave(ctx, "jazz-lounge", "admin-a", adminConn)
	if err != nil {
		t.Fatalf("admin leave: %v", err)
	}
	if !res.AdminLeft || res.RoomDeleted {
		t.Fatalf("result = %+v, want AdminLeft without teardown", res)
	}
	if res.View.AdminPresent {
		t.Error("admin presence should be cleared")
	}
	if res.View.CurrentTrack != nil || len(res.View.Queue) != 0 {
		t.Errorf("playback should be cleared, got current=%+v queue=%+v", res.View.CurrentTrack, res.View.Queue)
	}
	if len(res.View.Members) != 1 {
		t.Errorf("members = %v, want bob still present", res.View.Members)
	}
}

func TestLeaveByNonMemberKeepsPlayback(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(t, map[domain.RoomName]domain.ParticipantID{"jazz-lounge": "admin-a"})

	if _, err := coord.Join(ctx, "jazz-lounge", "bob", &fakeConn{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	for _, id := range []string{"x", "y"} {
		if _, err := coord.AddToQueue(ctx, "jazz-lounge", "bob", track(id)); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	// The admin authenticated a socket but never joined; its disconnect
	// must not count as the admin leaving.
	res, err := coord.Leave(ctx, "jazz-lounge", "admin-a", &fakeConn{})
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if res.AdminLeft || res.RoomDeleted {
		t.Fatalf("result = %+v, want clean no-op", res)
	}

	view, err := coord.GetState(ctx, "jazz-lounge")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if view.CurrentTrack == nil || view.CurrentTrack.ID != "x" {
		t.Errorf("current = %+v, want track x intact", view.CurrentTrack)
	}
	if len(view.Queue) != 1 || view.Queue[0].ID != "y" {
		t.Errorf("queue = %+v, want [y] intact", view.Queue)
	}
	if len(view.Members) != 1 {
		t.Errorf("members = %v, want bob untouched", view.Members)
	}
}

func TestLastLeaveTearsDownRoom(t *testing.T) {
	ctx := context.Background()
	coord, registry := newCoordinator(t, map[domain.RoomName]domain.ParticipantID{"jazz-lounge": "admin-a"})

	conn := &fakeConn{}
	if _, err := coord.Join(ctx, "jazz-lounge", "bob", conn); err != nil {
		t.Fatalf("join: %v", err)
	}

	res, err := coord.Leave(ctx, "jazz-lounge", "bob", conn)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if !res.RoomDeleted {
		t.Fatal("last leave should delete the room record")
	}
	if got := registry.ConnCount("jazz-lounge"); got != 0 {
		t.Errorf("registry connections = %d, want 0", got)
	}

	// The record is gone; events against it now fail as unregistered...
	if _, err := coord.AddToQueue(ctx, "jazz-lounge", "bob", track("x")); !errors.Is(err, core.ErrRoomNotRegistered) {
		t.Errorf("post-teardown add: got %v, want ErrRoomNotRegistered", err)
	}
	// ...and a repeated leave is a harmless no-op.
	if res, err := coord.Leave(ctx, "jazz-lounge", "bob", conn); err != nil || res.RoomDeleted || res.AdminLeft {
		t.Errorf("repeated leave: res=%+v err=%v, want clean no-op", res, err)
	}
}

// The walkthrough from the design discussion: admin A and viewer B share
// jazz-lounge end to end.
func TestRoomSessionScenario(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(t, map[domain.RoomName]domain.ParticipantID{"jazz-lounge": "admin-a"})
	connA, connB := &fakeConn{}, &fakeConn{}

	resA, err := coord.Join(ctx, "jazz-lounge", "admin-a", connA)
	if err != nil || !resA.View.AdminPresent {
		t.Fatalf("A join: res=%+v err=%v", resA, err)
	}

	resB, err := coord.Join(ctx, "jazz-lounge", "b", connB)
	if err != nil {
		t.Fatalf("B join: %v", err)
	}
	if len(resB.View.Members) != 2 || !resB.View.AdminPresent {
		t.Fatalf("after B join: members=%v adminPresent=%v", resB.View.Members, resB.View.AdminPresent)
	}

	view, err := coord.AddToQueue(ctx, "jazz-lounge", "b", track("x"))
	if err != nil || view.CurrentTrack.ID != "x" {
		t.Fatalf("add x: view=%+v err=%v", view, err)
	}
	view, err = coord.AddToQueue(ctx, "jazz-lounge", "b", track("y"))
	if err != nil || len(view.Queue) != 1 || view.Queue[0].ID != "y" {
		t.Fatalf("add y: view=%+v err=%v", view, err)
	}

	view, err = coord.AdvanceQueue(ctx, "jazz-lounge", "b")
	if err != nil || view.CurrentTrack.ID != "y" || len(view.Queue) != 0 {
		t.Fatalf("advance: view=%+v err=%v", view, err)
	}

	resLeave, err := coord.Leave(ctx, "jazz-lounge", "admin-a", connA)
	if err != nil || !resLeave.AdminLeft {
		t.Fatalf("A leave: res=%+v err=%v", resLeave, err)
	}
	if resLeave.View.AdminPresent || resLeave.View.CurrentTrack != nil || len(resLeave.View.Queue) != 0 {
		t.Fatalf("after A leave: view=%+v, want cleared playback", resLeave.View)
	}

	resFinal, err := coord.Leave(ctx, "jazz-lounge", "b", connB)
	if err != nil || !resFinal.RoomDeleted {
		t.Fatalf("B leave: res=%+v err=%v, want full teardown", resFinal, err)
	}
}

// Concurrent adds to one room must serialize their check-then-act on the
// current-track slot: exactly one promotion, the rest queued.
func TestConcurrentAddsSerializePerRoom(t *testing.T) {
	ctx := context.Background()
	coord, _ := newCoordinator(t, map[domain.RoomName]domain.ParticipantID{"jazz-lounge": "admin-a"})
	if _, err := coord.Join(ctx, "jazz-lounge", "bob", &fakeConn{}); err != nil {
		t.Fatalf("join: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := coord.AddToQueue(ctx, "jazz-lounge", "bob", track(string(rune('a'+i)))); err != nil {
				t.Errorf("concurrent add: %v", err)
			}
		}(i)
	}
	wg.Wait()

	view, err := coord.GetState(ctx, "jazz-lounge")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if view.CurrentTrack == nil {
		t.Fatal("one track should be promoted")
	}
	if len(view.Queue) != n-1 {
		t.Errorf("queue length = %d, want %d", len(view.Queue), n-1)
	}
}
