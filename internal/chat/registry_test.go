package chat

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akarpov/roomcast/internal/protocol"
)

func newTestRegistry() *Registry {
	return NewRegistry(8, testLogger())
}

func addSession(r *Registry) (*Session, *fakeConn) {
	conn := &fakeConn{}
	s := newSession(conn, 8, testLogger())
	r.add(s)
	return s, conn
}

func TestRegistryClaimNameExclusive(t *testing.T) {
	req := require.New(t)
	r := newTestRegistry()
	alice, _ := addSession(r)
	rival, _ := addSession(r)

	req.NoError(r.claimName(alice, "alice"))
	req.Equal("alice", alice.Name())

	req.ErrorIs(r.claimName(rival, "alice"), ErrNameTaken)
	req.Empty(rival.Name())

	resolved, err := r.sessionByName("alice")
	req.NoError(err)
	req.Same(alice, resolved)
}

func TestRegistryNameReleasedOnRemove(t *testing.T) {
	req := require.New(t)
	r := newTestRegistry()
	alice, _ := addSession(r)
	req.NoError(r.claimName(alice, "alice"))

	r.remove(alice)

	_, err := r.sessionByName("alice")
	req.ErrorIs(err, ErrRecipientNotFound)

	successor, _ := addSession(r)
	req.NoError(r.claimName(successor, "alice"))
}

func TestRegistryJoinCreatesRoomOnce(t *testing.T) {
	req := require.New(t)
	r := newTestRegistry()
	defer r.closeAll()
	alice, _ := addSession(r)
	bob, _ := addSession(r)

	first, left := r.joinRoom(alice, "lobby")
	req.Nil(left)
	second, left := r.joinRoom(bob, "lobby")
	req.Nil(left)

	req.Same(first, second)
	req.Equal(Stats{Sessions: 2, Rooms: 1}, r.stats())
	req.Len(r.membersSnapshot(first), 2)
}

func TestRegistryRoomDeletedWhenLastMemberLeaves(t *testing.T) {
	req := require.New(t)
	r := newTestRegistry()
	defer r.closeAll()
	alice, _ := addSession(r)

	joined, _ := r.joinRoom(alice, "lobby")

	name, survivor, err := r.leaveRoom(alice)
	req.NoError(err)
	req.Equal("lobby", name)
	req.Nil(survivor)
	req.Equal(0, r.stats().Rooms)

	select {
	case <-joined.done:
	case <-time.After(time.Second):
		req.Fail("dispatcher did not stop after room removal")
	}
	req.ErrorIs(joined.dispatch(dispatchItem{env: protocol.NewRoomJoined("lobby")}), errRoomStopped)

	fresh, _ := r.joinRoom(alice, "lobby")
	req.NotSame(joined, fresh)
}

func TestRegistryConcurrentFirstJoinSingleRoom(t *testing.T) {
	req := require.New(t)
	r := newTestRegistry()
	defer r.closeAll()

	const n = 16
	sessions := make([]*Session, n)
	for i := range sessions {
		sessions[i], _ = addSession(r)
	}

	rooms := make([]*Room, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i], _ = r.joinRoom(sessions[i], "lobby")
		}(i)
	}
	wg.Wait()

	req.Equal(1, r.stats().Rooms)
	for i := 1; i < n; i++ {
		req.Same(rooms[0], rooms[i])
	}
	req.Len(r.membersSnapshot(rooms[0]), n)
}

func TestRegistryEvictSlow(t *testing.T) {
	req := require.New(t)
	r := newTestRegistry()
	defer r.closeAll()
	victim, victimConn := addSession(r)
	req.NoError(r.claimName(victim, "slug"))
	outsider, outsiderConn := addSession(r)

	rm, _ := r.joinRoom(victim, "lobby")

	// A session that is not a member is a no-op.
	r.evictSlow(rm, outsider)
	req.Len(r.membersSnapshot(rm), 1)
	req.Empty(outsiderConn.envelopes())

	r.evictSlow(rm, victim)

	req.Empty(victim.RoomName())
	req.Equal(0, r.stats().Rooms)
	req.Equal(2, r.stats().Sessions)

	notice := waitForError(t, victimConn, CodeQueueFull)
	req.Contains(notice.Text, "removed from room lobby")
}

func TestRegistryEvictSlowAnnouncesToSurvivors(t *testing.T) {
	req := require.New(t)
	r := newTestRegistry()
	defer r.closeAll()
	victim, _ := addSession(r)
	req.NoError(r.claimName(victim, "slug"))
	survivor, survivorConn := addSession(r)

	rm, _ := r.joinRoom(survivor, "lobby")
	r.joinRoom(victim, "lobby")

	r.evictSlow(rm, victim)

	left := waitForKind(t, survivorConn, protocol.EnvelopeSystem)
	req.Equal(protocol.SystemUserLeft, left.Event)
	req.Equal("slug", left.Username)
	req.Equal("lobby", left.Room)
	req.Len(r.membersSnapshot(rm), 1)
}

func TestRegistryCloseAllStopsEverything(t *testing.T) {
	req := require.New(t)
	r := newTestRegistry()

	sessions := make([]*Session, 0, 4)
	var rooms []*Room
	for i := 0; i < 4; i++ {
		s, _ := addSession(r)
		sessions = append(sessions, s)
		rm, _ := r.joinRoom(s, fmt.Sprintf("room-%d", i%2))
		rooms = append(rooms, rm)
	}

	r.closeAll()

	req.Equal(Stats{}, r.stats())
	for _, s := range sessions {
		req.Equal(StateClosed, s.State())
		req.ErrorIs(s.Enqueue(protocol.NewRoomJoined("x")), ErrSessionClosed)
	}
	for _, rm := range rooms {
		select {
		case <-rm.done:
		case <-time.After(time.Second):
			req.Fail("dispatcher still running after closeAll")
		}
	}
}
