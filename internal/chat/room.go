package chat

import (
	"errors"
	"time"

	"github.com/akarpov/roomcast/internal/protocol"
)

// dispatchItem rides the room queue from a submitting session to the
// dispatcher.
type dispatchItem struct {
	origin     string
	env        protocol.Envelope
	enqueuedAt time.Time
}

// Room owns a bounded dispatch queue drained by a dedicated dispatcher
// goroutine. The members map is guarded by the owning registry's lock;
// the dispatcher only ever sees it through snapshots.
type Room struct {
	Name string

	reg     *Registry
	queue   chan dispatchItem
	stop    chan struct{}
	done    chan struct{}
	members map[string]*Session
}

func newRoom(name string, reg *Registry, queueSize int) *Room {
	rm := &Room{
		Name:    name,
		reg:     reg,
		queue:   make(chan dispatchItem, queueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		members: make(map[string]*Session),
	}
	go rm.run()
	return rm
}

// dispatch offers an item to the room queue without blocking. ErrQueueFull
// is backpressure toward the submitting session; errRoomStopped means the
// room was deleted after the caller resolved it.
func (rm *Room) dispatch(item dispatchItem) error {
	select {
	case <-rm.stop:
		return errRoomStopped
	default:
	}
	select {
	case rm.queue <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// run consumes the dispatch queue until the room is deleted. Items still
// queued at that point are discarded with the room.
func (rm *Room) run() {
	defer close(rm.done)
	for {
		select {
		case <-rm.stop:
			return
		case item := <-rm.queue:
			rm.deliver(item)
		}
	}
}

// deliver fans one envelope out to a consistent membership snapshot.
// Enqueue never blocks: members whose queues are full are evicted from
// the room so one slow consumer cannot stall the rest.
func (rm *Room) deliver(item dispatchItem) {
	members := rm.reg.membersSnapshot(rm)

	var slow []*Session
	for _, m := range members {
		err := m.Enqueue(item.env)
		switch {
		case err == nil:
		case errors.Is(err, ErrQueueFull):
			slow = append(slow, m)
		case errors.Is(err, ErrSessionClosed):
			// stale snapshot entry; disconnect cleanup handles it
		}
	}

	for _, m := range slow {
		rm.reg.evictSlow(rm, m)
	}

	rm.reg.log.Debug("room delivery",
		"room", rm.Name,
		"origin", item.origin,
		"members", len(members),
		"evicted", len(slow),
		"queued_for", time.Since(item.enqueuedAt))
}

var errRoomStopped = errors.New("room stopped")
