package teamchat

import (
	"context"
	"sync"

	"github.com/coregx/teamchat/model"
)

// Subscriber is a live connection handle the registry delivers broadcasts to.
// Session implements it.
//
// Deliver must not block: implementations enqueue into a bounded per-connection
// buffer and drop on overflow rather than stalling the room.
type Subscriber interface {
	// SessionID returns the opaque connection identifier.
	SessionID() string

	// Deliver pushes one persisted message toward this subscriber's client.
	Deliver(msg model.Message)
}

// room holds the live member set for one team.
//
// mu guards the member set; broadcast holds it as a reader so membership
// mutation and broadcast are mutually exclusive, while two broadcasts may
// snapshot concurrently. publishMu serializes append-then-broadcast so the
// delivery order every member observes matches store ID order.
type room struct {
	mu        sync.RWMutex
	publishMu sync.Mutex
	members   map[string]Subscriber
}

// RoomRegistry tracks which live sessions belong to which team room.
//
// Locking is per room: operations on different rooms never block each other,
// so one busy room cannot starve the rest. The registry never touches
// persistence itself; history and append are supplied by the caller as
// callbacks that run under the room's publish lock.
//
// Thread safety: safe for concurrent use.
type RoomRegistry struct {
	mu      sync.RWMutex
	rooms   map[string]*room
	current map[string]string // session ID -> joined room ID

	logger Logger
}

// NewRoomRegistry creates an empty registry.
func NewRoomRegistry(logger Logger) *RoomRegistry {
	if logger == nil {
		logger = &NoopLogger{}
	}
	return &RoomRegistry{
		rooms:   make(map[string]*room),
		current: make(map[string]string),
		logger:  logger,
	}
}

// getOrCreate returns the room for roomID, creating it lazily on first join.
func (r *RoomRegistry) getOrCreate(roomID string) *room {
	r.mu.RLock()
	rm := r.rooms[roomID]
	r.mu.RUnlock()
	if rm != nil {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rm = r.rooms[roomID]; rm == nil {
		rm = &room{members: make(map[string]Subscriber)}
		r.rooms[roomID] = rm
	}
	return rm
}

// get returns the room for roomID or nil if it does not exist.
func (r *RoomRegistry) get(roomID string) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomID]
}

// lockPublish acquires the publish lock of the live room object for roomID,
// or returns nil when the room does not exist. An empty room can be collected
// and replaced between the lookup and the lock, in which case the lock held
// belongs to a dead object and serializes nothing; re-validate against the
// map and retry. Once validated the object stays live for as long as the lock
// is held, because collection itself requires this lock.
func (r *RoomRegistry) lockPublish(roomID string) *room {
	for {
		rm := r.get(roomID)
		if rm == nil {
			return nil
		}
		rm.publishMu.Lock()
		if r.get(roomID) == rm {
			return rm
		}
		rm.publishMu.Unlock()
	}
}

// lockPublishCreate is lockPublish for callers that need the room to exist,
// creating it when absent.
func (r *RoomRegistry) lockPublishCreate(roomID string) *room {
	for {
		rm := r.getOrCreate(roomID)
		rm.publishMu.Lock()
		if r.get(roomID) == rm {
			return rm
		}
		rm.publishMu.Unlock()
	}
}

// Join adds the session to the room's live member set. Joining a room the
// session already belongs to is a no-op. A session belongs to at most one
// room, so joining a new room leaves the previous one first.
func (r *RoomRegistry) Join(roomID string, s Subscriber) {
	r.mu.Lock()
	prev, ok := r.current[s.SessionID()]
	if ok && prev == roomID {
		r.mu.Unlock()
		return
	}
	r.current[s.SessionID()] = roomID
	r.mu.Unlock()

	if ok {
		r.removeMember(prev, s.SessionID())
	}

	rm := r.getOrCreate(roomID)
	rm.mu.Lock()
	rm.members[s.SessionID()] = s
	rm.mu.Unlock()

	r.logger.Debugf("session %s joined room %s", s.SessionID(), roomID)
}

// Leave removes the session from the room's member set. No-op if absent.
func (r *RoomRegistry) Leave(roomID string, s Subscriber) {
	r.mu.Lock()
	if r.current[s.SessionID()] == roomID {
		delete(r.current, s.SessionID())
	}
	r.mu.Unlock()

	r.removeMember(roomID, s.SessionID())
}

// LeaveAll removes the session from every room it belongs to. Called on
// disconnect; after it returns the session receives no further broadcasts.
func (r *RoomRegistry) LeaveAll(s Subscriber) {
	r.mu.Lock()
	roomID, ok := r.current[s.SessionID()]
	if ok {
		delete(r.current, s.SessionID())
	}
	r.mu.Unlock()

	if ok {
		r.removeMember(roomID, s.SessionID())
		r.logger.Debugf("session %s left room %s", s.SessionID(), roomID)
	}
}

// removeMember drops a session from a room and garbage-collects the room
// entry when its member set empties.
//
// Collection requires the room's publish lock, taken with TryLock so a held
// lock is never waited on: a room whose publish lock is held is never removed
// from the map, which is what lets lockPublish validate once and trust the
// object for the duration. A room that escapes collection here is empty and
// harmless; it is reused by the next join or collected by a later leave.
func (r *RoomRegistry) removeMember(roomID, sessionID string) {
	rm := r.get(roomID)
	if rm == nil {
		return
	}

	rm.mu.Lock()
	delete(rm.members, sessionID)
	empty := len(rm.members) == 0
	rm.mu.Unlock()

	if empty && rm.publishMu.TryLock() {
		r.mu.Lock()
		if r.rooms[roomID] == rm {
			rm.mu.Lock()
			if len(rm.members) == 0 {
				delete(r.rooms, roomID)
			}
			rm.mu.Unlock()
		}
		r.mu.Unlock()
		rm.publishMu.Unlock()
	}
}

// Room returns the current room of a session and whether it has one.
func (r *RoomRegistry) Room(s Subscriber) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.current[s.SessionID()]
	return roomID, ok
}

// MemberCount returns the number of live sessions in a room.
func (r *RoomRegistry) MemberCount(roomID string) int {
	rm := r.get(roomID)
	if rm == nil {
		return 0
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.members)
}

// Broadcast delivers a persisted message to every session currently in the
// room. The member set is snapshotted under the room lock; delivery itself is
// a non-blocking enqueue on each subscriber, never a transport write, so a
// slow client cannot stall the room.
func (r *RoomRegistry) Broadcast(roomID string, msg model.Message) {
	rm := r.get(roomID)
	if rm == nil {
		return
	}

	rm.mu.RLock()
	targets := make([]Subscriber, 0, len(rm.members))
	for _, s := range rm.members {
		targets = append(targets, s)
	}
	rm.mu.RUnlock()

	for _, s := range targets {
		s.Deliver(msg)
	}
}

// Publish runs append under the room's publish lock and broadcasts the
// persisted message before releasing it. Serializing append with broadcast
// per room prevents a message being broadcast before the store has assigned
// its ID, and keeps broadcast order identical to store order when two
// publishes race.
func (r *RoomRegistry) Publish(ctx context.Context, roomID string, appendFn func(ctx context.Context) (model.Message, error)) (model.Message, error) {
	rm := r.lockPublish(roomID)
	if rm == nil {
		// Nobody is joined, so there is nothing to order the append against.
		return appendFn(ctx)
	}
	defer rm.publishMu.Unlock()

	msg, err := appendFn(ctx)
	if err != nil {
		return model.Message{}, err
	}
	r.Broadcast(roomID, msg)
	return msg, nil
}

// JoinWithReplay atomically joins the session to the room and fetches the
// history snapshot under the room's publish lock, so no publish can land
// between the membership add and the snapshot: the snapshot plus subsequent
// broadcasts is exactly the room's message sequence, without gaps or
// duplicates.
//
// If fetch fails the membership is rolled back and the join is considered
// failed; the caller reports the error to the client for retry.
func (r *RoomRegistry) JoinWithReplay(ctx context.Context, roomID string, s Subscriber, fetch func(ctx context.Context) ([]model.Message, error)) ([]model.Message, error) {
	rm := r.lockPublishCreate(roomID)
	defer rm.publishMu.Unlock()

	r.Join(roomID, s)

	history, err := fetch(ctx)
	if err != nil {
		r.Leave(roomID, s)
		return nil, err
	}
	return history, nil
}
