package teamchat

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/teamchat/model"
)

// fakeSubscriber records delivered messages in order.
type fakeSubscriber struct {
	id string

	mu       sync.Mutex
	received []model.Message
}

func newFakeSubscriber(id string) *fakeSubscriber {
	return &fakeSubscriber{id: id}
}

func (f *fakeSubscriber) SessionID() string { return f.id }

func (f *fakeSubscriber) Deliver(msg model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, msg)
}

func (f *fakeSubscriber) messages() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Message, len(f.received))
	copy(out, f.received)
	return out
}

func TestRoomRegistry_JoinIdempotent(t *testing.T) {
	r := NewRoomRegistry(&NoopLogger{})
	s := newFakeSubscriber("s1")

	r.Join("T1", s)
	r.Join("T1", s)

	assert.Equal(t, 1, r.MemberCount("T1"))

	r.Broadcast("T1", model.Message{ID: 1, TeamID: "T1", Body: "once"})
	assert.Len(t, s.messages(), 1, "double join must not cause double delivery")
}

func TestRoomRegistry_JoinSwitchesRooms(t *testing.T) {
	r := NewRoomRegistry(&NoopLogger{})
	s := newFakeSubscriber("s1")

	r.Join("T1", s)
	r.Join("T2", s)

	assert.Equal(t, 0, r.MemberCount("T1"))
	assert.Equal(t, 1, r.MemberCount("T2"))

	roomID, ok := r.Room(s)
	require.True(t, ok)
	assert.Equal(t, "T2", roomID)

	r.Broadcast("T1", model.Message{ID: 1, TeamID: "T1"})
	assert.Empty(t, s.messages(), "no delivery from a room that was left")
}

func TestRoomRegistry_LeaveAllStopsDelivery(t *testing.T) {
	r := NewRoomRegistry(&NoopLogger{})
	s := newFakeSubscriber("s1")
	other := newFakeSubscriber("s2")

	r.Join("T1", s)
	r.Join("T1", other)
	r.LeaveAll(s)

	r.Broadcast("T1", model.Message{ID: 1, TeamID: "T1"})

	assert.Empty(t, s.messages())
	assert.Len(t, other.messages(), 1)

	_, ok := r.Room(s)
	assert.False(t, ok)
}

func TestRoomRegistry_LeaveAbsentIsNoop(t *testing.T) {
	r := NewRoomRegistry(&NoopLogger{})
	s := newFakeSubscriber("s1")

	r.Leave("T1", s)
	r.LeaveAll(s)

	assert.Equal(t, 0, r.MemberCount("T1"))
}

func TestRoomRegistry_BroadcastScopedToRoom(t *testing.T) {
	r := NewRoomRegistry(&NoopLogger{})
	a := newFakeSubscriber("a")
	b := newFakeSubscriber("b")
	c := newFakeSubscriber("c")

	r.Join("T1", a)
	r.Join("T1", b)
	r.Join("T2", c)

	msg := model.Message{ID: 7, TeamID: "T1", SenderName: "Alice", Body: "hello"}
	r.Broadcast("T1", msg)

	assert.Equal(t, []model.Message{msg}, a.messages())
	assert.Equal(t, []model.Message{msg}, b.messages())
	assert.Empty(t, c.messages(), "session not joined to the room receives nothing")
}

func TestRoomRegistry_EmptyRoomGarbageCollected(t *testing.T) {
	r := NewRoomRegistry(&NoopLogger{})
	s := newFakeSubscriber("s1")

	r.Join("T1", s)
	r.LeaveAll(s)

	r.mu.RLock()
	_, exists := r.rooms["T1"]
	r.mu.RUnlock()
	assert.False(t, exists, "empty room entry is evicted")
}

func TestRoomRegistry_PublishOrderMatchesStoreOrder(t *testing.T) {
	r := NewRoomRegistry(&NoopLogger{})
	a := newFakeSubscriber("a")
	b := newFakeSubscriber("b")
	r.Join("T1", a)
	r.Join("T1", b)

	// Store stand-in: assigns IDs under the registry's per-room publish lock,
	// like the real append path.
	var nextID int64
	appendFn := func(body string) func(context.Context) (model.Message, error) {
		return func(context.Context) (model.Message, error) {
			nextID++
			return model.Message{ID: nextID, TeamID: "T1", Body: body}, nil
		}
	}

	const publishers = 8
	const perPublisher = 25
	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				_, err := r.Publish(context.Background(), "T1", appendFn(fmt.Sprintf("p%d-%d", p, i)))
				assert.NoError(t, err)
			}
		}(p)
	}
	wg.Wait()

	got := a.messages()
	require.Len(t, got, publishers*perPublisher)
	for i := 1; i < len(got); i++ {
		require.Less(t, got[i-1].ID, got[i].ID, "each member observes store ID order")
	}
	assert.Equal(t, got, b.messages(), "all members observe the same order")
}

func TestRoomRegistry_PublishAppendFailureNotBroadcast(t *testing.T) {
	r := NewRoomRegistry(&NoopLogger{})
	s := newFakeSubscriber("s1")
	r.Join("T1", s)

	_, err := r.Publish(context.Background(), "T1", func(context.Context) (model.Message, error) {
		return model.Message{}, NewError(ErrCodeStorage, "store down")
	})

	assert.True(t, IsStorage(err))
	assert.Empty(t, s.messages(), "a message that failed to persist is never broadcast")
}

func TestRoomRegistry_JoinWithReplay(t *testing.T) {
	r := NewRoomRegistry(&NoopLogger{})
	s := newFakeSubscriber("s1")

	history := []model.Message{{ID: 1, TeamID: "T1"}, {ID: 2, TeamID: "T1"}}
	got, err := r.JoinWithReplay(context.Background(), "T1", s, func(context.Context) ([]model.Message, error) {
		return history, nil
	})

	require.NoError(t, err)
	assert.Equal(t, history, got)
	assert.Equal(t, 1, r.MemberCount("T1"))
}

func TestRoomRegistry_JoinWithReplayFetchFailureRollsBack(t *testing.T) {
	r := NewRoomRegistry(&NoopLogger{})
	s := newFakeSubscriber("s1")

	_, err := r.JoinWithReplay(context.Background(), "T1", s, func(context.Context) ([]model.Message, error) {
		return nil, NewError(ErrCodeStorage, "store down")
	})

	assert.True(t, IsStorage(err))
	assert.Equal(t, 0, r.MemberCount("T1"), "failed join leaves no membership behind")
	_, ok := r.Room(s)
	assert.False(t, ok)
}

func TestRoomRegistry_PublishSerializedAcrossRoomEviction(t *testing.T) {
	r := NewRoomRegistry(&NoopLogger{})

	// Store stand-in with its own lock: when the room is empty the append runs
	// outside any publish lock, so ID assignment must synchronize itself.
	var idMu sync.Mutex
	var nextID int64
	appendFn := func(context.Context) (model.Message, error) {
		idMu.Lock()
		nextID++
		m := model.Message{ID: nextID, TeamID: "T1", Body: "x"}
		idMu.Unlock()
		return m, nil
	}

	// One subscriber churns join/leave so the room entry is repeatedly
	// evicted and recreated while publishers race it. A publish lock taken on
	// an evicted room object would let two appends interleave and deliver out
	// of store order.
	obs := newFakeSubscriber("obs")
	done := make(chan struct{})
	var churn sync.WaitGroup
	churn.Add(1)
	go func() {
		defer churn.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			r.Join("T1", obs)
			r.LeaveAll(obs)
		}
	}()

	const publishers = 4
	const perPublisher = 200
	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				_, err := r.Publish(context.Background(), "T1", appendFn)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	close(done)
	churn.Wait()

	got := obs.messages()
	for i := 1; i < len(got); i++ {
		require.Less(t, got[i-1].ID, got[i].ID,
			"delivery order matches store ID order across room eviction and recreation")
	}
}
