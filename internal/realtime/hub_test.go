package realtime_test

import (
	"testing"

	"github.com/Joyuchen/flow-state-board/internal/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestHub_DeliversToOwnersSubscribersOnly(t *testing.T) {
	// Arrange
	hub := realtime.NewHub()
	alice := uuid.New()
	bob := uuid.New()

	aliceEvents, cancelAlice := hub.Subscribe(alice)
	defer cancelAlice()
	bobEvents, cancelBob := hub.Subscribe(bob)
	defer cancelBob()

	taskID := uuid.New()

	// Act
	hub.Publish(alice, realtime.Event{Action: "created", TaskID: taskID})

	// Assert
	select {
	case ev := <-aliceEvents:
		assert.Equal(t, "created", ev.Action)
		assert.Equal(t, taskID, ev.TaskID)
	default:
		t.Fatal("expected an event for alice")
	}

	select {
	case <-bobEvents:
		t.Fatal("bob must not see alice's events")
	default:
	}
}

func TestHub_FanOutToAllSubscribersOfOneUser(t *testing.T) {
	// Arrange: two tabs of the same user.
	hub := realtime.NewHub()
	user := uuid.New()

	first, cancelFirst := hub.Subscribe(user)
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe(user)
	defer cancelSecond()

	// Act
	hub.Publish(user, realtime.Event{Action: "updated", TaskID: uuid.New()})

	// Assert
	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	// Arrange
	hub := realtime.NewHub()
	user := uuid.New()

	events, cancel := hub.Subscribe(user)
	cancel()

	// Act
	hub.Publish(user, realtime.Event{Action: "deleted", TaskID: uuid.New()})

	// Assert
	assert.Empty(t, events)
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	// Arrange: fill the subscriber's buffer and keep publishing.
	hub := realtime.NewHub()
	user := uuid.New()

	events, cancel := hub.Subscribe(user)
	defer cancel()

	// Act: more events than the channel can hold. The extra ones are
	// dropped; Publish must return regardless.
	for i := 0; i < 100; i++ {
		hub.Publish(user, realtime.Event{Action: "updated", TaskID: uuid.New()})
	}

	// Assert
	assert.Equal(t, cap(events), len(events))
}

func TestHub_PublishWithNoSubscribersIsNoOp(t *testing.T) {
	hub := realtime.NewHub()

	hub.Publish(uuid.New(), realtime.Event{Action: "created", TaskID: uuid.New()})
}
