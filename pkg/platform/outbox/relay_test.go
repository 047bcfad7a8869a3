package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryQueue struct {
	mu        sync.Mutex
	pending   []Message
	processed map[uuid.UUID]bool
}

func newMemoryQueue(msgs ...Message) *memoryQueue {
	return &memoryQueue{pending: msgs, processed: make(map[uuid.UUID]bool)}
}

func (q *memoryQueue) Process(ctx context.Context, limit int, fn func(context.Context, []Message) []uuid.UUID) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var batch []Message
	for _, m := range q.pending {
		if !q.processed[m.ID] && len(batch) < limit {
			batch = append(batch, m)
		}
	}
	if len(batch) == 0 {
		return 0, nil
	}
	delivered := fn(ctx, batch)
	for _, id := range delivered {
		q.processed[id] = true
	}
	return len(delivered), nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []Message
	failFor   map[uuid.UUID]bool
}

func (p *recordingPublisher) Publish(_ context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[msg.ID] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, msg)
	return nil
}

func message(event string) Message {
	return NewMessage("numbering_range", "1", event, []byte(`{}`), time.Now())
}

func TestNewRelayRequiresDependencies(t *testing.T) {
	_, err := NewRelay(nil, &recordingPublisher{})
	assert.ErrorContains(t, err, "queue is required")

	_, err = NewRelay(newMemoryQueue(), nil)
	assert.ErrorContains(t, err, "publisher is required")
}

func TestDrainPublishesInOrder(t *testing.T) {
	first, second := message("OPEN"), message("CHANGE")
	queue := newMemoryQueue(first, second)
	publisher := &recordingPublisher{}
	relay, err := NewRelay(queue, publisher)
	require.NoError(t, err)

	n, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, publisher.published, 2)
	assert.Equal(t, first.ID, publisher.published[0].ID)
	assert.Equal(t, second.ID, publisher.published[1].ID)

	n, err = relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "delivered messages are not published again")
}

func TestDrainLeavesFailedMessagesPending(t *testing.T) {
	ok, failing := message("OPEN"), message("CLOSE")
	queue := newMemoryQueue(failing, ok)
	publisher := &recordingPublisher{failFor: map[uuid.UUID]bool{failing.ID: true}}
	relay, err := NewRelay(queue, publisher)
	require.NoError(t, err)

	n, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, queue.processed[failing.ID])

	delete(publisher.failFor, failing.ID)
	n, err = relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, queue.processed[failing.ID])
}

func TestDrainRespectsBatchSize(t *testing.T) {
	queue := newMemoryQueue(message("A"), message("B"), message("C"))
	relay, err := NewRelay(queue, &recordingPublisher{}, WithBatchSize(2))
	require.NoError(t, err)

	n, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunStopsOnCancel(t *testing.T) {
	queue := newMemoryQueue(message("OPEN"))
	publisher := &recordingPublisher{}
	relay, err := NewRelay(queue, publisher, WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		publisher.mu.Lock()
		defer publisher.mu.Unlock()
		return len(publisher.published) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
