package queue

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

type partitionKey struct {
	topic     string
	partition int
}

// offsetTracker orders completions per partition. Kafka commits are
// cumulative, so a message may only be committed once every message fetched
// before it on the same partition has completed.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[partitionKey]*partitionOffsets
}

type partitionOffsets struct {
	inFlight  []int64 // fetch order
	completed map[int64]kafka.Message
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[partitionKey]*partitionOffsets)}
}

func (t *offsetTracker) partition(msg *kafka.Message) *partitionOffsets {
	key := partitionKey{topic: msg.Topic, partition: msg.Partition}
	p, ok := t.partitions[key]
	if !ok {
		p = &partitionOffsets{completed: make(map[int64]kafka.Message)}
		t.partitions[key] = p
	}
	return p
}

// track registers a fetched message. Messages must be tracked in fetch order.
func (t *offsetTracker) track(msg *kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.partition(msg)
	p.inFlight = append(p.inFlight, msg.Offset)
}

// complete marks msg done and returns the message ending the contiguous run
// of completed offsets at the head of its partition, or nil when an earlier
// offset is still in flight.
func (t *offsetTracker) complete(msg *kafka.Message) *kafka.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.partition(msg)
	p.completed[msg.Offset] = *msg

	var last *kafka.Message
	for len(p.inFlight) > 0 {
		m, ok := p.completed[p.inFlight[0]]
		if !ok {
			break
		}
		delete(p.completed, p.inFlight[0])
		p.inFlight = p.inFlight[1:]
		last = &m
	}
	return last
}
