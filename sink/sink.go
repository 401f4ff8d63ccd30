// Package sink carries outbound events from the hub to individual
// connections through bounded queues.
package sink

import (
	"fmt"
	"log/slog"
	"sync"
)

// Event is the outbound wire envelope.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// EventSink is the delivery end of one connection handle.
// Consume must never block: a slow recipient cannot be allowed to stall
// persistence or delivery to other recipients.
type EventSink interface {
	Consume(e Event) bool
	Close()
	Closed() bool
}

// ChannelSink is the buffered queue drained by a connection's write pump.
// When the buffer is full the event is dropped and logged; the recipient
// catches up through a history read.
type ChannelSink struct {
	Events chan Event

	log       *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func NewChannelSink(log *slog.Logger, bufferSize int) *ChannelSink {
	return &ChannelSink{
		Events: make(chan Event, bufferSize),
		log:    log,
		done:   make(chan struct{}),
	}
}

// Consume enqueues an event for delivery. Returns false when the sink is
// closed or the buffer is full.
func (s *ChannelSink) Consume(e Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.Events <- e:
		return true
	default:
		// Canal plein : on droppe, le client se resynchronisera via l'historique
		s.log.Warn(fmt.Sprintf("Outbound buffer full, dropping %q event", e.Name))
		return false
	}
}

// Close marks the sink as torn down. Idempotent; pending buffered events
// are abandoned.
func (s *ChannelSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *ChannelSink) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done exposes the teardown signal for write pumps.
func (s *ChannelSink) Done() <-chan struct{} {
	return s.done
}
