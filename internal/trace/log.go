package trace

import (
	"sync"

	"github.com/halcyon-sh/warden/internal/fault"
	"github.com/halcyon-sh/warden/internal/protocol"
)

// DefaultQueueSize bounds the ingest queue when none is configured.
const DefaultQueueSize = 256

// Config holds log configuration.
type Config struct {
	QueueSize   int
	GenesisSeed string
}

// chain is one session's timeline: tip hash, next sequence, ordered events.
// The worker is the sole mutator after creation.
type chain struct {
	tip    string
	seq    int
	closed bool
	events []protocol.TRACEEvent
}

type item struct {
	ev    protocol.RawEvent
	flush chan struct{}
}

// Log ingests raw events on a non-blocking hot path and chains them on a
// single background worker.
type Log struct {
	mu      sync.Mutex
	chains  map[string]*chain
	genesis string
	queue   chan item
	done    chan struct{}
	dropped int
}

// NewLog creates the log and starts its worker.
func NewLog(cfg Config) *Log {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.GenesisSeed == "" {
		cfg.GenesisSeed = GenesisSeed
	}
	l := &Log{
		chains:  make(map[string]*chain),
		genesis: cfg.GenesisSeed,
		queue:   make(chan item, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// GenesisSeed returns the configured genesis seed.
func (l *Log) GenesisSeed() string {
	return l.genesis
}

// StartSession initializes a session's chain with its tip at the genesis
// seed.
func (l *Log) StartSession(sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.chains[sessionID]; ok {
		return fault.New(fault.AlreadyExists, "session %q already has a chain", sessionID)
	}
	l.chains[sessionID] = &chain{tip: l.genesis}
	return nil
}

// Record pushes a raw event onto the ingest queue and returns immediately.
// It never blocks on hashing or I/O. A full queue is a backpressure
// signal, not data loss: the caller decides whether to drop, retry, or
// escalate.
func (l *Log) Record(ev protocol.RawEvent) error {
	select {
	case l.queue <- item{ev: ev}:
		return nil
	default:
		return fault.New(fault.Backpressure, "trace ingest queue full (session %s)", ev.SessionID)
	}
}

// Sync blocks until every event enqueued before the call has been chained.
// The flush marker travels through the same queue, so ordering is exact.
func (l *Log) Sync() {
	flushed := make(chan struct{})
	l.queue <- item{flush: flushed}
	<-flushed
}

// Close drains the queue, stops the worker, and waits for it to finish.
// Never cancels mid-hash.
func (l *Log) Close() {
	close(l.queue)
	<-l.done
}

// run is the single consumer: it drains the queue in arrival order, looks
// up the session's chain tip, computes the event hash, assigns the
// sequence number, and advances the tip.
func (l *Log) run() {
	defer close(l.done)
	for it := range l.queue {
		if it.flush != nil {
			close(it.flush)
			continue
		}
		l.append(it.ev)
	}
}

func (l *Log) append(ev protocol.RawEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.chains[ev.SessionID]
	if !ok || c.closed {
		l.dropped++
		return
	}

	chained := protocol.TRACEEvent{
		SessionID:     ev.SessionID,
		TraceID:       ev.TraceID,
		EventID:       ev.EventID,
		SpanID:        ev.SpanID,
		ParentSpanID:  ev.ParentSpanID,
		Sequence:      c.seq + 1,
		Type:          ev.Type,
		Payload:       ev.Payload,
		Timestamp:     ev.Timestamp,
		PrevEventHash: c.tip,
	}

	hash, err := EventHash(c.tip, chained)
	if err != nil {
		// A payload that cannot be canonicalized is a structural bug in
		// the producer; the event cannot enter the chain.
		l.dropped++
		return
	}
	chained.EventHash = hash

	c.seq = chained.Sequence
	c.tip = hash
	c.events = append(c.events, chained)

	if ev.Type == protocol.EventSessionEnded {
		c.closed = true
	}
}

// Events returns a copy of the session's chained timeline in sequence
// order.
func (l *Log) Events(sessionID string) ([]protocol.TRACEEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.chains[sessionID]
	if !ok {
		return nil, fault.New(fault.NotFound, "no trace chain for session %q", sessionID)
	}
	out := make([]protocol.TRACEEvent, len(c.events))
	copy(out, c.events)
	return out, nil
}

// Dropped returns the count of events rejected by the worker (unknown or
// frozen session, uncanonicalizable payload).
func (l *Log) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}
