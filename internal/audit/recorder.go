package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// defaultBufferSize bounds the queue between request handlers and the writer.
const defaultBufferSize = 256

// Publisher sends a payload to a message bus topic.
// *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// TopicFunc maps an action to the topic its entries are mirrored on.
type TopicFunc func(action string) string

// Recorder queues audit entries and writes them from a single goroutine.
//
// Record never blocks: when the queue is full the entry is dropped and
// counted. Run must be started once for anything to be written.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
	queue  chan *Entry
	now    func() time.Time

	publisher Publisher
	topic     TopicFunc
	qos       byte

	dropped atomic.Uint64
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithMirror publishes every written entry to publisher on topic(action).
func WithMirror(publisher Publisher, topic TopicFunc, qos byte) Option {
	return func(r *Recorder) {
		r.publisher = publisher
		r.topic = topic
		r.qos = qos
	}
}

// WithBufferSize overrides the queue capacity.
func WithBufferSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan *Entry, n)
		}
	}
}

// NewRecorder creates a Recorder writing to repo.
func NewRecorder(repo Repository, logger *slog.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan *Entry, defaultBufferSize),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record enqueues entry. It reports false if the queue was full.
func (r *Recorder) Record(entry Entry) bool {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}

	select {
	case r.queue <- &entry:
		return true
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit queue full, dropping entry",
			"action", entry.Action,
			"entity_type", entry.EntityType,
		)
		return false
	}
}

// Dropped returns how many entries Record has discarded.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left and returns.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.queue:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

// write persists one entry and mirrors it. Writes use a fresh context so
// entries queued before shutdown are still stored.
func (r *Recorder) write(entry *Entry) {
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
		return
	}

	if r.publisher == nil || r.topic == nil {
		return
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		r.logger.Error("audit mirror encode failed", "action", entry.Action, "error", err)
		return
	}
	if err := r.publisher.Publish(r.topic(entry.Action), payload, r.qos, false); err != nil {
		r.logger.Warn("audit mirror publish failed",
			"action", entry.Action,
			"error", err,
		)
	}
}
