package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/common"
)

// ErrQueueFull is returned by LocalQueue.PublishJSON when the buffer is full.
var ErrQueueFull = errors.New(errors.ErrCodeServiceUnavailable, "job queue is full")

// ErrQueueClosed is returned after Close.
var ErrQueueClosed = errors.New(errors.ErrCodePublishFailed, "job queue closed")

// LocalQueueConfig sizes the in-process queue.
type LocalQueueConfig struct {
	Workers      int
	Buffer       int
	MaxRetries   int
	RetryBackoff time.Duration
}

// LocalQueue runs the job pipeline inside the API process when no broker is
// configured. It publishes like a Kafka producer and dispatches like a
// consumer: handlers are retried with exponential backoff and
// backoff.Permanent errors stop the retries.
type LocalQueue struct {
	config   LocalQueueConfig
	logger   logging.Logger
	handlers map[string]common.MessageHandler
	mu       sync.RWMutex

	msgs   chan *common.Message
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	closed bool
	offset int64
}

// NewLocalQueue starts cfg.Workers dispatch goroutines.
func NewLocalQueue(cfg LocalQueueConfig, logger logging.Logger) *LocalQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &LocalQueue{
		config:   cfg,
		logger:   logger.Named("local_queue"),
		handlers: make(map[string]common.MessageHandler),
		msgs:     make(chan *common.Message, cfg.Buffer),
		ctx:      ctx,
		cancel:   cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.loop()
	}
	return q
}

// Subscribe registers handler for topic.
func (q *LocalQueue) Subscribe(topic string, handler common.MessageHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = handler
}

// PublishJSON enqueues payload without blocking.
func (q *LocalQueue) PublishJSON(_ context.Context, topic, key string, payload interface{}, headers map[string]string) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal message payload")
	}
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[k] = v
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.offset++
	msg := &common.Message{
		Topic:     topic,
		Offset:    q.offset,
		Key:       []byte(key),
		Value:     value,
		Headers:   h,
		Timestamp: time.Now(),
	}
	select {
	case q.msgs <- msg:
		return nil
	default:
		return ErrQueueFull.WithDetailf("topic=%s", topic)
	}
}

func (q *LocalQueue) loop() {
	defer q.wg.Done()
	for msg := range q.msgs {
		q.dispatch(msg)
	}
}

func (q *LocalQueue) dispatch(msg *common.Message) {
	q.mu.RLock()
	handler, ok := q.handlers[msg.Topic]
	q.mu.RUnlock()
	if !ok {
		q.logger.Debug("no handler for topic", logging.String("topic", msg.Topic))
		return
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = q.config.RetryBackoff
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(q.config.MaxRetries)), q.ctx)
	if err := backoff.Retry(func() error { return handler(q.ctx, msg) }, policy); err != nil {
		q.logger.Error("message processing failed",
			logging.String("topic", msg.Topic),
			logging.String("key", string(msg.Key)),
			logging.Err(err))
	}
}

// Close stops accepting messages, drains the buffer and waits for the
// dispatchers. ctx bounds the wait; when it expires in-flight handlers are
// cancelled.
func (q *LocalQueue) Close(ctx context.Context) error {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.msgs)
		q.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}
