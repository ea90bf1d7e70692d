package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clauselens/internal/testutil"
	pkgerrors "github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/common"
	"github.com/turtacn/clauselens/pkg/types/job"
)

type mockKafkaWriter struct {
	mu        sync.Mutex
	written   []kafka.Message
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed    bool
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeFunc != nil {
		if err := m.writeFunc(ctx, msgs...); err != nil {
			return err
		}
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed = true
	return nil
}

func (m *mockKafkaWriter) Stats() kafka.WriterStats { return kafka.WriterStats{} }

func newTestProducer(w WriterInterface) *Producer {
	return newProducer(w, ProducerConfig{Brokers: []string{"localhost:9092"}, MaxMessageBytes: 64}, testutil.NewMockLogger())
}

func TestValidateProducerConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProducerConfig
		wantErr bool
	}{
		{"valid", ProducerConfig{Brokers: []string{"b:9092"}}, false},
		{"no brokers", ProducerConfig{}, true},
		{"negative retries", ProducerConfig{Brokers: []string{"b:9092"}, MaxRetries: -1}, true},
		{"sasl without credentials", ProducerConfig{Brokers: []string{"b:9092"}, Security: SecurityConfig{SASLEnabled: true, SASLMechanism: "PLAIN"}}, true},
		{"unknown sasl mechanism", ProducerConfig{Brokers: []string{"b:9092"}, Security: SecurityConfig{SASLEnabled: true, SASLMechanism: "GSSAPI", SASLUsername: "u", SASLPassword: "p"}}, true},
		{"scram", ProducerConfig{Brokers: []string{"b:9092"}, Security: SecurityConfig{SASLEnabled: true, SASLMechanism: "SCRAM-SHA-512", SASLUsername: "u", SASLPassword: "p"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProducerConfig(tt.cfg)
			if tt.wantErr {
				assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewProducer_BuildsWriter(t *testing.T) {
	p, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, Acks: "all", CompressionCodec: "zstd"}, nil)
	require.NoError(t, err)
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.Equal(t, kafka.Zstd, w.Compression)
	assert.Equal(t, 4, w.MaxAttempts)
}

func TestPublish_Success(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &common.ProducerMessage{
		Topic:   TopicProfileRequested,
		Key:     []byte("job-1"),
		Value:   []byte(`{"job_id":"job-1"}`),
		Headers: map[string]string{"trace_id": "t1"},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 1)
	m := w.written[0]
	assert.Equal(t, TopicProfileRequested, m.Topic)
	assert.Equal(t, "job-1", string(m.Key))
	assert.Equal(t, []kafka.Header{{Key: "trace_id", Value: []byte("t1")}}, m.Headers)
	assert.False(t, m.Time.IsZero())
	assert.Equal(t, int64(1), p.Stats().MessagesSent)
}

func TestPublish_Rejects(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	tests := []struct {
		name string
		msg  *common.ProducerMessage
	}{
		{"nil", nil},
		{"no topic", &common.ProducerMessage{Value: []byte("v")}},
		{"no value", &common.ProducerMessage{Topic: "t"}},
		{"too large", &common.ProducerMessage{Topic: "t", Value: make([]byte, 65)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Publish(context.Background(), tt.msg)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
		})
	}
}

func TestPublish_WriteFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error {
		return errors.New("leader not available")
	}}
	p := newTestProducer(w)

	err := p.Publish(context.Background(), &common.ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodePublishFailed))
	assert.Equal(t, int64(1), p.Stats().MessagesFailed)
}

func TestPublishJSON(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newProducer(w, ProducerConfig{Brokers: []string{"b"}}, nil)

	req := job.Request{JobID: "j1", Text: "This Agreement is made", MaxLen: 384, Stride: 128, BatchSize: 16}
	require.NoError(t, p.PublishJSON(context.Background(), TopicProfileRequested, req.JobID, req, nil))
	require.Len(t, w.written, 1)
	assert.JSONEq(t, `{"job_id":"j1","text":"This Agreement is made","max_len":384,"stride":128,"batch_size":16}`, string(w.written[0].Value))

	err := p.PublishJSON(context.Background(), "t", "k", make(chan int), nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func TestPublishBatch_PartialFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(_ context.Context, msgs ...kafka.Message) error {
		errs := make(kafka.WriteErrors, len(msgs))
		errs[1] = errors.New("fail")
		return errs
	}}
	p := newTestProducer(w)
	msgs := []*common.ProducerMessage{
		{Topic: "t", Value: []byte("1")},
		{Topic: "t", Value: []byte("2")},
	}

	res, err := p.PublishBatch(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
}

func TestPublishBatch_Empty(t *testing.T) {
	_, err := newTestProducer(&mockKafkaWriter{}).PublishBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestProducerClose(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	err := p.Publish(context.Background(), &common.ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.Equal(t, ErrProducerClosed, err)
}
