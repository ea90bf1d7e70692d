package kafka

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/common"
)

const (
	TopicProfileRequested = "profile.requested"
	TopicProfileCompleted = "profile.completed"

	deadLetterSuffix = ".dlq"
)

// DeadLetterTopic is the topic exhausted messages from topic are moved to.
func DeadLetterTopic(topic string) string {
	return topic + deadLetterSuffix
}

// IsDeadLetterTopic reports whether topic is a dead-letter topic.
func IsDeadLetterTopic(topic string) bool {
	return strings.HasSuffix(topic, deadLetterSuffix)
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates the service topics at startup.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials the first broker.
func NewTopicManager(ctx context.Context, brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to dial kafka")
	}
	return newTopicManager(conn, logger), nil
}

func newTopicManager(conn ConnInterface, logger logging.Logger) *TopicManager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TopicManager{conn: conn, logger: logger}
}

// CreateTopic creates cfg.Name; an existing topic is not an error.
func (m *TopicManager) CreateTopic(ctx context.Context, cfg common.TopicConfig) error {
	if err := validateTopic(cfg); err != nil {
		return err
	}
	if err := m.conn.CreateTopics(toKafkaTopic(cfg)); err != nil {
		if errors.Is(err, kafka.TopicAlreadyExists) {
			return nil
		}
		if exists, _ := m.TopicExists(ctx, cfg.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "create topic failed").
			WithDetailf("topic=%s", cfg.Name)
	}
	m.logger.Info("topic created",
		logging.String("topic", cfg.Name),
		logging.Int("partitions", cfg.NumPartitions))
	return nil
}

func validateTopic(cfg common.TopicConfig) error {
	switch {
	case cfg.Name == "":
		return errors.New(errors.ErrCodeValidation, "topic name required")
	case cfg.NumPartitions <= 0:
		return errors.New(errors.ErrCodeValidation, "partitions must be > 0").WithDetail(cfg.Name)
	case cfg.ReplicationFactor <= 0:
		return errors.New(errors.ErrCodeValidation, "replication factor must be > 0").WithDetail(cfg.Name)
	}
	return nil
}

func toKafkaTopic(cfg common.TopicConfig) kafka.TopicConfig {
	tc := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		tc.ConfigEntries = []kafka.ConfigEntry{{
			ConfigName:  "retention.ms",
			ConfigValue: strconv.FormatInt(cfg.RetentionMs, 10),
		}}
	}
	return tc
}

// TopicExists reports whether the broker knows name.
func (m *TopicManager) TopicExists(ctx context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		if errors.Is(err, kafka.UnknownTopicOrPartition) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "read partitions failed")
	}
	return len(partitions) > 0, nil
}

// EnsureTopics creates every topic in topics.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []common.TopicConfig) error {
	for _, topic := range topics {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the broker connection.
func (m *TopicManager) Close() error {
	return m.conn.Close()
}

// DefaultTopics returns the request and result topics plus their dead-letter
// topics, sized for a single-broker development cluster when replication is 1.
func DefaultTopics(requestTopic, resultTopic string, replication int) []common.TopicConfig {
	if replication <= 0 {
		replication = 1
	}
	const day = int64(24 * time.Hour / time.Millisecond)
	return []common.TopicConfig{
		{Name: requestTopic, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 7 * day},
		{Name: resultTopic, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 7 * day},
		{Name: DeadLetterTopic(requestTopic), NumPartitions: 1, ReplicationFactor: replication, RetentionMs: 30 * day},
		{Name: DeadLetterTopic(resultTopic), NumPartitions: 1, ReplicationFactor: replication, RetentionMs: 30 * day},
	}
}
