//go:build integration

package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"g2p/internal/lgd/models"
	"g2p/pkg/testutil/containers"
)

func TestKafkaPublishesToBroker(t *testing.T) {
	kc := containers.NewKafkaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := NewKafkaClient(kc.Brokers, "g2p-test")
	require.NoError(t, err)
	defer client.Close()

	const topic = "g2p.confidence-changes.test"
	require.NoError(t, EnsureTopic(ctx, client, topic, 1, 1))
	// a second call sees the existing topic
	require.NoError(t, EnsureTopic(ctx, client, topic, 1, 1))

	k := NewKafka(client, WithTopic(topic), WithKafkaLogger(quietLogger()))
	require.NoError(t, k.NotifyConfidenceChange(ctx, change()))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(kc.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, []byte("G2P00001"), records[0].Key)

	var got models.ConfidenceChange
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, change(), got)
}
