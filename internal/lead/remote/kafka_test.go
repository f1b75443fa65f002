package remote

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"leadcapture/internal/platform/logger"
	"leadcapture/internal/platform/metrics"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	flushed int
	closed  bool
}

func (f *fakeProducer) Produce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.records = append(f.records, r)
	promise(r, f.err)
}

func (f *fakeProducer) Flush(context.Context) error {
	f.flushed++
	return nil
}

func (f *fakeProducer) Close() { f.closed = true }

func TestKafkaSinkProducesPayloadKeyedByID(t *testing.T) {
	fake := &fakeProducer{}
	sink := &KafkaSink{client: fake, topic: "leads.captured", logger: logger.Discard()}

	sink.Send(context.Background(), sampleLead())
	sink.Close()

	require.Len(t, fake.records, 1)
	rec := fake.records[0]
	assert.Equal(t, "leads.captured", rec.Topic)
	assert.Equal(t, "1760000000000", string(rec.Key))

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Value, &payload))
	assert.Equal(t, "Atlas", payload["company"])
	assert.NotContains(t, payload, "id")
	assert.Equal(t, 1, fake.flushed)
	assert.True(t, fake.closed)
}

func TestKafkaSinkCountsFailures(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	fake := &fakeProducer{err: errors.New("broker down")}
	sink := &KafkaSink{client: fake, topic: "leads.captured", logger: logger.Discard(), metrics: m}

	sink.Send(context.Background(), sampleLead())

	assert.Equal(t, 1.0, promtest.ToFloat64(m.RemoteWriteFailures.WithLabelValues("kafka")))
}

type fakeAdmin struct {
	resp  kadm.CreateTopicResponse
	err   error
	topic string
}

func (f *fakeAdmin) CreateTopic(_ context.Context, partitions int32, replicationFactor int16, _ map[string]*string, topic string) (kadm.CreateTopicResponse, error) {
	f.topic = topic
	return f.resp, f.err
}

func TestKafkaSinkEnsureTopic(t *testing.T) {
	tests := []struct {
		name    string
		admin   *fakeAdmin
		wantErr bool
	}{
		{name: "created", admin: &fakeAdmin{}},
		{name: "already exists", admin: &fakeAdmin{err: kerr.TopicAlreadyExists}},
		{name: "already exists in response", admin: &fakeAdmin{resp: kadm.CreateTopicResponse{Err: kerr.TopicAlreadyExists}}},
		{name: "not authorized", admin: &fakeAdmin{err: kerr.TopicAuthorizationFailed}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &KafkaSink{client: &fakeProducer{}, admin: tt.admin, topic: "leads.captured", logger: logger.Discard()}
			err := sink.EnsureTopic(context.Background())
			assert.Equal(t, "leads.captured", tt.admin.topic)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, kerr.TopicAuthorizationFailed)
				return
			}
			assert.NoError(t, err)
		})
	}
}
