package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadcapture/internal/kv"
	"leadcapture/internal/lead/models"
	"leadcapture/internal/platform/logger"
	"leadcapture/internal/platform/metrics"
)

type flakyDeliverer struct {
	mu        sync.Mutex
	failFirst map[string]int
	calls     map[string]int
	delivered []string
}

func (f *flakyDeliverer) PostChecked(_ context.Context, rec models.LeadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[rec.ID]++
	if f.calls[rec.ID] <= f.failFirst[rec.ID] {
		return errors.New("upstream unavailable")
	}
	f.delivered = append(f.delivered, rec.ID)
	return nil
}

func queue(t *testing.T, sink *Sink, ids ...string) {
	t.Helper()
	for _, id := range ids {
		sink.Send(context.Background(), models.LeadRecord{ID: id, Name: "lead " + id})
	}
}

func TestSinkQueuesPending(t *testing.T) {
	store := kv.NewMemoryStore()
	m := metrics.New(prometheus.NewRegistry())
	sink := NewSink(store, logger.Discard(), m)

	queue(t, sink, "1", "2")

	entries, err := Pending(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].Record.ID)
	assert.Equal(t, "2", entries[1].Record.ID)
	assert.Equal(t, 2.0, promtest.ToFloat64(m.OutboxPending))
}

func TestDrainOnceRetriesAndRemovesDelivered(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	sink := NewSink(store, logger.Discard(), nil)
	queue(t, sink, "1", "2")

	d := &flakyDeliverer{failFirst: map[string]int{"1": 2}}
	drainer := NewDrainer(store, d, time.Hour, logger.Discard(), WithRetry(3, time.Millisecond))

	n, err := drainer.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"1", "2"}, d.delivered)
	assert.Equal(t, 3, d.calls["1"])

	entries, err := Pending(ctx, store)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDrainOnceKeepsUndeliveredEntries(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	sink := NewSink(store, logger.Discard(), nil)
	queue(t, sink, "1", "2")

	d := &flakyDeliverer{failFirst: map[string]int{"2": 100}}
	drainer := NewDrainer(store, d, time.Hour, logger.Discard(), WithRetry(1, time.Millisecond))

	n, err := drainer.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := Pending(ctx, store)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2", entries[0].Record.ID)
	assert.Equal(t, 2, entries[0].Attempts)
}

func TestDrainOnceEmptyOutbox(t *testing.T) {
	drainer := NewDrainer(kv.NewMemoryStore(), &flakyDeliverer{}, time.Hour, logger.Discard())
	n, err := drainer.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunStopsOnCancel(t *testing.T) {
	store := kv.NewMemoryStore()
	queue(t, NewSink(store, logger.Discard(), nil), "1")
	d := &flakyDeliverer{}
	drainer := NewDrainer(store, d, 10*time.Millisecond, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- drainer.Run(ctx) }()

	require.Eventually(t, func() bool {
		entries, _ := Pending(context.Background(), store)
		return len(entries) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("drainer did not stop")
	}
}
