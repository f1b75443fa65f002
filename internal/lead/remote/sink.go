// Package remote delivers captured leads to the shared spreadsheet and reads
// its tabular export back.
//
// Delivery is best effort. A Sink never reports an outcome to its caller: the
// local copy is authoritative and remote failures only surface in logs and
// metrics.
package remote

import (
	"context"
	"sync"

	"leadcapture/internal/lead/models"
)

// Sink accepts a lead for background delivery. Send must not block on the
// network.
type Sink interface {
	Send(ctx context.Context, rec models.LeadRecord)
}

// Waiter is implemented by sinks that track in-flight deliveries.
type Waiter interface {
	Wait()
}

// FanoutSink sends every lead to each of its sinks independently.
type FanoutSink struct {
	sinks []Sink
}

func NewFanoutSink(sinks ...Sink) *FanoutSink {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &FanoutSink{sinks: kept}
}

func (f *FanoutSink) Send(ctx context.Context, rec models.LeadRecord) {
	for _, s := range f.sinks {
		s.Send(ctx, rec)
	}
}

// Wait blocks until every child that tracks deliveries is idle.
func (f *FanoutSink) Wait() {
	var wg sync.WaitGroup
	for _, s := range f.sinks {
		if w, ok := s.(Waiter); ok {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.Wait()
			}()
		}
	}
	wg.Wait()
}

// NopSink drops every lead. Used when no remote endpoint is configured.
type NopSink struct{}

func (NopSink) Send(context.Context, models.LeadRecord) {}
