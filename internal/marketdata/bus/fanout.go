// Package bus broadcasts closed periods from the ingestion pipeline to
// downstream consumers (persistence, publishing, dashboards).
package bus

import (
	"context"
	"log/slog"
	"sync"

	"algotrader/internal/model"
)

// FanOut broadcasts period messages from a single input channel to N output
// channels. If an output channel is full, the message is dropped for that
// consumer so a slow store or dashboard cannot stall the trading pipeline.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan model.PeriodMessage
	bufSize int
	log     *slog.Logger

	// OnDrop is called with the 0-based index of the slow consumer when a
	// message is dropped for it.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
		log:     slog.Default().With(slog.String("component", "bus")),
	}
}

// Subscribe creates and returns a new output channel. All subscriptions
// must happen before Run starts delivering.
func (f *FanOut) Subscribe() <-chan model.PeriodMessage {
	ch := make(chan model.PeriodMessage, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.mu.Unlock()
	return ch
}

// Run reads from the input channel and fans out to all subscribers.
// Blocks until ctx is cancelled or input is closed; output channels are
// closed on return.
func (f *FanOut) Run(ctx context.Context, input <-chan model.PeriodMessage) {
	defer func() {
		f.mu.RLock()
		for _, ch := range f.outputs {
			close(ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for i, ch := range f.outputs {
				select {
				case ch <- msg:
				default:
					if f.OnDrop != nil {
						f.OnDrop(i)
					} else {
						f.log.Warn("subscriber channel full, dropping period",
							slog.Int("subscriber", i), slog.String("symbol", msg.Symbol))
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}

// ChannelStat reports (length, capacity) for one subscriber channel, used
// for saturation reporting.
type ChannelStat struct {
	Len int
	Cap int
}

// ChannelStats returns the current stats for every subscriber channel.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, ch := range f.outputs {
		stats[i] = ChannelStat{Len: len(ch), Cap: cap(ch)}
	}
	return stats
}
