package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// Recorder drains an event stream into a Sink. A failed event is logged,
// counted and skipped; the stream keeps flowing. The stream should come from a
// durable bus subscription; a hole in the sequence numbers is logged as a gap.
type Recorder struct {
	sink    Sink
	logger  *zap.Logger
	timeout time.Duration
	lastSeq uint64
}

// RecorderConfig holds recorder configuration.
type RecorderConfig struct {
	Sink   Sink
	Logger *zap.Logger

	// StoreTimeout bounds one Store call. Defaults to 5s.
	StoreTimeout time.Duration
}

// NewRecorder creates a recorder.
func NewRecorder(cfg *RecorderConfig) (*Recorder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	timeout := cfg.StoreTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{sink: cfg.Sink, logger: cfg.Logger, timeout: timeout}, nil
}

// Run stores events until the channel closes or ctx is cancelled.
func (r *Recorder) Run(ctx context.Context, events <-chan types.Event) {
	r.logger.Info("event-recorder-started")
	defer r.logger.Info("event-recorder-stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.checkSequence(&ev)
			r.store(ctx, &ev)
		}
	}
}

func (r *Recorder) checkSequence(ev *types.Event) {
	last := r.lastSeq
	if ev.Sequence > last {
		r.lastSeq = ev.Sequence
	}
	if last == 0 || ev.Sequence == last+1 {
		return
	}
	if ev.Sequence <= last {
		r.logger.Warn("event-sequence-regressed",
			zap.Uint64("last-sequence", last),
			zap.Uint64("sequence", ev.Sequence))
		return
	}
	missing := ev.Sequence - last - 1
	SequenceGapsTotal.Add(float64(missing))
	r.logger.Error("event-sequence-gap",
		zap.Uint64("after-sequence", last),
		zap.Uint64("sequence", ev.Sequence),
		zap.Uint64("missing", missing))
}

func (r *Recorder) store(ctx context.Context, ev *types.Event) {
	storeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := r.sink.Store(storeCtx, ev)
	StoreDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		EventsStoredTotal.WithLabelValues("error").Inc()
		r.logger.Error("event-store-failed",
			zap.Uint64("sequence", ev.Sequence),
			zap.String("event-type", string(ev.Type)),
			zap.Error(err))
		return
	}
	EventsStoredTotal.WithLabelValues("ok").Inc()
}
