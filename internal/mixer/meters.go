package mixer

import (
	"context"
	"time"

	"oscmix2mqtt/internal/logger"
)

const defaultMeterRateHz = 25

// Aggregator coalesces high-frequency meter reports into a bounded-rate
// stream. Each tick emits at most one sample per channel; channels without
// fresh reports emit nothing.
type Aggregator struct {
	log      logger.Logger
	state    *State
	interval time.Duration
	emit     func([]MeterSample)
}

func NewAggregator(log logger.Logger, state *State, rateHz int, emit func([]MeterSample)) *Aggregator {
	if rateHz <= 0 {
		rateHz = defaultMeterRateHz
	}
	return &Aggregator{
		log:      log,
		state:    state,
		interval: time.Second / time.Duration(rateHz),
		emit:     emit,
	}
}

// Run ticks until the context is cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	t := time.NewTicker(a.interval)
	defer t.Stop()

	a.log.With(logger.Fields{"module": "meters"}).Debugf("aggregator running, interval %s", a.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if samples := a.state.drainPendingMeters(); len(samples) > 0 && a.emit != nil {
				a.emit(samples)
			}
		}
	}
}
