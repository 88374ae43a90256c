// Package worker runs the outbox delivery loop.
//
// A Dispatcher drains due outbox entries on a fixed interval and whenever it
// is kicked (typically right after a transition commits). Ticks never overlap
// within a process: concurrent Tick calls share the result of the drain that
// is already running.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-purchase-backend/internal/services"
)

// Defaults used when the corresponding Dispatcher field is zero.
const (
	DefaultInterval = 30 * time.Second
	DefaultLimit    = 25
)

// Drainer is the part of the outbox the worker drives.
type Drainer interface {
	DrainDue(ctx context.Context, limit int) (services.DrainResult, error)
}

// Dispatcher schedules outbox drains.
type Dispatcher struct {
	Outbox   Drainer
	Interval time.Duration
	Limit    int

	kick  chan struct{}
	group singleflight.Group
}

// New returns a Dispatcher for outbox. Non-positive interval or limit fall
// back to DefaultInterval and DefaultLimit.
func New(outbox Drainer, interval time.Duration, limit int) *Dispatcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Dispatcher{
		Outbox:   outbox,
		Interval: interval,
		Limit:    limit,
		kick:     make(chan struct{}, 1),
	}
}

// Kick asks Run to tick as soon as possible. It never blocks; kicks that
// arrive while one is already pending are dropped.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Tick drains one batch of due entries. If a drain is already in progress
// the caller waits for it and receives its result.
//
// The drain is shared, so it does not inherit ctx's cancellation: a caller
// that goes away only stops waiting, and the drain carries on for the
// others.
func (d *Dispatcher) Tick(ctx context.Context) (services.DrainResult, error) {
	return d.tick(ctx, context.WithoutCancel(ctx))
}

// tick runs (or joins) a drain under run and waits for it until wait is done.
func (d *Dispatcher) tick(wait, run context.Context) (services.DrainResult, error) {
	ch := d.group.DoChan("tick", func() (any, error) {
		return d.drain(run)
	})
	select {
	case <-wait.Done():
		return services.DrainResult{}, wait.Err()
	case r := <-ch:
		res, _ := r.Val.(services.DrainResult)
		if r.Shared {
			log.Debug().Msg("outbox tick coalesced")
		}
		return res, r.Err
	}
}

func (d *Dispatcher) drain(ctx context.Context) (services.DrainResult, error) {
	start := time.Now()
	res, err := d.Outbox.DrainDue(ctx, d.Limit)
	dur := time.Since(start)
	tickDuration.Observe(dur.Seconds())

	entriesTotal.WithLabelValues("sent").Add(float64(res.Sent))
	entriesTotal.WithLabelValues("retried").Add(float64(res.Retried))
	entriesTotal.WithLabelValues("failed").Add(float64(res.Failed))

	if err != nil {
		ticksTotal.WithLabelValues("error").Inc()
		if !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Dur("duration", dur).Msg("outbox tick failed")
		}
		return res, err
	}
	ticksTotal.WithLabelValues("ok").Inc()

	if res.Claimed > 0 {
		log.Info().
			Int("claimed", res.Claimed).
			Int("sent", res.Sent).
			Int("retried", res.Retried).
			Int("failed", res.Failed).
			Dur("duration", dur).
			Msg("outbox tick")
	}
	return res, nil
}

// Run ticks once immediately, then on every interval and every kick, until
// ctx is done. Tick errors are logged and do not stop the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.kick == nil {
		d.kick = make(chan struct{}, 1)
	}
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	log.Info().Dur("interval", interval).Int("limit", d.Limit).Msg("outbox worker started")
	defer log.Info().Msg("outbox worker stopped")

	// Shutdown stops the loop's own drains between entries; Run still waits
	// for the outcome to be recorded before returning.
	tick := func() { _, _ = d.tick(context.Background(), ctx) }
	tick()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		case <-d.kick:
		}
		if ctx.Err() != nil {
			return nil
		}
		tick()
	}
}
