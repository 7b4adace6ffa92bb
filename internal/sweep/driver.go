// Package sweep repeatedly scans the discovered centers of a city until a
// booking succeeds or the operator interrupts the process.
package sweep

import (
	"context"
	"time"

	"github.com/dosehunt/dosehunt/internal/doctolib"
	"github.com/dosehunt/dosehunt/internal/observability/metrics"
	"github.com/dosehunt/dosehunt/pkg/logging"
)

// CenterSource lists candidate centers for a city. Centers are re-fetched
// every sweep; nothing is cached between passes.
type CenterSource interface {
	FindCenters(ctx context.Context, city string) ([]doctolib.Center, error)
}

// Booker runs one booking attempt against a center.
type Booker interface {
	AttemptBooking(ctx context.Context, center doctolib.Center) (bool, error)
}

const (
	defaultCenterInterval = 1 * time.Second
	defaultSweepInterval  = 5 * time.Second
)

// Driver iterates discovered centers and retries the whole sweep with
// fixed pacing until a booking succeeds.
type Driver struct {
	source         CenterSource
	booker         Booker
	city           string
	centerInterval time.Duration
	sweepInterval  time.Duration
	logger         *logging.Logger
	metrics        *metrics.BookingMetrics
}

// Option is a functional option for configuring the Driver.
type Option func(*Driver)

// WithIntervals sets the pauses between failed centers and between sweeps.
func WithIntervals(center, sweep time.Duration) Option {
	return func(d *Driver) {
		d.centerInterval = center
		d.sweepInterval = sweep
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// New creates a sweep driver for one city.
func New(source CenterSource, booker Booker, city string, opts ...Option) *Driver {
	d := &Driver{
		source:         source,
		booker:         booker,
		city:           city,
		centerInterval: defaultCenterInterval,
		sweepInterval:  defaultSweepInterval,
		logger:         logging.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run sweeps until a booking is confirmed, returning the booked center.
// It stops cleanly between steps when ctx is cancelled. Transport errors
// abandon the current center or sweep only; the loop continues.
func (d *Driver) Run(ctx context.Context) (*doctolib.Center, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		d.metrics.ObserveSweep()
		centers, err := d.source.FindCenters(ctx, d.city)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.logger.Error("center discovery failed", "city", d.city, "error", err)
		}

		for i := range centers {
			center := centers[i]
			d.logger.Info("trying to find a slot", "center", center.Name)
			d.metrics.ObserveCenter()

			booked, err := d.booker.AttemptBooking(ctx, center)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				d.logger.Error("booking attempt failed", "center", center.Name, "error", err)
			}
			if booked {
				d.logger.Info("booked", "center", center.Name)
				return &center, nil
			}

			d.logger.Info("no booking at this center, trying next")
			if err := sleep(ctx, d.centerInterval); err != nil {
				return nil, err
			}
		}

		if err := sleep(ctx, d.sweepInterval); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
