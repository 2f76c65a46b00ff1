package street

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/gpxstreets/pkg/track"
)

// Classifier names the street at a coordinate. It returns "" when no street
// is known and absorbs its own failures.
type Classifier interface {
	StreetName(ctx context.Context, lat, lon float64) string
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, lat, lon float64) string

// StreetName calls f.
func (f ClassifierFunc) StreetName(ctx context.Context, lat, lon float64) string {
	return f(ctx, lat, lon)
}

// Progress describes one classified sample.
type Progress struct {
	Street string
	Index  int
	Offset float64
}

// Options controls a run.
type Options struct {
	// OnSample, if set, is called after each classified sample.
	OnSample func(Progress)
	// OnEvent, if set, is called as soon as an event is confirmed.
	OnEvent func(Event)
	Logger   *slog.Logger
	// Downsample classifies only every Nth sample, starting at index 0.
	Downsample int
	// RequestDelay is slept before every classification call.
	RequestDelay   time.Duration
	Threshold      int
	FinalThreshold int
}

// DefaultOptions returns the command-line defaults.
func DefaultOptions() Options {
	return Options{
		Downsample:     5,
		RequestDelay:   500 * time.Millisecond,
		Threshold:      3,
		FinalThreshold: 2,
	}
}

// Retained returns how many samples a run with the given stride will classify.
func Retained(n, downsample int) int {
	if n <= 0 {
		return 0
	}
	downsample = max(downsample, 1)
	return (n + downsample - 1) / downsample
}

// Extract classifies the retained samples in order and returns the confirmed
// street changes. It only fails when ctx is cancelled, in which case the
// events confirmed so far are returned along with ctx.Err().
func Extract(ctx context.Context, samples []track.Sample, c Classifier, opts Options) ([]Event, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stride := max(opts.Downsample, 1)
	start := track.StartTime(samples)
	d := NewDebouncer(opts.Threshold, opts.FinalThreshold)

	var events []Event
	for i := 0; i < len(samples); i += stride {
		if err := pause(ctx, opts.RequestDelay); err != nil {
			return events, err
		}

		s := samples[i]
		offset := offsetSeconds(start, s.Time)
		name := c.StreetName(ctx, s.Lat, s.Lon)
		logger.Debug("classified point", "i", i, "lat", s.Lat, "lon", s.Lon, "street", name)

		if ev, ok := d.Step(name, offset); ok {
			logger.Debug("street confirmed", "street", ev.Street, "offset", ev.Offset, "confirmed_at", offset)
			events = emit(events, ev, opts.OnEvent)
		}
		if opts.OnSample != nil {
			opts.OnSample(Progress{Index: i, Offset: offset, Street: name})
		}
	}

	if ev, ok := d.Finish(); ok {
		logger.Debug("trailing street confirmed", "street", ev.Street, "offset", ev.Offset)
		events = emit(events, ev, opts.OnEvent)
	}
	return events, nil
}

func emit(events []Event, ev Event, fn func(Event)) []Event {
	if fn != nil {
		fn(ev)
	}
	return append(events, ev)
}

func offsetSeconds(start, t time.Time) float64 {
	if start.IsZero() || t.IsZero() {
		return 0
	}
	return t.Sub(start).Seconds()
}

func pause(ctx context.Context, d time.Duration) error {
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
