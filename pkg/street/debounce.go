// Package street turns a noisy per-point street label stream into confirmed
// street changes.
package street

import "fmt"

// Event is a confirmed street change. Offset is the time in seconds since the
// start of the recording at which the street was first seen.
type Event struct {
	Street string
	Offset float64
}

// String formats the event as "MM:SS Street".
func (e Event) String() string {
	return FormatOffset(e.Offset) + " " + e.Street
}

// FormatOffset renders seconds as zero-padded MM:SS. There is no hour field,
// so an offset of one hour or more prints 60 minutes or more.
func FormatOffset(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

type candidate struct {
	name string
	hits []float64
}

// Debouncer is the confirmation state machine for a single run.
// The zero value is not usable; use NewDebouncer.
type Debouncer struct {
	cand           *candidate
	confirmed      string
	threshold      int
	finalThreshold int
}

// NewDebouncer returns a debouncer that confirms a street after threshold
// consecutive hits, or finalThreshold hits for a candidate still pending when
// the input ends.
func NewDebouncer(threshold, finalThreshold int) *Debouncer {
	return &Debouncer{
		threshold:      max(threshold, 1),
		finalThreshold: max(finalThreshold, 1),
	}
}

// Confirmed returns the currently confirmed street, or "" before any confirmation.
func (d *Debouncer) Confirmed() string {
	return d.confirmed
}

// Step feeds one label observed at offset seconds. An empty label means the
// classifier had no answer and leaves the state untouched.
func (d *Debouncer) Step(label string, offset float64) (Event, bool) {
	switch {
	case label == "":
		return Event{}, false
	case label == d.confirmed:
		d.cand = nil
		return Event{}, false
	case d.cand != nil && label == d.cand.name:
		d.cand.hits = append(d.cand.hits, offset)
		if len(d.cand.hits) < d.threshold {
			return Event{}, false
		}
		ev := Event{Street: label, Offset: d.cand.hits[0]}
		d.confirmed = label
		d.cand = nil
		return ev, true
	default:
		d.cand = &candidate{name: label, hits: []float64{offset}}
		return Event{}, false
	}
}

// Finish confirms a trailing candidate that reached the final threshold.
// It clears the candidate, so calling it twice emits at most one event.
func (d *Debouncer) Finish() (Event, bool) {
	c := d.cand
	d.cand = nil
	if c == nil || c.name == d.confirmed || len(c.hits) < d.finalThreshold {
		return Event{}, false
	}
	d.confirmed = c.name
	return Event{Street: c.name, Offset: c.hits[0]}, true
}
