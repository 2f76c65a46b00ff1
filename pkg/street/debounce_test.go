package street

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// run feeds labels at offsets 0, 10, 20, ... and finishes.
func run(d *Debouncer, labels []string) []Event {
	var events []Event
	for i, l := range labels {
		if ev, ok := d.Step(l, float64(i*10)); ok {
			events = append(events, ev)
		}
	}
	if ev, ok := d.Finish(); ok {
		events = append(events, ev)
	}
	return events
}

func TestDebouncer(t *testing.T) {
	tests := []struct {
		name           string
		labels         []string
		want           []Event
		threshold      int
		finalThreshold int
	}{
		{
			name:      "basic confirmation",
			labels:    []string{"A", "A", "A"},
			threshold: 3, finalThreshold: 2,
			want: []Event{{Street: "A", Offset: 0}},
		},
		{
			name:      "single flicker is rejected",
			labels:    []string{"A", "A", "B", "A", "A", "A", "A"},
			threshold: 3, finalThreshold: 2,
			want: []Event{{Street: "A", Offset: 30}},
		},
		{
			name:      "trailing short segment confirmed by final threshold",
			labels:    []string{"A", "A", "A", "B", "B"},
			threshold: 3, finalThreshold: 2,
			want: []Event{{Street: "A", Offset: 0}, {Street: "B", Offset: 30}},
		},
		{
			name:      "trailing segment below final threshold",
			labels:    []string{"A", "A", "A", "B"},
			threshold: 3, finalThreshold: 2,
			want: []Event{{Street: "A", Offset: 0}},
		},
		{
			name:      "empty labels never change state",
			labels:    []string{"", "A", "", "A", "", "", "A", ""},
			threshold: 3, finalThreshold: 2,
			want: []Event{{Street: "A", Offset: 10}},
		},
		{
			name:      "only empty labels",
			labels:    []string{"", "", ""},
			threshold: 1, finalThreshold: 1,
			want: nil,
		},
		{
			// The hit that opens a candidate is never checked against the threshold.
			name:      "threshold of one needs a repeat",
			labels:    []string{"A", "B", "B", "C"},
			threshold: 1, finalThreshold: 1,
			want: []Event{{Street: "B", Offset: 10}, {Street: "C", Offset: 30}},
		},
		{
			name:      "alternating labels never confirm",
			labels:    []string{"A", "B", "A", "B", "A", "B"},
			threshold: 2, finalThreshold: 2,
			want: nil,
		},
		{
			name:      "new candidate discards old hits",
			labels:    []string{"A", "A", "B", "B", "A"},
			threshold: 3, finalThreshold: 3,
			want: nil,
		},
		{
			name:      "trailing candidate short of a final threshold of three",
			labels:    []string{"A", "A"},
			threshold: 3, finalThreshold: 3,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(NewDebouncer(tt.threshold, tt.finalThreshold), tt.labels)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDebouncerReturnToConfirmedStreet(t *testing.T) {
	d := NewDebouncer(3, 2)
	for i := range 3 {
		d.Step("A", float64(i))
	}
	if got := d.Confirmed(); got != "A" {
		t.Fatalf("Confirmed() = %q, want %q", got, "A")
	}

	for i, l := range []string{"B", "B", "A"} {
		if ev, ok := d.Step(l, float64(10+i)); ok {
			t.Fatalf("Step(%q) emitted %v", l, ev)
		}
	}
	if ev, ok := d.Finish(); ok {
		t.Errorf("Finish() emitted %v after returning to the confirmed street", ev)
	}
	if got := d.Confirmed(); got != "A" {
		t.Errorf("Confirmed() = %q, want %q", got, "A")
	}
}

func TestDebouncerFinishTwice(t *testing.T) {
	d := NewDebouncer(3, 1)
	d.Step("A", 5)
	if _, ok := d.Finish(); !ok {
		t.Fatal("first Finish() emitted nothing")
	}
	if ev, ok := d.Finish(); ok {
		t.Errorf("second Finish() emitted %v", ev)
	}
}

func TestFormatOffset(t *testing.T) {
	tests := []struct {
		want    string
		seconds float64
	}{
		{"00:00", 0},
		{"00:09", 9.99},
		{"01:00", 60},
		{"12:34", 754},
		{"59:59", 3599},
		{"60:00", 3600},
		{"62:05", 3725},
		{"00:00", -12},
	}
	for _, tt := range tests {
		if got := FormatOffset(tt.seconds); got != tt.want {
			t.Errorf("FormatOffset(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestEventString(t *testing.T) {
	ev := Event{Street: "Unter den Linden", Offset: 125}
	if got, want := ev.String(), "02:05 Unter den Linden"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
