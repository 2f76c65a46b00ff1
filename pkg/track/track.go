// Package track flattens parsed GPX documents into an ordered list of samples.
package track

import (
	"fmt"
	"time"

	"github.com/golang/geo/s2"
	"github.com/tkrajina/gpxgo/gpx"
)

// earthRadiusMeters is the mean Earth radius used for path length estimates.
const earthRadiusMeters = 6371008.8

// Sample is one recorded point. A zero Time means the point carried no timestamp.
type Sample struct {
	Time time.Time
	Lat  float64
	Lon  float64
}

// Load parses the GPX file at path.
func Load(path string) (*gpx.GPX, error) {
	g, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing GPX %s: %w", path, err)
	}
	return g, nil
}

// Collect returns the points of exactly one source in document order.
// Track points win over route points, which win over waypoints.
func Collect(g *gpx.GPX) []Sample {
	if g == nil {
		return nil
	}

	var samples []Sample
	for i := range g.Tracks {
		for j := range g.Tracks[i].Segments {
			samples = appendPoints(samples, g.Tracks[i].Segments[j].Points)
		}
	}
	if len(samples) > 0 {
		return samples
	}

	for i := range g.Routes {
		samples = appendPoints(samples, g.Routes[i].Points)
	}
	if len(samples) > 0 {
		return samples
	}

	return appendPoints(samples, g.Waypoints)
}

func appendPoints(dst []Sample, pts []gpx.GPXPoint) []Sample {
	for i := range pts {
		dst = append(dst, Sample{
			Lat:  pts[i].Latitude,
			Lon:  pts[i].Longitude,
			Time: pts[i].Timestamp,
		})
	}
	return dst
}

// StartTime returns the first non-zero timestamp, or the zero time if no
// sample has one.
func StartTime(samples []Sample) time.Time {
	for i := range samples {
		if !samples[i].Time.IsZero() {
			return samples[i].Time
		}
	}
	return time.Time{}
}

// Length returns the great-circle length of the path in meters.
func Length(samples []Sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	var total float64
	prev := s2.LatLngFromDegrees(samples[0].Lat, samples[0].Lon)
	for i := 1; i < len(samples); i++ {
		cur := s2.LatLngFromDegrees(samples[i].Lat, samples[i].Lon)
		total += prev.Distance(cur).Radians() * earthRadiusMeters
		prev = cur
	}
	return total
}
