package track

import (
	"log/slog"

	"github.com/tkrajina/gpxgo/gpx"
)

// Summary counts what a GPX document contains, per source.
type Summary struct {
	// TrackSegments holds, per track, the point count of each segment.
	TrackSegments [][]int
	// RoutePoints holds the point count of each route.
	RoutePoints []int
	Waypoints   int
}

// Describe summarizes the contents of g.
func Describe(g *gpx.GPX) Summary {
	var s Summary
	if g == nil {
		return s
	}
	for i := range g.Tracks {
		segs := make([]int, len(g.Tracks[i].Segments))
		for j := range g.Tracks[i].Segments {
			segs[j] = len(g.Tracks[i].Segments[j].Points)
		}
		s.TrackSegments = append(s.TrackSegments, segs)
	}
	for i := range g.Routes {
		s.RoutePoints = append(s.RoutePoints, len(g.Routes[i].Points))
	}
	s.Waypoints = len(g.Waypoints)
	return s
}

// Log writes the summary at debug level.
func (s Summary) Log(logger *slog.Logger) {
	logger.Debug("gpx contents", "tracks", len(s.TrackSegments), "routes", len(s.RoutePoints), "waypoints", s.Waypoints)
	for t, segs := range s.TrackSegments {
		logger.Debug("track", "index", t, "segments", len(segs))
		for i, n := range segs {
			logger.Debug("segment", "track", t, "index", i, "points", n)
		}
	}
	for r, n := range s.RoutePoints {
		logger.Debug("route", "index", r, "points", n)
	}
}
