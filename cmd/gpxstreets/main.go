// Package main implements the gpxstreets CLI, which lists the streets a
// recorded GPX path travelled along and when each was entered.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/codeGROOVE-dev/gpxstreets/pkg/googlemaps"
	"github.com/codeGROOVE-dev/gpxstreets/pkg/httpcache"
	"github.com/codeGROOVE-dev/gpxstreets/pkg/nominatim"
	"github.com/codeGROOVE-dev/gpxstreets/pkg/street"
	"github.com/codeGROOVE-dev/gpxstreets/pkg/track"
)

const cacheTTL = 30 * 24 * time.Hour

var (
	downsample     = flag.Int("downsample", 5, "Only geocode 1 out of every N points")
	requestDelay   = flag.Float64("request-delay", 0.5, "Delay in seconds before each geocoding request")
	threshold      = flag.Int("threshold", 3, "Consecutive hits required to confirm a new street")
	finalThreshold = flag.Int("final-threshold", 2, "Hits required to confirm a street still pending when the path ends")
	debug          = flag.Bool("debug", false, "Print each geocoded point and GPX contents")
	cacheDir       = flag.String("cache-dir", "", "Cache directory (or set CACHE_DIR)")
	noCache        = flag.Bool("no-cache", false, "Disable caching of geocoding responses")
	nominatimURL   = flag.String("nominatim-url", "", "Nominatim base URL (or set NOMINATIM_URL)")
	userAgent      = flag.String("user-agent", "", "User-Agent sent to Nominatim (or set NOMINATIM_USER_AGENT)")
	geocoder       = flag.String("geocoder", "nominatim", "Reverse geocoder: nominatim or google")
	mapsAPIKey     = flag.String("maps-key", "", "Google Maps API key for -geocoder=google (or set GOOGLE_MAPS_API_KEY)")
	showProgress   = flag.Bool("progress", false, "Show a progress bar on stderr")
	noColor        = flag.Bool("no-color", false, "Disable colored output")
	version        = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("gpxstreets v1.0.0")
		return
	}

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file.gpx>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *noColor {
		color.NoColor = true
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(*debug),
	}))

	if *cacheDir == "" {
		*cacheDir = os.Getenv("CACHE_DIR")
	}
	if *nominatimURL == "" {
		*nominatimURL = os.Getenv("NOMINATIM_URL")
	}
	if *userAgent == "" {
		*userAgent = os.Getenv("NOMINATIM_USER_AGENT")
	}
	if *mapsAPIKey == "" {
		*mapsAPIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
	}
	if *geocoder != "nominatim" && *geocoder != "google" {
		fmt.Fprintf(os.Stderr, "unknown geocoder %q: want nominatim or google\n", *geocoder)
		os.Exit(1)
	}

	doc, err := track.Load(args[0])
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err) //nolint:errcheck // best-effort
		os.Exit(1)
	}
	track.Describe(doc).Log(logger)

	samples := track.Collect(doc)
	if len(samples) == 0 {
		color.New(color.FgYellow).Println("No track/route/waypoint data found in this GPX.") //nolint:errcheck // best-effort
		return
	}
	logger.Debug("collected points", "count", len(samples), "length_m", int(track.Length(samples)),
		"start", track.StartTime(samples))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cache := openCache(ctx, logger)

	classifier := newClassifier(cache, logger)

	opts := street.Options{
		Downsample:     *downsample,
		RequestDelay:   time.Duration(*requestDelay * float64(time.Second)),
		Threshold:      *threshold,
		FinalThreshold: *finalThreshold,
		Logger:         logger,
		OnEvent:        func(ev street.Event) { fmt.Println(ev) },
	}
	if *showProgress {
		bar := newProgressBar(street.Retained(len(samples), *downsample))
		opts.OnSample = func(p street.Progress) {
			if p.Street != "" {
				bar.Describe(p.Street)
			}
			if err := bar.Add(1); err != nil {
				logger.Debug("failed to update progress bar", "error", err)
			}
		}
	}

	_, err = street.Extract(ctx, samples, classifier, opts)
	if cache != nil {
		if closeErr := cache.Close(); closeErr != nil {
			logger.Error("failed to save cache", "error", closeErr)
		}
	}
	if err != nil {
		logger.Error("extraction interrupted", "error", err)
		os.Exit(1)
	}
}

// logLevel shows warnings by default so lookup and cache failures are visible.
func logLevel(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// newClassifier builds the selected geocoder on top of the response cache.
// Each geocoder decides which 200 bodies are answers worth keeping.
func newClassifier(cache *httpcache.Cache, logger *slog.Logger) street.Classifier {
	if *geocoder == "google" {
		hc := httpcache.NewClient(cache, &http.Client{}, logger, httpcache.WithAccept(googlemaps.Cacheable))
		return googlemaps.NewClient(*mapsAPIKey, hc, logger)
	}
	hc := httpcache.NewClient(cache, &http.Client{}, logger, httpcache.WithAccept(nominatim.Cacheable))
	return nominatim.New(
		nominatim.WithBaseURL(*nominatimURL),
		nominatim.WithUserAgent(*userAgent),
		nominatim.WithHTTPClient(hc),
		nominatim.WithLogger(logger),
	)
}

// openCache returns nil when caching is disabled or unavailable; the run
// continues uncached in that case.
func openCache(ctx context.Context, logger *slog.Logger) *httpcache.Cache {
	if *noCache {
		return nil
	}
	dir := *cacheDir
	if dir == "" {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			logger.Debug("could not determine user cache directory", "error", err)
			return nil
		}
		dir = filepath.Join(userCacheDir, "gpxstreets")
	}
	cache, err := httpcache.New(ctx, dir, cacheTTL, logger)
	if err != nil {
		logger.Warn("cache initialization failed", "error", err, "cache_dir", dir)
		return nil
	}
	return cache
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(!color.NoColor),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Geocoding points"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
}
