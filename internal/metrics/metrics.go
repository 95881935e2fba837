package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	TracksProcessed prometheus.Counter
	TracksFailed    prometheus.Counter

	StationsCalibrated prometheus.Counter
	StationsSkipped    prometheus.Counter

	AnomaliesDetected prometheus.Counter
	AnomaliesRepaired prometheus.Counter

	ApproximatePaths     prometheus.Counter
	MonotonicityWarnings prometheus.Counter

	StageDuration *prometheus.HistogramVec // stage label: parse|assemble|calibrate|parametrize|repair

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	ConnectTolerance prometheus.Gauge
	Workers          prometheus.Gauge
}

func NewCollector(connectTolerance float64, workers int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		TracksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackforge_tracks_processed_total",
			Help: "Total route-directions rebuilt successfully.",
		}),
		TracksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackforge_tracks_failed_total",
			Help: "Total route-directions aborted (malformed geometry or assembly failure).",
		}),
		StationsCalibrated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackforge_stations_calibrated_total",
			Help: "Total stations inserted into a track polyline.",
		}),
		StationsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackforge_stations_skipped_total",
			Help: "Total stations skipped because they exceeded the calibration ceiling.",
		}),
		AnomaliesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackforge_anomalies_detected_total",
			Help: "Total zigzag anomalies flagged at station vertices.",
		}),
		AnomaliesRepaired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackforge_anomalies_repaired_total",
			Help: "Total anomalies repaired by chord-projection splice.",
		}),
		ApproximatePaths: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackforge_approximate_paths_total",
			Help: "Total paths degraded to a direct line because no connectivity was found.",
		}),
		MonotonicityWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackforge_monotonicity_warnings_total",
			Help: "Total progress-inversion warnings reported by validation.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trackforge_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages per track.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"stage"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackforge_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackforge_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trackforge_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trackforge_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		ConnectTolerance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trackforge_connect_tolerance",
			Help: "Endpoint connect tolerance in planar units.",
		}),
		Workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trackforge_workers",
			Help: "Configured worker pool size.",
		}),
	}

	reg.MustRegister(
		c.TracksProcessed, c.TracksFailed,
		c.StationsCalibrated, c.StationsSkipped,
		c.AnomaliesDetected, c.AnomaliesRepaired,
		c.ApproximatePaths, c.MonotonicityWarnings,
		c.StageDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.ConnectTolerance, c.Workers,
	)

	c.ConnectTolerance.Set(connectTolerance)
	c.Workers.Set(float64(workers))

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
