package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating a manager with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("sub"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.RecordCorrelation()

			Convey("Then metric names carry the namespace and subsystem", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() == "test_sub_correlations_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty values are passed", func() {
			m := &Manager{namespace: "keep", histogramBuckets: []float64{1}}
			WithNamespace("")(m)
			WithHistogramBuckets(nil)(m)
			WithPrometheusRegistry(nil)(m)
			WithConstLabels(nil)(m)

			Convey("Then defaults are kept", func() {
				So(m.namespace, ShouldEqual, "keep")
				So(m.histogramBuckets, ShouldResemble, []float64{1})
				So(m.registry, ShouldBeNil)
				So(m.constLabels, ShouldBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager on a fresh registry", t, func() {
		manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

		Convey("When recording rating metrics", func() {
			manager.RecordStarComputation("overall")
			manager.RecordStarComputation("overall")
			manager.RecordStarComputation("part_c")
			manager.RecordInsufficientData("compute_star")
			manager.RecordRecommendationsRanked(4)
			manager.RecordRecommendationsRanked(0)
			manager.RecordComputeLatency("simulate", 1.5)

			Convey("Then counters reflect the calls", func() {
				So(testutil.ToFloat64(manager.starComputations.WithLabelValues("overall")), ShouldEqual, 2)
				So(testutil.ToFloat64(manager.starComputations.WithLabelValues("part_c")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.insufficientData.WithLabelValues("compute_star")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.recommendationsRanked), ShouldEqual, 4)
			})
		})

		Convey("When recording session metrics", func() {
			manager.RecordSessionCreated()
			manager.RecordOverrideSet()
			manager.RecordOverrideSet()
			manager.RecordSessionEvicted()
			manager.RecordSessionDropped()
			manager.UpdateActiveSessions(3)

			Convey("Then gauges and counters reflect the calls", func() {
				So(testutil.ToFloat64(manager.sessionsCreated), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.overridesSet), ShouldEqual, 2)
				So(testutil.ToFloat64(manager.sessionsEvicted), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.sessionsDropped), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.activeSessions), ShouldEqual, 3)
			})
		})

		Convey("When recording repository metrics", func() {
			at := time.Unix(1700000000, 0)
			manager.RecordSnapshotLoad(at)
			manager.UpdateRepositoryRecords("measure_rows", 120)
			manager.RecordRepositoryQueryLatency("contract", 0.2)

			Convey("Then the snapshot time is stamped", func() {
				So(testutil.ToFloat64(manager.snapshotLoads), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.snapshotLastUnix), ShouldEqual, 1700000000)
				So(testutil.ToFloat64(manager.repositoryRecordsTotal.WithLabelValues("measure_rows")), ShouldEqual, 120)
			})
		})

		Convey("When recording HTTP and error metrics", func() {
			manager.RecordHTTPRequest("/healthz", "GET", "200")
			manager.RecordHTTPRequestDuration("/healthz", "GET", "200", 2)
			manager.RecordErrorByComponent("repository", "not_found")

			Convey("Then they are counted by label", func() {
				So(testutil.ToFloat64(manager.httpRequests.WithLabelValues("/healthz", "GET", "200")), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.errorRateByComponent.WithLabelValues("repository", "not_found")), ShouldEqual, 1)
			})
		})
	})
}

func TestGlobalMetrics(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording through package functions", func() {
			So(func() {
				RecordStarComputation("part_d")
				RecordInsufficientData("simulate")
				RecordComputeLatency("correlate", 0)
				RecordRecommendationsRanked(2)
				RecordCorrelation()
				RecordOverrideSet()
				UpdateActiveSessions(0)
				RecordSessionCreated()
				RecordSessionDropped()
				RecordSessionEvicted()
				RecordHTTPRequest("", "", "200")
				RecordHTTPRequestDuration("/x", "GET", "200", 10)
				RecordRepositoryQueryLatency("contracts", 1)
				UpdateRepositoryRecords("contracts", 5)
				RecordSnapshotLoad(time.Now())
				RecordErrorByComponent("service", "internal")
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry exposes the starsim metrics", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			So(names, ShouldContain, "starsim_engine_star_computations_total")
			So(names, ShouldContain, "starsim_engine_overrides_set_total")
		})
	})

	Convey("Given a start time", t, func() {
		So(SinceMs(time.Now().Add(-10*time.Millisecond)), ShouldBeGreaterThanOrEqualTo, 10)
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given metrics concurrency", t, func() {
		manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))
		done := make(chan bool, 10)

		for i := 0; i < 10; i++ {
			go func() {
				for j := 0; j < 100; j++ {
					manager.RecordStarComputation("overall")
					manager.UpdateActiveSessions(j)
					manager.RecordComputeLatency("compute_star", float64(j))
				}
				done <- true
			}()
		}
		for i := 0; i < 10; i++ {
			<-done
		}

		Convey("Then every increment is counted", func() {
			So(testutil.ToFloat64(manager.starComputations.WithLabelValues("overall")), ShouldEqual, 1000)
		})
	})
}
