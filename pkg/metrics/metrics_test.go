package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 1}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.evidenceItems.WithLabelValues("injury").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_evidence_items_total"], ShouldBeTrue)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording pipeline counters", func() {
			before := testutil.ToFloat64(globalManager.validations.WithLabelValues("played_recently"))
			RecordValidation("played_recently")
			RecordValidation("played_recently")

			Convey("Then the counter advances", func() {
				after := testutil.ToFloat64(globalManager.validations.WithLabelValues("played_recently"))
				So(after-before, ShouldEqual, 2.0)
			})
		})

		Convey("When setting gauges", func() {
			UpdateActiveInjuries(7)
			UpdateQueueDepth(3)

			Convey("Then the gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.activeInjuries), ShouldEqual, 7.0)
				So(testutil.ToFloat64(globalManager.queueDepth), ShouldEqual, 3.0)
			})
		})

		Convey("When recording every helper", func() {
			Convey("Then none of them panic", func() {
				So(func() {
					RecordEvidence("duplicate")
					RecordAbsence("medical")
					RecordTransition("available", "confirmed")
					RecordCacheLookup("miss")
					RecordProviderRequest("fixtures", "200", 0.2)
					RecordRun("ok", 12)
					UpdateWorkerActiveCount(4)
					RecordWorkerJobDuration(0.5)
					RecordErrorByComponent("worker", "panic")
					RecordHTTPRequest("/v1/injuries", "GET", "200")
					RecordHTTPRequestDuration("/v1/injuries", "GET", "200", 3)
				}, ShouldNotPanic)
			})
		})

		Convey("When fetching the registry", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
