package monitor

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName             = "devscan.monitor"
	metricLifecycleEvents = "devscan_device_events_total"
	metricTrackedDevices  = "devscan_tracked_devices"
)

var (
	// instrumentation handles are cached globally to avoid re-registering OTEL instruments on every call.
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	eventCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	trackedGauge metric.Int64UpDownCounter
)

func initMeter() {
	meter := otel.Meter(meterName)

	counter, err := meter.Int64Counter(
		metricLifecycleEvents,
		metric.WithDescription("Device lifecycle events delivered to listeners"),
	)
	if err != nil {
		otel.Handle(err)
	}
	eventCounter = counter

	gauge, err := meter.Int64UpDownCounter(
		metricTrackedDevices,
		metric.WithDescription("Devices currently present in the monitor"),
	)
	if err != nil {
		otel.Handle(err)
	}
	trackedGauge = gauge
}

func recordEvent(kind eventKind) {
	meterOnce.Do(initMeter)
	if eventCounter == nil {
		return
	}

	eventCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("event", kind.String())))
}

func recordTracked(delta int64) {
	meterOnce.Do(initMeter)
	if trackedGauge == nil {
		return
	}

	trackedGauge.Add(context.Background(), delta)
}
