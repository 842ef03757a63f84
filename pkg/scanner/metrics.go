/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package scanner

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/carverauto/devscan/pkg/scanner"

	metricMessagesReceived = "devscan_messages_received_total"
	metricMessagesDropped  = "devscan_messages_dropped_total"

	dropFiltered = "filtered"
	dropRejected = "rejected"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	receivedCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	droppedCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	received, err := meter.Int64Counter(
		metricMessagesReceived,
		metric.WithDescription("Datagrams handed to the scanner workers"),
	)
	if err != nil {
		otel.Handle(err)
	}
	receivedCounter = received

	dropped, err := meter.Int64Counter(
		metricMessagesDropped,
		metric.WithDescription("Datagrams that did not reach the device monitor, by reason"),
	)
	if err != nil {
		otel.Handle(err)
	}
	droppedCounter = dropped
}

func recordReceived() {
	meterOnce.Do(initMeter)
	if receivedCounter == nil {
		return
	}

	receivedCounter.Add(context.Background(), 1)
}

func recordDrop(reason string) {
	meterOnce.Do(initMeter)
	if droppedCounter == nil {
		return
	}

	droppedCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}
