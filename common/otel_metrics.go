// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// OpKey annotates the POSIX pipeline op processed.
	OpKey = "op"

	// ErrCategoryKey reduces error-metric cardinality by grouping
	// errors into coarse categories (stale-handle, not-found, io, ...).
	ErrCategoryKey = "error_category"

	// GenerationKey annotates a metric with a graph generation id.
	GenerationKey = "generation"
)

var (
	opsMeter    = otel.Meter("graph_ops")
	graphMeter  = otel.Meter("graph_lifecycle")
	syncopMeter = otel.Meter("synctask")
	ecMeter     = otel.Meter("ec")

	attributeSets sync.Map
)

func attrOption(attrs []MetricAttr) metric.MeasurementOption {
	key := ""
	for _, a := range attrs {
		key += a.Key + "=" + a.Value + ";"
	}
	if v, ok := attributeSets.Load(key); ok {
		return v.(metric.MeasurementOption)
	}
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		kvs = append(kvs, attribute.String(a.Key, a.Value))
	}
	opt := metric.WithAttributeSet(attribute.NewSet(kvs...))
	v, _ := attributeSets.LoadOrStore(key, opt)
	return v.(metric.MeasurementOption)
}

// otelMetrics is the concrete MetricHandle backed by OpenTelemetry
// instruments, kept in the same shape as the teacher's otelMetrics
// struct: one field per instrument, one method per metric.
type otelMetrics struct {
	opsCount      metric.Int64Counter
	opsErrorCount metric.Int64Counter
	opsLatency    metric.Float64Histogram

	migrationDuration     metric.Float64Histogram
	staleHandleRetryCount metric.Int64Counter

	syncopLatency metric.Float64Histogram
	taskPoolDepth metric.Int64Gauge

	matrixCacheHit      metric.Int64Counter
	matrixCacheMiss     metric.Int64Counter
	codecBytesProcessed metric.Int64Counter
}

func (o *otelMetrics) OpsCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.opsCount.Add(ctx, inc, attrOption(attrs))
}

func (o *otelMetrics) OpsLatency(ctx context.Context, latencyUs float64, attrs []MetricAttr) {
	o.opsLatency.Record(ctx, latencyUs, attrOption(attrs))
}

func (o *otelMetrics) OpsErrorCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.opsErrorCount.Add(ctx, inc, attrOption(attrs))
}

func (o *otelMetrics) MigrationDuration(ctx context.Context, latencyMs float64, attrs []MetricAttr) {
	o.migrationDuration.Record(ctx, latencyMs, attrOption(attrs))
}

func (o *otelMetrics) StaleHandleRetryCount(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.staleHandleRetryCount.Add(ctx, inc, attrOption(attrs))
}

func (o *otelMetrics) SyncopLatency(ctx context.Context, latencyUs float64, attrs []MetricAttr) {
	o.syncopLatency.Record(ctx, latencyUs, attrOption(attrs))
}

func (o *otelMetrics) TaskPoolDepth(ctx context.Context, depth int64, attrs []MetricAttr) {
	o.taskPoolDepth.Record(ctx, depth, attrOption(attrs))
}

func (o *otelMetrics) MatrixCacheHit(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.matrixCacheHit.Add(ctx, inc, attrOption(attrs))
}

func (o *otelMetrics) MatrixCacheMiss(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.matrixCacheMiss.Add(ctx, inc, attrOption(attrs))
}

func (o *otelMetrics) CodecBytesProcessed(ctx context.Context, inc int64, attrs []MetricAttr) {
	o.codecBytesProcessed.Add(ctx, inc, attrOption(attrs))
}

// NewOTelMetrics builds the process-wide metric handle, wiring every
// counter/histogram used across the graph, synctask, and ec packages.
func NewOTelMetrics() (MetricHandle, error) {
	opsCount, err1 := opsMeter.Int64Counter("ops/count", metric.WithDescription("Cumulative POSIX pipeline ops processed."))
	opsLatency, err2 := opsMeter.Float64Histogram("ops/latency", metric.WithDescription("Distribution of POSIX pipeline op latencies."), metric.WithUnit("us"), defaultLatencyDistribution)
	opsErrorCount, err3 := opsMeter.Int64Counter("ops/error_count", metric.WithDescription("Cumulative errors returned by POSIX pipeline ops."))

	migrationDuration, err4 := graphMeter.Float64Histogram("graph/migration_duration", metric.WithDescription("Distribution of graph promotion durations."), metric.WithUnit("ms"), defaultLatencyDistribution)
	staleHandleRetryCount, err5 := graphMeter.Int64Counter("graph/stale_handle_retry_count", metric.WithDescription("Cumulative ESTALE-triggered resolver retries."))

	syncopLatency, err6 := syncopMeter.Float64Histogram("synctask/syncop_latency", metric.WithDescription("Distribution of Syncop suspend durations."), metric.WithUnit("us"), defaultLatencyDistribution)
	taskPoolDepth, err7 := syncopMeter.Int64Gauge("synctask/task_pool_depth", metric.WithDescription("Outstanding tasks in the synctask worker pool."))

	matrixCacheHit, err8 := ecMeter.Int64Counter("ec/matrix_cache_hit", metric.WithDescription("Cumulative matrix-cache hits."))
	matrixCacheMiss, err9 := ecMeter.Int64Counter("ec/matrix_cache_miss", metric.WithDescription("Cumulative matrix-cache misses."))
	codecBytesProcessed, err10 := ecMeter.Int64Counter("ec/codec_bytes_processed", metric.WithDescription("Cumulative bytes encoded or decoded."), metric.WithUnit("By"))

	if err := errors.Join(err1, err2, err3, err4, err5, err6, err7, err8, err9, err10); err != nil {
		return nil, err
	}

	return &otelMetrics{
		opsCount:              opsCount,
		opsErrorCount:         opsErrorCount,
		opsLatency:            opsLatency,
		migrationDuration:     migrationDuration,
		staleHandleRetryCount: staleHandleRetryCount,
		syncopLatency:         syncopLatency,
		taskPoolDepth:         taskPoolDepth,
		matrixCacheHit:        matrixCacheHit,
		matrixCacheMiss:       matrixCacheMiss,
		codecBytesProcessed:   codecBytesProcessed,
	}, nil
}
