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
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

type ShutdownFn func(ctx context.Context) error

// The default time buckets for latency metrics. The unit varies by
// metric -- some record microseconds, others milliseconds.
var defaultLatencyDistribution = metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000, 10000, 20000, 50000, 100000)

// JoinShutdownFunc combines the provided shutdown functions into a single function.
func JoinShutdownFunc(shutdownFns ...ShutdownFn) ShutdownFn {
	return func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFns {
			if fn == nil {
				continue
			}
			err = errors.Join(err, fn(ctx))
		}
		return err
	}
}

// MetricAttr represents the attributes associated with a metric.
type MetricAttr struct {
	Key, Value string
}

func (a *MetricAttr) String() string {
	return fmt.Sprintf("Key: %s, Value: %s", a.Key, a.Value)
}

// OpsMetricHandle covers the POSIX pipeline op counters (spec §4.6).
type OpsMetricHandle interface {
	OpsCount(ctx context.Context, inc int64, attrs []MetricAttr)
	OpsLatency(ctx context.Context, latencyUs float64, attrs []MetricAttr)
	OpsErrorCount(ctx context.Context, inc int64, attrs []MetricAttr)
}

// GraphMetricHandle covers graph migration and resolver counters (spec
// §4.4, §4.5): promote duration and stale-handle retry count.
type GraphMetricHandle interface {
	MigrationDuration(ctx context.Context, latencyMs float64, attrs []MetricAttr)
	StaleHandleRetryCount(ctx context.Context, inc int64, attrs []MetricAttr)
}

// SyncopMetricHandle covers the cooperative task runtime (spec §4.3,
// §5): syncop suspend latency and outstanding task-pool depth.
type SyncopMetricHandle interface {
	SyncopLatency(ctx context.Context, latencyUs float64, attrs []MetricAttr)
	TaskPoolDepth(ctx context.Context, depth int64, attrs []MetricAttr)
}

// ECMetricHandle covers the erasure-coding engine (spec §4.2): matrix
// cache hit/miss, and encode/decode throughput.
type ECMetricHandle interface {
	MatrixCacheHit(ctx context.Context, inc int64, attrs []MetricAttr)
	MatrixCacheMiss(ctx context.Context, inc int64, attrs []MetricAttr)
	CodecBytesProcessed(ctx context.Context, inc int64, attrs []MetricAttr)
}

type MetricHandle interface {
	OpsMetricHandle
	GraphMetricHandle
	SyncopMetricHandle
	ECMetricHandle
}
