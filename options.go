package fastpoint

import (
	"github.com/fastpoint/fastpoint/embed"
)

type options struct {
	registry *embed.Registry
	logger   *Logger
	metrics  MetricsCollector
	fusionK  int
	idGen    func() string
	onDisk   bool
}

// Option configures Session construction behavior.
type Option func(*options)

// WithRegistry substitutes the model registry. Tests use this to inject a
// fake backend; callers use it to share one provider cache across sessions.
//
// If nil is passed, a registry over the local hashing backend is used.
func WithRegistry(r *embed.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithLogger configures structured logging.
//
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures operational metrics collection.
//
// If nil is passed, collection is disabled.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithFusionK overrides the reciprocal-rank smoothing constant used when
// fusing hybrid search results. Values <= 0 select the default.
func WithFusionK(k int) Option {
	return func(o *options) {
		o.fusionK = k
	}
}

// WithOnDiskVectors marks collections created by Add as on-disk, trading
// latency for memory on stores that support it.
func WithOnDiskVectors(onDisk bool) Option {
	return func(o *options) {
		o.onDisk = onDisk
	}
}

// WithIDGenerator overrides the generator used for records that arrive
// without a caller-supplied id. Tests use this for deterministic ids.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) {
		if gen != nil {
			o.idGen = gen
		}
	}
}
