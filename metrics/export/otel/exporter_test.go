package otel

import (
	"context"
	"sync"
	"testing"

	sessiongate "github.com/MrEthical07/sessiongate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot sessiongate.MetricsSnapshot
	dropped  uint64
	live     int
}

func (f *fakeSource) MetricsSnapshot() sessiongate.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := sessiongate.MetricsSnapshot{
		Counters:   make(map[sessiongate.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[sessiongate.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func (f *fakeSource) LiveActors() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.live
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{
		snapshot: sessiongate.MetricsSnapshot{
			Counters: map[sessiongate.MetricID]uint64{
				sessiongate.MetricLoginSuccess:     3,
				sessiongate.MetricSessionRefreshed: 2,
			},
			Histograms: map[sessiongate.MetricID][]uint64{
				sessiongate.MetricResolveLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
		live:    5,
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("sessiongate-test"), src)
	require.NoError(t, err)
	defer func() { require.NoError(t, exp.Close()) }()

	got := collect(t, reader)
	assert.Equal(t, int64(3), got["sg_login_success_total"])
	assert.Equal(t, int64(2), got["sg_session_refreshed_total"])
	assert.Equal(t, int64(1), got["sg_audit_dropped_total"])
	assert.Equal(t, int64(5), got["sg_live_actors"])
	assert.Equal(t, int64(8), got["sg_session_resolve_latency_seconds_bucket_le_inf"])
	assert.Equal(t, int64(8), got["sg_session_resolve_latency_seconds_count"])
	assert.Equal(t, int64(2), got["sg_session_resolve_latency_seconds_bucket_le_0_01"])
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newMeter()

	_, err := NewOTelExporterFromSource(provider.Meter("sessiongate-test"), nil)
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = NewOTelExporterFromSource(nil, &fakeSource{})
	assert.ErrorIs(t, err, ErrNilMeter)

	_, err = NewOTelExporter(provider.Meter("sessiongate-test"), nil)
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestCloseOnNilExporter(t *testing.T) {
	var exp *Exporter
	assert.NoError(t, exp.Close())
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{
		snapshot: sessiongate.MetricsSnapshot{
			Counters: map[sessiongate.MetricID]uint64{
				sessiongate.MetricLoginSuccess: 1,
			},
			Histograms: map[sessiongate.MetricID][]uint64{
				sessiongate.MetricActorCallLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("sessiongate-test"), src)
	require.NoError(t, err)
	defer func() { require.NoError(t, exp.Close()) }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[sessiongate.MetricLoginSuccess] = v
			src.live = int(v)
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
