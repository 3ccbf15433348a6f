// Package prometheus renders sessiongate metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps a [sessiongate.Gateway] and exposes an
// [http.Handler] for the scrape endpoint. Counters are named sg_*_total,
// latency histograms sg_*_seconds, and the live actor count is the
// sg_live_actors gauge.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate gateway state.
package prometheus
