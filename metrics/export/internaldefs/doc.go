// Package internaldefs holds the metric names and bucket layout shared by
// the Prometheus and OpenTelemetry exporters.
//
// Every [sessiongate.MetricID] that is exported appears here exactly once.
// Keep the two exporters in sync by changing names in this package only.
package internaldefs
