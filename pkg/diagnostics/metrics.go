package diagnostics

import (
	"fmt"
	"strings"
)

// metricDef pairs a Prometheus metric name with its help text and value,
// in declaration order, so FormatMetrics produces stable output.
type metricDef struct {
	name  string
	help  string
	value int64
}

// FormatMetrics renders the current counters in Prometheus plaintext
// exposition format, served at GET /metrics.
func (d *Diagnostics) FormatMetrics() string {
	c := d.Counters()

	defs := []metricDef{
		{"file_processed_success_total", "Total files successfully dispatched.", c.FileProcessedSuccessTotal},
		{"file_processed_failure_total", "Total files that failed dispatch after retries.", c.FileProcessedFailureTotal},
		{"file_enqueued_total", "Total files enqueued for dispatch by the debouncer.", c.FileEnqueuedTotal},
		{"circuit_open_total", "Total number of times a per-endpoint circuit breaker has opened.", c.CircuitOpenTotal},
		{"http_attempts_total", "Total outbound HTTP dispatch attempts, including retries.", c.HTTPAttemptsTotal},
		{"http_failures_total", "Total outbound HTTP dispatch attempts that failed.", c.HTTPFailuresTotal},
		{"http_short_circuits_total", "Total dispatch attempts short-circuited by an open circuit.", c.HTTPShortCircuitsTotal},
	}

	var b strings.Builder
	for _, def := range defs {
		fmt.Fprintf(&b, "# HELP %s %s\n", def.name, def.help)
		fmt.Fprintf(&b, "# TYPE %s counter\n", def.name)
		fmt.Fprintf(&b, "%s %d\n", def.name, def.value)
	}

	return b.String()
}
