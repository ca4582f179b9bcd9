package forge

import (
	"bytes"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const metricsNamespace = "forge"

// FormatMetrics renders the run in the Prometheus text exposition format, suitable for the node
// exporter textfile collector.
func FormatMetrics(c *ForgeContext, result *ForgeResult) string {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	labels := prometheus.Labels{
		"namespace": c.Namespace,
		"suite":     c.TestSuite,
		"run_id":    c.RunID,
	}

	runState := factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Name:        "run_state",
		Help:        "1 for the state the forge run ended in, 0 otherwise",
		ConstLabels: labels,
	}, []string{"state"})
	for _, state := range []ForgeState{StatePass, StateFail, StateSkip} {
		value := 0.0
		if result.State == state {
			value = 1
		}
		runState.WithLabelValues(string(state)).Set(value)
	}

	factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Name:        "run_duration_seconds",
		Help:        "Wall-clock duration of the forge run",
		ConstLabels: labels,
	}).Set(result.EndTime.Sub(result.StartTime).Seconds())

	factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Name:        "run_start_time_seconds",
		Help:        "Unix time the forge run started at",
		ConstLabels: labels,
	}).Set(float64(result.StartTime.Unix()))

	families, err := registry.Gather()
	if err != nil {
		return fmt.Sprintf("# error gathering forge metrics: %s\n", err)
	}
	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return fmt.Sprintf("# error encoding forge metrics: %s\n", err)
		}
	}
	return buf.String()
}
