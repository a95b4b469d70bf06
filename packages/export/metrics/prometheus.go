package metrics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/stats"
)

// PrometheusExporter writes the Prometheus text exposition format, suitable
// for the node exporter's textfile collector or a push gateway.
type PrometheusExporter struct {
	writer io.Writer
}

func NewPrometheusExporter(w io.Writer) *PrometheusExporter {
	return &PrometheusExporter{writer: w}
}

func (p *PrometheusExporter) Export(s *Snapshot) error {
	var b strings.Builder

	header(&b, "contractkit_rows_total", "counter", "Rows by scenario and result")
	for _, sc := range s.Scenarios {
		l := scenarioLabels(sc)
		fmt.Fprintf(&b, "contractkit_rows_total{%s,result=\"passed\"} %d\n", l, sc.Passed)
		fmt.Fprintf(&b, "contractkit_rows_total{%s,result=\"failed\"} %d\n", l, sc.Failed)
		if sc.Filtered > 0 {
			fmt.Fprintf(&b, "contractkit_rows_total{%s,result=\"filtered\"} %d\n", l, sc.Filtered)
		}
	}
	b.WriteString("\n")

	header(&b, "contractkit_scenario_passed", "gauge", "1 if the scenario verdict is not failed")
	for _, sc := range s.Scenarios {
		v := 1
		if sc.Verdict == "failed" {
			v = 0
		}
		fmt.Fprintf(&b, "contractkit_scenario_passed{%s,verdict=\"%s\"} %d\n", scenarioLabels(sc), sanitizeLabel(sc.Verdict), v)
	}
	b.WriteString("\n")

	header(&b, "contractkit_scenario_duration_ms", "gauge", "Wall time of each scenario in milliseconds")
	for _, sc := range s.Scenarios {
		fmt.Fprintf(&b, "contractkit_scenario_duration_ms{%s} %.2f\n", scenarioLabels(sc), ms(sc.Duration))
	}
	b.WriteString("\n")

	header(&b, "contractkit_row_duration_ms", "gauge", "Row latency quantiles in milliseconds")
	for _, sc := range s.Scenarios {
		if sc.Latency.Count > 0 {
			writeQuantiles(&b, "contractkit_row_duration_ms", scenarioLabels(sc), sc.Latency)
		}
	}
	b.WriteString("\n")

	if len(s.Steps) > 0 {
		header(&b, "contractkit_steps_total", "counter", "Executed workflow steps by result")
		for _, st := range s.Steps {
			l := stepLabels(st)
			fmt.Fprintf(&b, "contractkit_steps_total{%s,result=\"passed\"} %d\n", l, st.Summary.Count-st.Summary.Failed)
			fmt.Fprintf(&b, "contractkit_steps_total{%s,result=\"failed\"} %d\n", l, st.Summary.Failed)
		}
		b.WriteString("\n")

		header(&b, "contractkit_step_duration_ms", "gauge", "Step latency quantiles in milliseconds")
		for _, st := range s.Steps {
			writeQuantiles(&b, "contractkit_step_duration_ms", stepLabels(st), st.Summary)
		}
		b.WriteString("\n")
	}

	header(&b, "contractkit_run_duration_ms", "gauge", "Wall time of the whole run in milliseconds")
	fmt.Fprintf(&b, "contractkit_run_duration_ms %.2f\n", ms(s.Duration))

	_, err := io.WriteString(p.writer, b.String())
	return err
}

func header(b *strings.Builder, name, typ, help string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
}

func writeQuantiles(b *strings.Builder, name, labels string, s stats.Summary) {
	for _, q := range []struct {
		label string
		value time.Duration
	}{
		{"min", s.Min},
		{"0.5", s.P50},
		{"0.95", s.P95},
		{"0.99", s.P99},
		{"max", s.Max},
	} {
		fmt.Fprintf(b, "%s{%s,quantile=\"%s\"} %.2f\n", name, labels, q.label, ms(q.value))
	}
}

func scenarioLabels(sc ScenarioMetrics) string {
	return fmt.Sprintf("suite=\"%s\",scenario=\"%s\"", sanitizeLabel(sc.Suite), sanitizeLabel(sc.Scenario))
}

func stepLabels(st StepMetrics) string {
	return fmt.Sprintf("suite=\"%s\",step=\"%s\"", sanitizeLabel(st.Suite), sanitizeLabel(st.Step))
}

// sanitizeLabel makes a string safe for use as a Prometheus label value
func sanitizeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
