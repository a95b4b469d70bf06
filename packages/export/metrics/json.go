package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/contractkit/packages/stats"
)

// JSONExporter writes a snapshot as one JSON document.
type JSONExporter struct {
	writer io.Writer
	pretty bool
}

func NewJSONExporter(w io.Writer, pretty bool) *JSONExporter {
	return &JSONExporter{writer: w, pretty: pretty}
}

// JSONMetricsOutput is the complete JSON output structure
type JSONMetricsOutput struct {
	Metadata  JSONMetadata   `json:"metadata"`
	Scenarios []JSONScenario `json:"scenarios"`
	Steps     []JSONStep     `json:"steps,omitempty"`
}

// JSONMetadata contains metadata about the metrics collection
type JSONMetadata struct {
	GeneratedAt string  `json:"generated_at"`
	StartTime   string  `json:"start_time"`
	DurationMs  float64 `json:"duration_ms"`
}

type JSONScenario struct {
	Suite      string      `json:"suite"`
	Scenario   string      `json:"scenario"`
	Verdict    string      `json:"verdict"`
	Passed     int         `json:"passed"`
	Failed     int         `json:"failed"`
	Executed   int         `json:"executed"`
	Filtered   int         `json:"filtered,omitempty"`
	DurationMs float64     `json:"duration_ms"`
	Latency    JSONLatency `json:"latency"`
}

type JSONStep struct {
	Suite   string      `json:"suite"`
	Step    string      `json:"step"`
	Count   int64       `json:"count"`
	Failed  int64       `json:"failed"`
	Latency JSONLatency `json:"latency"`
}

// JSONLatency is in milliseconds
type JSONLatency struct {
	Min    float64 `json:"min_ms"`
	Mean   float64 `json:"mean_ms"`
	StdDev float64 `json:"stddev_ms"`
	P50    float64 `json:"p50_ms"`
	P95    float64 `json:"p95_ms"`
	P99    float64 `json:"p99_ms"`
	Max    float64 `json:"max_ms"`
}

func latency(s stats.Summary) JSONLatency {
	return JSONLatency{
		Min: ms(s.Min), Mean: ms(s.Mean), StdDev: ms(s.StdDev),
		P50: ms(s.P50), P95: ms(s.P95), P99: ms(s.P99), Max: ms(s.Max),
	}
}

// Export writes s to the exporter's writer
func (j *JSONExporter) Export(s *Snapshot) error {
	output := JSONMetricsOutput{
		Metadata: JSONMetadata{
			GeneratedAt: time.Now().Format(time.RFC3339),
			StartTime:   s.StartedAt.Format(time.RFC3339),
			DurationMs:  ms(s.Duration),
		},
		Scenarios: make([]JSONScenario, 0, len(s.Scenarios)),
	}
	for _, sc := range s.Scenarios {
		output.Scenarios = append(output.Scenarios, JSONScenario{
			Suite:      sc.Suite,
			Scenario:   sc.Scenario,
			Verdict:    sc.Verdict,
			Passed:     sc.Passed,
			Failed:     sc.Failed,
			Executed:   sc.Executed,
			Filtered:   sc.Filtered,
			DurationMs: ms(sc.Duration),
			Latency:    latency(sc.Latency),
		})
	}
	for _, st := range s.Steps {
		output.Steps = append(output.Steps, JSONStep{
			Suite:   st.Suite,
			Step:    st.Step,
			Count:   st.Summary.Count,
			Failed:  st.Summary.Failed,
			Latency: latency(st.Summary),
		})
	}

	var data []byte
	var err error
	if j.pretty {
		data, err = json.MarshalIndent(output, "", "  ")
	} else {
		data, err = json.Marshal(output)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if _, err := j.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
