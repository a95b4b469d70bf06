// Package stats summarizes latencies with an HDR histogram.
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Summary is a latency digest.
type Summary struct {
	Count  int64
	Failed int64
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
}

// Recorder accumulates latencies. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	hist   *hdrhistogram.Histogram
	failed int64
}

// NewRecorder tracks 1µs to 10 minutes with 3 significant digits.
func NewRecorder() *Recorder {
	return &Recorder{hist: hdrhistogram.New(1, 600_000_000, 3)}
}

// Record adds one observation. Values outside the tracked range are clamped.
func (r *Recorder) Record(d time.Duration, failed bool) {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if us > r.hist.HighestTrackableValue() {
		us = r.hist.HighestTrackableValue()
	}
	_ = r.hist.RecordValue(us)
	if failed {
		r.failed++
	}
}

func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return summarize(r.hist, r.failed)
}

func summarize(h *hdrhistogram.Histogram, failed int64) Summary {
	if h.TotalCount() == 0 {
		return Summary{}
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return Summary{
		Count:  h.TotalCount(),
		Failed: failed,
		Min:    us(h.Min()),
		Max:    us(h.Max()),
		Mean:   time.Duration(h.Mean() * float64(time.Microsecond)),
		StdDev: time.Duration(h.StdDev() * float64(time.Microsecond)),
		P50:    us(h.ValueAtQuantile(50)),
		P95:    us(h.ValueAtQuantile(95)),
		P99:    us(h.ValueAtQuantile(99)),
	}
}

// Collector keeps an overall recorder plus one per name, such as per
// workflow step.
type Collector struct {
	total *Recorder

	mu     sync.Mutex
	byName map[string]*Recorder
	order  []string
}

func NewCollector() *Collector {
	return &Collector{total: NewRecorder(), byName: make(map[string]*Recorder)}
}

func (c *Collector) Record(name string, d time.Duration, failed bool) {
	c.total.Record(d, failed)
	if name == "" {
		return
	}
	c.mu.Lock()
	rec, ok := c.byName[name]
	if !ok {
		rec = NewRecorder()
		c.byName[name] = rec
		c.order = append(c.order, name)
	}
	c.mu.Unlock()
	rec.Record(d, failed)
}

func (c *Collector) Summary() Summary {
	return c.total.Summary()
}

// Named returns per-name summaries and the names in first-seen order.
func (c *Collector) Named() (map[string]Summary, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Summary, len(c.byName))
	for name, rec := range c.byName {
		out[name] = rec.Summary()
	}
	return out, append([]string(nil), c.order...)
}

// Slowest returns up to n names ordered by descending p95.
func (c *Collector) Slowest(n int) []string {
	named, names := c.Named()
	sort.SliceStable(names, func(i, j int) bool {
		return named[names[i]].P95 > named[names[j]].P95
	})
	if n < len(names) {
		names = names[:n]
	}
	return names
}
