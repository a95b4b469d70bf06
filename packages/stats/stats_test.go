package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecorder_Summary(t *testing.T) {
	r := NewRecorder()
	for i := 1; i <= 100; i++ {
		r.Record(time.Duration(i)*time.Millisecond, i%10 == 0)
	}

	s := r.Summary()

	assert.Equal(t, int64(100), s.Count)
	assert.Equal(t, int64(10), s.Failed)
	assert.InDelta(t, float64(time.Millisecond), float64(s.Min), float64(time.Millisecond)/100)
	assert.InDelta(t, float64(100*time.Millisecond), float64(s.Max), float64(time.Millisecond))
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(95*time.Millisecond), float64(s.P95), float64(time.Millisecond))
	assert.Greater(t, s.StdDev, time.Duration(0))
}

func TestRecorder_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, NewRecorder().Summary())
}

func TestRecorder_ClampsOutOfRange(t *testing.T) {
	r := NewRecorder()
	r.Record(0, false)
	r.Record(time.Hour, false)

	s := r.Summary()
	assert.Equal(t, int64(2), s.Count)
	assert.LessOrEqual(t, s.Max, 11*time.Minute)
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record("create-post", 200*time.Millisecond, false)
			c.Record("get-user", 20*time.Millisecond, false)
		}()
	}
	wg.Wait()
	c.Record("", time.Millisecond, true)

	assert.Equal(t, int64(17), c.Summary().Count)
	named, names := c.Named()
	assert.ElementsMatch(t, []string{"create-post", "get-user"}, names)
	assert.Equal(t, int64(8), named["get-user"].Count)
	assert.Equal(t, []string{"create-post"}, c.Slowest(1))
}
