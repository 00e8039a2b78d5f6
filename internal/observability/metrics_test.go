package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.IncLessonCompletion("ended")
	m.PlaybackSessionStarted()
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("WritePrometheus (nil): %v", err)
	}
}

func TestMetricsExposition(t *testing.T) {
	m := newMetrics()
	m.ObserveAPI("POST", "/api/progress/lesson", "500", 30*time.Millisecond)
	m.ObserveProgressWrite("complete", "ok")
	m.IncLessonCompletion("")
	m.ObserveAggregateOperation("progress.aggregate_course", "success", 5*time.Millisecond)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`ch_api_requests_total{method="POST",route="/api/progress/lesson",status="500"} 1`,
		`ch_api_requests_error_total 1`,
		`ch_progress_writes_total{action="complete",status="ok"} 1`,
		`ch_lesson_completions_total{trigger="manual"} 1`,
		`ch_aggregate_operation_duration_seconds_bucket{op="progress.aggregate_course",status="success",le="0.005"} 1`,
		`ch_aggregate_operation_duration_seconds_bucket{op="progress.aggregate_course",status="success",le="+Inf"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q\n%s", want, out)
		}
	}
}

func TestParseHeaders(t *testing.T) {
	h := parseHeaders("a=1, b = 2 ,bad,=x")
	if len(h) != 2 || h["a"] != "1" || h["b"] != "2" {
		t.Fatalf("parseHeaders: unexpected %v", h)
	}
	if parseHeaders("") != nil {
		t.Fatalf("parseHeaders: want nil for empty")
	}
}

func TestFamilySeriesAreSortedAndEscaped(t *testing.T) {
	f := counter("x_total", "x.", "k")
	f.Inc("b")
	f.Add(2, `a"q`)
	f.Inc()
	if got := f.Value("b"); got != 1 {
		t.Fatalf("value: want=1 got=%v", got)
	}
	var buf bytes.Buffer
	if err := f.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	want := "# HELP x_total x.\n# TYPE x_total counter\n" +
		`x_total{k="a\"q"} 2` + "\n" +
		`x_total{k="b"} 1` + "\n" +
		`x_total{k="unknown"} 1` + "\n"
	if buf.String() != want {
		t.Fatalf("exposition:\nwant=%q\ngot=%q", want, buf.String())
	}
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := histogram("lat_seconds", "lat.", []float64{0.1, 1})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(3)
	var buf bytes.Buffer
	_ = h.WritePrometheus(&buf)
	for _, want := range []string{
		`lat_seconds_bucket{le="0.1"} 1`,
		`lat_seconds_bucket{le="1"} 2`,
		`lat_seconds_bucket{le="+Inf"} 3`,
		`lat_seconds_count 3`,
	} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("missing %q in\n%s", want, buf.String())
		}
	}
}
