package observability

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// family is one named metric in the Prometheus text format with its labelled series.
type family struct {
	name   string
	help   string
	kind   string
	labels []string
	bounds []float64

	mu     sync.Mutex
	series map[string]*series
}

type series struct {
	value  float64
	counts []uint64
	sum    float64
	n      uint64
}

func newFamily(kind, name, help string, bounds []float64, labels ...string) *family {
	return &family{name: name, help: help, kind: kind, labels: labels, bounds: bounds, series: map[string]*series{}}
}

func counter(name, help string, labels ...string) *family {
	return newFamily("counter", name, help, nil, labels...)
}

func gauge(name, help string, labels ...string) *family {
	return newFamily("gauge", name, help, nil, labels...)
}

func histogram(name, help string, bounds []float64, labels ...string) *family {
	return newFamily("histogram", name, help, bounds, labels...)
}

func (f *family) at(values []string) *series {
	key := renderLabels(f.labels, values)
	s, ok := f.series[key]
	if !ok {
		s = &series{}
		if f.kind == "histogram" {
			s.counts = make([]uint64, len(f.bounds))
		}
		f.series[key] = s
	}
	return s
}

func (f *family) Add(delta float64, values ...string) {
	f.mu.Lock()
	f.at(values).value += delta
	f.mu.Unlock()
}

func (f *family) Inc(values ...string) { f.Add(1, values...) }
func (f *family) Dec(values ...string) { f.Add(-1, values...) }

func (f *family) Set(v float64, values ...string) {
	f.mu.Lock()
	f.at(values).value = v
	f.mu.Unlock()
}

func (f *family) Observe(v float64, values ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.at(values)
	s.sum += v
	s.n++
	for i, b := range f.bounds {
		if v <= b {
			s.counts[i]++
		}
	}
}

// Value returns the current value of one counter or gauge series.
func (f *family) Value(values ...string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.series[renderLabels(f.labels, values)]; ok {
		return s.value
	}
	return 0
}

func (f *family) WritePrometheus(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind)

	f.mu.Lock()
	keys := make([]string, 0, len(f.series))
	for k := range f.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s := f.series[k]
		if f.kind != "histogram" {
			fmt.Fprintf(bw, "%s%s %s\n", f.name, k, formatFloat(s.value))
			continue
		}
		for i, b := range f.bounds {
			fmt.Fprintf(bw, "%s_bucket%s %d\n", f.name, withLe(k, formatFloat(b)), s.counts[i])
		}
		fmt.Fprintf(bw, "%s_bucket%s %d\n", f.name, withLe(k, "+Inf"), s.n)
		fmt.Fprintf(bw, "%s_sum%s %s\n%s_count%s %d\n", f.name, k, formatFloat(s.sum), f.name, k, s.n)
	}
	f.mu.Unlock()
	return bw.Flush()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// renderLabels builds {a="x",b="y"}. Missing values render as "unknown".
func renderLabels(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, 0, len(names))
	for i, name := range names {
		v := "unknown"
		if i < len(values) {
			v = values[i]
		}
		parts = append(parts, name+`="`+labelEscaper.Replace(v)+`"`)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func withLe(rendered, le string) string {
	pair := `le="` + le + `"`
	if rendered == "" {
		return "{" + pair + "}"
	}
	return strings.TrimSuffix(rendered, "}") + "," + pair + "}"
}
