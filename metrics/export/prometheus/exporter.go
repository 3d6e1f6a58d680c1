package prometheus

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
)

// PrometheusExporter renders Engine metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source internaldefs.Source
}

// NewPrometheusExporter reads from engine on every scrape.
func NewPrometheusExporter(engine *goSession.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource renders any snapshot source; tests use it with fixed data.
func NewPrometheusExporterFromSource(source internaldefs.Source) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the exposition. Mount it behind an admin policy.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = p.WriteTo(w)
	})
}

// Render returns the exposition as a string. It is empty while metrics are disabled.
func (p *PrometheusExporter) Render() string {
	var buf bytes.Buffer
	_, _ = p.WriteTo(&buf)
	return buf.String()
}

// WriteTo writes the exposition to w.
func (p *PrometheusExporter) WriteTo(w io.Writer) (int64, error) {
	if p == nil || p.source == nil {
		return 0, nil
	}
	families, ok := internaldefs.Collect(p.source)
	if !ok {
		return 0, nil
	}

	cw := &countingWriter{w: w}
	tw := textWriter{bw: bufio.NewWriter(cw)}
	for _, f := range families {
		tw.header(f.Descriptor)
		switch f.Kind {
		case internaldefs.KindHistogram:
			for i, le := range internaldefs.HistogramBounds {
				tw.sample(f.Name+`_bucket{le="`+le+`"}`, f.Buckets[i])
			}
			tw.sample(f.Name+"_count", f.Count())
			// Snapshots carry bucket counts only.
			tw.sample(f.Name+"_sum", 0)
		default:
			tw.sample(f.Name, f.Value)
		}
	}
	err := tw.bw.Flush()
	return cw.n, err
}

type textWriter struct {
	bw *bufio.Writer
}

func (t textWriter) header(d internaldefs.Descriptor) {
	kind := "counter"
	if d.Kind == internaldefs.KindHistogram {
		kind = "histogram"
	}
	t.bw.WriteString("# HELP " + d.Name + " " + escapeHelp(d.Help) + "\n")
	t.bw.WriteString("# TYPE " + d.Name + " " + kind + "\n")
}

func (t textWriter) sample(series string, v uint64) {
	t.bw.WriteString(series)
	t.bw.WriteByte(' ')
	t.bw.WriteString(strconv.FormatUint(v, 10))
	t.bw.WriteByte('\n')
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
