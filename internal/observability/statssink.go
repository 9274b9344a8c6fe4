package observability

import (
	"fmt"
	"net"
	"time"
)

// StatsSink is the abstract stats-emission collaborator assumed by the
// migration engine (spec §1, §6, §7). Implementations report per-pass
// counters; callers never block on delivery.
type StatsSink interface {
	Scanned(n int)
	Bytes(n int64)
	Copied(n int)
	Close()
}

// PrometheusStatsSink emits to the process-wide Prometheus registry. This is
// always available and is the default sink handed to a pass controller.
type PrometheusStatsSink struct {
	migration string
	metrics   *Metrics
}

// NewPrometheusStatsSink returns a StatsSink bound to one migration's label.
func NewPrometheusStatsSink(metrics *Metrics, migration string) *PrometheusStatsSink {
	return &PrometheusStatsSink{migration: migration, metrics: metrics}
}

func (s *PrometheusStatsSink) Scanned(n int) {
	s.metrics.RecordScan(s.migration, n)
}

func (s *PrometheusStatsSink) Bytes(n int64) {
	BytesCopied.WithLabelValues(s.migration).Add(float64(n))
}

func (s *PrometheusStatsSink) Copied(n int) {
	ObjectsCopied.WithLabelValues(s.migration, "primary").Add(float64(n))
}

func (s *PrometheusStatsSink) Close() {}

// StatsdSink is a best-effort UDP statsd emitter. No statsd client library
// appears anywhere in the retrieved example pack, so this talks the
// line-oriented statsd wire format directly over net.Conn — a handful of
// fmt.Fprintf calls, not a library-shaped concern (see DESIGN.md).
type StatsdSink struct {
	prefix string
	conn   net.Conn
}

// NewStatsdSink dials host:port once; a dial failure yields a no-op sink
// rather than failing pass startup (statsd is a diagnostics nicety, not a
// migration invariant).
func NewStatsdSink(host string, port int, prefix string) *StatsdSink {
	if host == "" || port == 0 {
		return &StatsdSink{}
	}
	conn, err := net.DialTimeout("udp", fmt.Sprintf("%s:%d", host, port), 2*time.Second)
	if err != nil {
		return &StatsdSink{}
	}
	return &StatsdSink{prefix: prefix, conn: conn}
}

func (s *StatsdSink) send(name string, value int64, kind string) {
	if s.conn == nil {
		return
	}
	line := fmt.Sprintf("%s.%s:%d|%s", s.prefix, name, value, kind)
	_, _ = s.conn.Write([]byte(line))
}

func (s *StatsdSink) Scanned(n int)   { s.send("scanned", int64(n), "c") }
func (s *StatsdSink) Bytes(n int64)   { s.send("bytes", n, "c") }
func (s *StatsdSink) Copied(n int)    { s.send("copied_objects", int64(n), "c") }
func (s *StatsdSink) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// MultiSink fans out to several sinks — used to emit to both Prometheus and
// statsd simultaneously.
type MultiSink struct {
	sinks []StatsSink
}

func NewMultiSink(sinks ...StatsSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Scanned(n int) {
	for _, s := range m.sinks {
		s.Scanned(n)
	}
}

func (m *MultiSink) Bytes(n int64) {
	for _, s := range m.sinks {
		s.Bytes(n)
	}
}

func (m *MultiSink) Copied(n int) {
	for _, s := range m.sinks {
		s.Copied(n)
	}
}

func (m *MultiSink) Close() {
	for _, s := range m.sinks {
		s.Close()
	}
}
