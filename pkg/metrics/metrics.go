// Package metrics exposes the gateway's Prometheus surface: a handful of
// counters/gauges for the session pipeline itself, plus a TCP_INFO collector
// that re-reads live kernel socket state for every connection currently
// being served, labelled by the label names the collector is built with (the
// gateway uses session id only).
//
// The TCP_INFO descriptors are derived when a collector is built by reflecting over the
// tcpinfo.SysInfo struct's `tcpi` tags rather than from a generated file:
// the upstream code this package is adapted from built pkg/exporter's
// descriptors from a text/template step that consumed a template file not
// carried into this tree (see DESIGN.md), so the same tags are read here at
// runtime instead of at build time.
package metrics

import (
	"fmt"
	"net"
	"reflect"
	"regexp"
	"sync"

	"github.com/higebu/netfd"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/satgroupe/fmb-gateway/pkg/tcpinfo"
)

// Gateway-level counters, independent of any particular connection.
var (
	RecordsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fmb_records_ingested_total",
		Help: "AVL records decoded and handed to the repository.",
	})
	CommandsDrained = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fmb_commands_drained_total",
		Help: "Queued downlink commands sent to a device during the drain phase, by outcome.",
	}, []string{"outcome"})
	Dout1Transitions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fmb_dout1_transitions_total",
		Help: "DOUT1 activate/deactivate commands the auto-control policy issued.",
	})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fmb_sessions_active",
		Help: "Device sessions currently being served.",
	})
	FramesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fmb_frames_rejected_total",
		Help: "Uplink frames that failed structural validation (bad preamble, bad CRC, truncated, unsupported codec, count mismatch), by reason.",
	}, []string{"reason"})
)

// MustRegister registers every gateway counter plus the TCP_INFO collector
// against reg. Call once at startup.
func MustRegister(reg prometheus.Registerer, collector *TCPInfoCollector) {
	reg.MustRegister(RecordsIngested, CommandsDrained, Dout1Transitions, SessionsActive, FramesRejected, collector)
}

var (
	tagNameRe = regexp.MustCompile(`name=([a-zA-Z0-9_]+)`)
	tagTypeRe = regexp.MustCompile(`prom_type=([a-zA-Z0-9_]+)`)
	tagHelpRe = regexp.MustCompile(`prom_help='([^']*)'`)
)

type fieldDesc struct {
	structField int // index into reflect.Type.Field
	desc        *prometheus.Desc
	valueType   prometheus.ValueType
}

// buildFieldDescs reflects over tcpinfo.SysInfo's exported, `tcpi`-tagged
// fields and builds one Prometheus descriptor per field, labelled by
// labelNames (applied at collection time with per-connection label values).
func buildFieldDescs(labelNames []string) []fieldDesc {
	t := reflect.TypeOf(tcpinfo.SysInfo{})
	out := make([]fieldDesc, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup("tcpi")
		if !ok {
			continue
		}
		if !fieldIsNumeric(f.Type) {
			continue
		}

		name := firstMatch(tagNameRe, tag)
		if name == "" {
			continue
		}
		help := firstMatch(tagHelpRe, tag)
		vt := prometheus.GaugeValue
		if firstMatch(tagTypeRe, tag) == "counter" {
			vt = prometheus.CounterValue
		}

		out = append(out, fieldDesc{
			structField: i,
			valueType:   vt,
			desc: prometheus.NewDesc(
				fmt.Sprintf("fmb_tcpinfo_%s", name),
				help,
				labelNames,
				nil,
			),
		})
	}
	return out
}

// fieldIsNumeric reports whether t is a TCP_INFO field this collector knows
// how to render as a Prometheus sample: a plain numeric/duration field, or
// one of the tcpinfo.Nullable* wrapper structs around one.
func fieldIsNumeric(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Int64:
		return true
	case reflect.Struct:
		_, hasValid := t.FieldByName("Valid")
		_, hasValue := t.FieldByName("Value")
		return hasValid && hasValue
	}
	return false
}

// fieldValue extracts a float64 sample from a SysInfo field already known to
// satisfy fieldIsNumeric, returning ok=false for an unset Nullable field.
func fieldValue(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Int64:
		// time.Duration fields: rendered in seconds.
		return float64(v.Int()) / 1e9, true
	case reflect.Struct:
		valid := v.FieldByName("Valid")
		if !valid.IsValid() || !valid.Bool() {
			return 0, false
		}
		inner := v.FieldByName("Value")
		return fieldValue(inner)
	}
	return 0, false
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

type connEntry struct {
	fd         int
	labelCombo []string
}

// TCPInfoCollector exports live kernel TCP_INFO for a set of tracked
// connections, re-reading the socket on every Collect. It is the
// accept-side analogue of this codebase's original dial-side collector;
// each connection is labelled with the values passed to Add.
type TCPInfoCollector struct {
	mu     sync.Mutex
	conns  map[net.Conn]connEntry
	fields []fieldDesc
	logger func(error)
}

// NewTCPInfoCollector builds a collector whose exported series are labelled
// by labelNames (values supplied per connection via Add).
func NewTCPInfoCollector(labelNames []string, errorLoggingCallback func(error)) *TCPInfoCollector {
	return &TCPInfoCollector{
		conns:  make(map[net.Conn]connEntry),
		fields: buildFieldDescs(labelNames),
		logger: errorLoggingCallback,
	}
}

func (t *TCPInfoCollector) Describe(descs chan<- *prometheus.Desc) {
	for _, f := range t.fields {
		descs <- f.desc
	}
}

func (t *TCPInfoCollector) Collect(ch chan<- prometheus.Metric) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for conn, entry := range t.conns {
		sysInfo, err := tcpinfo.GetTCPInfo(uintptr(entry.fd))
		if err != nil {
			if t.logger != nil {
				t.logger(fmt.Errorf("metrics: tcpinfo for %v -> %v: %w", conn.LocalAddr(), conn.RemoteAddr(), err))
			}
			delete(t.conns, conn)
			continue
		}

		rv := reflect.ValueOf(*sysInfo)
		for _, f := range t.fields {
			val, ok := fieldValue(rv.Field(f.structField))
			if !ok {
				continue
			}
			ch <- prometheus.MustNewConstMetric(f.desc, f.valueType, val, entry.labelCombo...)
		}
	}
}

// Add starts tracking conn, reported with labelValues on every Collect
// until Remove is called.
func (t *TCPInfoCollector) Add(conn net.Conn, labelValues []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[conn] = connEntry{fd: netfd.GetFdFromConn(conn), labelCombo: labelValues}
}

// Remove stops tracking conn, typically called once a session closes it.
func (t *TCPInfoCollector) Remove(conn net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, conn)
}
