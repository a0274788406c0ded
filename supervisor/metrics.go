/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package supervisor

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of counters/histograms a Supervisor reports. It is
// built once per listener and registered against a caller-supplied
// registry, never the global default one, so multiple listeners in the
// same process don't collide on metric names.
type Metrics struct {
	ConnectionsTotal  *prometheus.CounterVec
	BlockedTotal      prometheus.Counter
	HandshakeDuration prometheus.Histogram
	BytesBridged      *prometheus.CounterVec
}

// NewMetrics registers a fresh Metrics set against reg. reg may be nil, in
// which case metrics are tracked in-process but never exposed.
func NewMetrics(reg *prometheus.Registry, subsystem string) *Metrics {
	m := &Metrics{
		ConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proxy",
			Subsystem: subsystem,
			Name:      "connections_total",
			Help:      "Connections accepted, labeled by outcome (forwarded, blocked, error).",
		}, []string{"outcome"}),
		BlockedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proxy",
			Subsystem: subsystem,
			Name:      "blocked_total",
			Help:      "Connections blocked by a rule.",
		}),
		HandshakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "proxy",
			Subsystem: subsystem,
			Name:      "handshake_duration_seconds",
			Help:      "Time spent in setup_server_stream.",
			Buckets:   prometheus.DefBuckets,
		}),
		BytesBridged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proxy",
			Subsystem: subsystem,
			Name:      "bytes_bridged_total",
			Help:      "Bytes copied between origin and upstream, labeled by direction.",
		}, []string{"direction"}),
	}

	if reg != nil {
		reg.MustRegister(m.ConnectionsTotal, m.BlockedTotal, m.HandshakeDuration, m.BytesBridged)
	}

	return m
}
