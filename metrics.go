// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dbuscore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the per-Conn instruments a caller can register with its
// own prometheus.Registerer via Collect/Describe. Values are exported as
// a single Collector per Conn rather than package-global metrics. Every
// Conn's Metrics use the same metric names and carry no per-connection
// label, so the Metrics of two Conns cannot be registered with the same
// registry.
type Metrics struct {
	pendingCalls      prometheus.Gauge
	messagesReceived  prometheus.Counter
	matchRuleDropped  prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		pendingCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dbuscore",
			Name:      "pending_calls",
			Help:      "Number of method calls awaiting a reply.",
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dbuscore",
			Name:      "messages_received_total",
			Help:      "Total messages read off the wire.",
		}),
		matchRuleDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dbuscore",
			Name:      "match_rule_signals_dropped_total",
			Help:      "Total signals dropped because a subscriber's queue was full.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.pendingCalls.Describe(ch)
	m.messagesReceived.Describe(ch)
	m.matchRuleDropped.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.pendingCalls.Collect(ch)
	m.messagesReceived.Collect(ch)
	m.matchRuleDropped.Collect(ch)
}

func (m *Metrics) setPendingCalls(n int)  { m.pendingCalls.Set(float64(n)) }
func (m *Metrics) incMessagesReceived()   { m.messagesReceived.Inc() }
func (m *Metrics) incMatchRuleDropped()   { m.matchRuleDropped.Inc() }
