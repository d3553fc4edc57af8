// Copyright 2025 Leeaandrob
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package narrative

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsNarrative holds Prometheus metrics for the backfill subsystem.
type metricsNarrative struct {
	once sync.Once

	batchesSubmitted prometheus.Counter
	batchesCompleted prometheus.Counter
	batchesFailed    prometheus.Counter
	narrativesStored prometheus.Counter
	narrativesFailed prometheus.Counter

	batchDuration prometheus.Histogram
}

var narrMetrics metricsNarrative

func (m *metricsNarrative) init() {
	m.once.Do(func() {
		m.batchesSubmitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "reflect_narr_batches_submitted_total", Help: "Narrative batches submitted to the remote API"})
		m.batchesCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "reflect_narr_batches_completed_total", Help: "Narrative batches that completed"})
		m.batchesFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "reflect_narr_batches_failed_total", Help: "Narrative batches that failed or expired"})
		m.narrativesStored = prometheus.NewCounter(prometheus.CounterOpts{Name: "reflect_narr_stored_total", Help: "Narratives embedded and stored"})
		m.narrativesFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "reflect_narr_failed_total", Help: "Narrative results that could not be parsed or stored"})

		m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reflect_narr_batch_seconds",
			Help:    "Submit-to-terminal duration per batch",
			Buckets: []float64{30, 60, 300, 900, 1800, 3600, 7200, 21600, 86400},
		})

		prometheus.MustRegister(
			m.batchesSubmitted, m.batchesCompleted, m.batchesFailed,
			m.narrativesStored, m.narrativesFailed,
			m.batchDuration,
		)
	})
}

func recordBatchSubmitted() { narrMetrics.init(); narrMetrics.batchesSubmitted.Inc() }

func recordBatchTerminal(failed bool, seconds float64) {
	narrMetrics.init()
	if failed {
		narrMetrics.batchesFailed.Inc()
	} else {
		narrMetrics.batchesCompleted.Inc()
	}
	narrMetrics.batchDuration.Observe(seconds)
}

func recordNarrativesStored(stored, failed int) {
	narrMetrics.init()
	narrMetrics.narrativesStored.Add(float64(stored))
	narrMetrics.narrativesFailed.Add(float64(failed))
}
