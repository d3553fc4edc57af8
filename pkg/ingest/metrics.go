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

package ingest

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngest holds Prometheus metrics for the import subsystem.
type metricsIngest struct {
	once sync.Once

	filesImported  prometheus.Counter
	filesFailed    prometheus.Counter
	chunksUpserted prometheus.Counter
	linesSkipped   prometheus.Counter
	embedRetries   prometheus.Counter
	batchesEmbed   prometheus.Counter

	scanCycles prometheus.Counter
	queueDepth prometheus.Gauge

	importDuration prometheus.Histogram
	embedDuration  prometheus.Histogram
}

var ingMetrics metricsIngest

func (m *metricsIngest) init() {
	m.once.Do(func() {
		m.filesImported = prometheus.NewCounter(prometheus.CounterOpts{Name: "reflect_ing_files_imported_total", Help: "Transcript files imported successfully"})
		m.filesFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "reflect_ing_files_failed_total", Help: "Transcript imports that failed"})
		m.chunksUpserted = prometheus.NewCounter(prometheus.CounterOpts{Name: "reflect_ing_chunks_upserted_total", Help: "Conversation chunks upserted into the vector store"})
		m.linesSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "reflect_ing_lines_skipped_total", Help: "Unparseable transcript lines skipped"})
		m.embedRetries = prometheus.NewCounter(prometheus.CounterOpts{Name: "reflect_ing_embed_retries_total", Help: "Embedding calls retried after transient errors"})
		m.batchesEmbed = prometheus.NewCounter(prometheus.CounterOpts{Name: "reflect_ing_batches_embedded_total", Help: "Token-bounded batches sent to the embedding provider"})

		m.scanCycles = prometheus.NewCounter(prometheus.CounterOpts{Name: "reflect_ing_scan_cycles_total", Help: "Watcher scan cycles completed"})
		m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{Name: "reflect_ing_queue_depth", Help: "Transcripts waiting for import"})

		buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
		m.importDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "reflect_ing_import_seconds", Help: "Per-file import duration", Buckets: buckets})
		m.embedDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "reflect_ing_embed_seconds", Help: "Per-batch embedding duration", Buckets: buckets})

		prometheus.MustRegister(
			m.filesImported, m.filesFailed, m.chunksUpserted, m.linesSkipped,
			m.embedRetries, m.batchesEmbed,
			m.scanCycles, m.queueDepth,
			m.importDuration, m.embedDuration,
		)
	})
}

// record helpers - used by importer and watcher
func recordFileImported(chunks, skipped int, seconds float64) {
	ingMetrics.init()
	ingMetrics.filesImported.Inc()
	ingMetrics.chunksUpserted.Add(float64(chunks))
	ingMetrics.linesSkipped.Add(float64(skipped))
	ingMetrics.importDuration.Observe(seconds)
}

func recordFileFailed() { ingMetrics.init(); ingMetrics.filesFailed.Inc() }

func recordEmbedBatch(seconds float64) {
	ingMetrics.init()
	ingMetrics.batchesEmbed.Inc()
	ingMetrics.embedDuration.Observe(seconds)
}

func recordEmbedRetry() { ingMetrics.init(); ingMetrics.embedRetries.Inc() }

func recordScanCycle(queued int) {
	ingMetrics.init()
	ingMetrics.scanCycles.Inc()
	ingMetrics.queueDepth.Set(float64(queued))
}
