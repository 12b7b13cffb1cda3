package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"knowledgebot/internal/models"
)

const (
	// MetricsCapacity is the size of the rolling window
	MetricsCapacity = 50
	// MetricsRecentLimit is how many records Summarize returns
	MetricsRecentLimit = 20
)

// MetricsService keeps the last MetricsCapacity performance records and
// mirrors them into Prometheus
type MetricsService struct {
	mu      sync.RWMutex
	records [MetricsCapacity]models.PerformanceRecord
	next    int
	count   int

	answers        *prometheus.CounterVec
	knowledgeCache *prometheus.CounterVec
	answerLatency  prometheus.Histogram
	totalLatency   prometheus.Histogram
	fetchLatency   prometheus.Histogram
}

// NewMetricsService creates the ring buffer. reg may be nil to skip Prometheus registration.
func NewMetricsService(reg prometheus.Registerer) *MetricsService {
	factory := promauto.With(reg)

	return &MetricsService{
		answers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgebot_answers_total",
			Help: "Answers produced, by provider (primary, secondary, none)",
		}, []string{"provider"}),

		knowledgeCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledgebot_knowledge_cache_total",
			Help: "Knowledge cache lookups by result (hit, miss)",
		}, []string{"result"}),

		answerLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "knowledgebot_answer_duration_seconds",
			Help:    "Answer generation latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		totalLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "knowledgebot_message_duration_seconds",
			Help:    "End-to-end message handling latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		fetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "knowledgebot_knowledge_fetch_duration_seconds",
			Help:    "Knowledge lookup latency in seconds, cache hits included",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 20},
		}),
	}
}

// Record appends rec, evicting the oldest record beyond capacity
func (m *MetricsService) Record(rec models.PerformanceRecord) {
	m.mu.Lock()
	m.records[m.next] = rec
	m.next = (m.next + 1) % MetricsCapacity
	if m.count < MetricsCapacity {
		m.count++
	}
	m.mu.Unlock()

	m.answers.WithLabelValues(string(rec.ProviderUsed)).Inc()
	if rec.KnowledgeCacheHit {
		m.knowledgeCache.WithLabelValues("hit").Inc()
	} else {
		m.knowledgeCache.WithLabelValues("miss").Inc()
	}
	m.answerLatency.Observe(float64(rec.AnswerDurationMs) / 1000)
	m.totalLatency.Observe(float64(rec.TotalDurationMs) / 1000)
	m.fetchLatency.Observe(float64(rec.KnowledgeFetchDurationMs) / 1000)
}

// Len returns the number of records held
func (m *MetricsService) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

// Records returns the held records oldest first
func (m *MetricsService) Records() []models.PerformanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ordered()
}

func (m *MetricsService) ordered() []models.PerformanceRecord {
	out := make([]models.PerformanceRecord, 0, m.count)
	start := (m.next - m.count + MetricsCapacity) % MetricsCapacity
	for i := 0; i < m.count; i++ {
		out = append(out, m.records[(start+i)%MetricsCapacity])
	}
	return out
}

// Summarize aggregates the window. Knowledge fetch time is averaged over
// cache misses only; answer and total time over every record.
func (m *MetricsService) Summarize() models.MetricsSummary {
	m.mu.RLock()
	records := m.ordered()
	m.mu.RUnlock()

	summary := models.MetricsSummary{
		Count:  len(records),
		Recent: []models.PerformanceRecord{},
	}
	if len(records) == 0 {
		return summary
	}

	var missFetchMs, answerMs, totalMs int64
	for _, rec := range records {
		if rec.KnowledgeCacheHit {
			summary.CacheHitCount++
		} else {
			summary.CacheMissCount++
			missFetchMs += rec.KnowledgeFetchDurationMs
		}
		answerMs += rec.AnswerDurationMs
		totalMs += rec.TotalDurationMs
	}

	n := float64(len(records))
	summary.HitRate = float64(summary.CacheHitCount) / n
	if summary.CacheMissCount > 0 {
		summary.AvgKnowledgeFetchMs = float64(missFetchMs) / float64(summary.CacheMissCount)
	}
	summary.AvgAnswerMs = float64(answerMs) / n
	summary.AvgTotalMs = float64(totalMs) / n

	for i := len(records) - 1; i >= 0 && len(summary.Recent) < MetricsRecentLimit; i-- {
		summary.Recent = append(summary.Recent, records[i])
	}
	return summary
}
