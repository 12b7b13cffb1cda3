package models

import "time"

// PerformanceRecord captures the timings of one answered message
type PerformanceRecord struct {
	Timestamp                time.Time    `json:"timestamp"`
	TotalDurationMs          int64        `json:"totalDurationMs"`
	KnowledgeFetchDurationMs int64        `json:"knowledgeFetchDurationMs"`
	KnowledgeCacheHit        bool         `json:"knowledgeCacheHit"`
	AnswerDurationMs         int64        `json:"answerDurationMs"`
	ProviderUsed             ProviderUsed `json:"providerUsed"`
	ModelIdentifier          string       `json:"modelIdentifier"`
}

// MetricsSummary aggregates the rolling window of performance records
type MetricsSummary struct {
	Count               int                 `json:"count"`
	CacheHitCount       int                 `json:"cacheHitCount"`
	CacheMissCount      int                 `json:"cacheMissCount"`
	HitRate             float64             `json:"hitRate"`
	AvgKnowledgeFetchMs float64             `json:"avgKnowledgeFetchMs"` // cache misses only
	AvgAnswerMs         float64             `json:"avgAnswerMs"`
	AvgTotalMs          float64             `json:"avgTotalMs"`
	Recent              []PerformanceRecord `json:"recent"` // newest first
}
