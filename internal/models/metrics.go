package models

import "time"

// MetricsSnapshot aggregates process counters for the metrics summary endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	TransactionsTotal        uint64            `json:"transactions_total"`
	AverageTxDurationMs      float64           `json:"average_tx_duration_ms"`
	RegistrationOutcomes     map[string]uint64 `json:"registration_outcomes"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
