package models

import "time"

// SystemMetrics is an instrumentation snapshot served to administrators.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	EnquiriesCreated         uint64    `json:"enquiries_created"`
	PaymentsRecorded         uint64    `json:"payments_recorded"`
	PaymentsRejected         uint64    `json:"payments_rejected"`
	ImportedRows             uint64    `json:"imported_rows"`
	RejectedRows             uint64    `json:"rejected_rows"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
