package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64

	ImagesGenerated   atomic.Uint64
	StorageFailures   atomic.Uint64
	AnalysesTotal     atomic.Uint64
	AnalysisFallbacks atomic.Uint64
	DocumentsIndexed  atomic.Uint64

	StartTime time.Time
}

var globalMetrics = &Metrics{StartTime: time.Now()}

func IncrementImagesGenerated() { globalMetrics.ImagesGenerated.Add(1) }

// IncrementStorageFailures counts generated images that could not be archived.
func IncrementStorageFailures() { globalMetrics.StorageFailures.Add(1) }

func IncrementAnalyses() { globalMetrics.AnalysesTotal.Add(1) }

// IncrementAnalysisFallbacks counts batched analyses answered with the raw reply.
func IncrementAnalysisFallbacks() { globalMetrics.AnalysisFallbacks.Add(1) }

func IncrementDocumentsIndexed() { globalMetrics.DocumentsIndexed.Add(1) }

// GetMetrics returns current metrics
func GetMetrics() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]any{
		"requests_total":       globalMetrics.RequestsTotal.Load(),
		"requests_in_progress": globalMetrics.RequestsInProgress.Load(),
		"requests_success":     globalMetrics.RequestsSuccess.Load(),
		"requests_failed":      globalMetrics.RequestsFailed.Load(),
		"images_generated":     globalMetrics.ImagesGenerated.Load(),
		"storage_failures":     globalMetrics.StorageFailures.Load(),
		"analyses_total":       globalMetrics.AnalysesTotal.Load(),
		"analysis_fallbacks":   globalMetrics.AnalysisFallbacks.Load(),
		"documents_indexed":    globalMetrics.DocumentsIndexed.Load(),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		globalMetrics.RequestsTotal.Add(1)
		globalMetrics.RequestsInProgress.Add(1)
		defer globalMetrics.RequestsInProgress.Add(-1)

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			globalMetrics.RequestsSuccess.Add(1)
		} else {
			globalMetrics.RequestsFailed.Add(1)
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
