package core

import (
	"sync"
	"time"
)

// MetricsCollector provides basic metrics collection
type MetricsCollector struct {
	mu sync.RWMutex

	// Vendor API metrics
	apiRequests    map[string]int64
	apiErrors      map[string]int64
	apiLastRequest map[string]time.Time

	// Webhook metrics
	webhooksReceived int64
	webhookErrors    int64

	// Capability sink metrics
	sinkWrites int64
	sinkErrors int64

	// General metrics
	startTime time.Time
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		apiRequests:    make(map[string]int64),
		apiErrors:      make(map[string]int64),
		apiLastRequest: make(map[string]time.Time),
		startTime:      time.Now(),
	}
}

// RecordAPIRequest records a vendor API request for an operation
func (m *MetricsCollector) RecordAPIRequest(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.apiRequests[operation]++
	m.apiLastRequest[operation] = time.Now()
}

// RecordAPIError records a failed vendor API request for an operation
func (m *MetricsCollector) RecordAPIError(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.apiErrors[operation]++
}

// RecordWebhook records an incoming webhook delivery
func (m *MetricsCollector) RecordWebhook() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.webhooksReceived++
}

// RecordWebhookError records a webhook delivery that could not be processed
func (m *MetricsCollector) RecordWebhookError() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.webhookErrors++
}

// RecordSinkWrite records a capability sink write
func (m *MetricsCollector) RecordSinkWrite() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sinkWrites++
}

// RecordSinkError records a failed capability sink write
func (m *MetricsCollector) RecordSinkError() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sinkErrors++
}

// GetMetrics returns current metrics
func (m *MetricsCollector) GetMetrics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	api := make(map[string]any, len(m.apiRequests))
	for name, requests := range m.apiRequests {
		api[name] = map[string]any{
			"requests_total":    requests,
			"errors_total":      m.apiErrors[name],
			"last_request_time": m.apiLastRequest[name].Format(time.RFC3339),
		}
	}

	return map[string]any{
		"uptime_seconds": time.Since(m.startTime).Seconds(),
		"api":            api,
		"webhooks": map[string]any{
			"received_total": m.webhooksReceived,
			"errors_total":   m.webhookErrors,
		},
		"sink": map[string]any{
			"writes_total": m.sinkWrites,
			"errors_total": m.sinkErrors,
		},
	}
}
