package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GateMetrics provides observability for the request gate: authentication
// outcomes, blocks, origin rejections, and rate limiting.
//
// This interface is optional - handlers constructed with the no-op
// implementation pay nothing per request.
type GateMetrics interface {
	// RecordAuthOutcome records one authentication decision.
	// outcome is "success", "failed", or "no_credentials".
	RecordAuthOutcome(outcome string)

	// RecordBlocked increments the counter of requests refused because the
	// client IP was in its block window.
	RecordBlocked()

	// RecordOriginRejected increments the counter of state-changing requests
	// refused by the cross-origin check.
	RecordOriginRejected()

	// RecordRateLimited increments the counter of requests refused by the
	// rate limiter.
	RecordRateLimited()

	// RecordRequest records a completed HTTP request with its route label,
	// status class, and duration.
	RecordRequest(route string, status int, duration time.Duration)
}

// ShareMetrics provides observability for the share-link subsystem.
type ShareMetrics interface {
	// RecordMint increments the counter of minted share links.
	RecordMint()

	// RecordDownload records one share download attempt.
	// result is "ok", "inactive", "pin_required", or "pin_invalid".
	RecordDownload(result string)

	// RecordRevoked increments the counter of revoked links.
	RecordRevoked()

	// RecordPurged adds the number of records removed by a purge pass.
	RecordPurged(count int)
}

// UploadMetrics provides observability for upload decoding.
type UploadMetrics interface {
	// RecordUpload records one decoded file and its size in bytes.
	RecordUpload(bytes int64)

	// RecordRejected increments the counter of refused upload requests.
	// reason is "not_multipart", "no_boundary", "length_required",
	// "too_large", or "malformed".
	RecordRejected(reason string)
}

type gateMetrics struct {
	authOutcomes    *prometheus.CounterVec
	blocked         prometheus.Counter
	originRejected  prometheus.Counter
	rateLimited     prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// NewGateMetrics creates a Prometheus-backed GateMetrics instance, or a no-op
// one when metrics are disabled.
func NewGateMetrics() GateMetrics {
	if !IsEnabled() {
		return &noopGateMetrics{}
	}

	reg := GetRegistry()

	return &gateMetrics{
		authOutcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharegate_auth_outcomes_total",
				Help: "Authentication decisions by outcome",
			},
			[]string{"outcome"},
		),
		blocked: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "sharegate_blocked_requests_total",
				Help: "Requests refused because the client IP was blocked",
			},
		),
		originRejected: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "sharegate_origin_rejections_total",
				Help: "State-changing requests refused by the cross-origin check",
			},
		),
		rateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "sharegate_rate_limited_total",
				Help: "Requests refused by the rate limiter",
			},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sharegate_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"route", "status"},
		),
	}
}

func (m *gateMetrics) RecordAuthOutcome(outcome string) {
	m.authOutcomes.WithLabelValues(outcome).Inc()
}

func (m *gateMetrics) RecordBlocked() {
	m.blocked.Inc()
}

func (m *gateMetrics) RecordOriginRejected() {
	m.originRejected.Inc()
}

func (m *gateMetrics) RecordRateLimited() {
	m.rateLimited.Inc()
}

func (m *gateMetrics) RecordRequest(route string, status int, duration time.Duration) {
	m.requestDuration.WithLabelValues(route, statusClass(status)).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

type shareMetrics struct {
	mints     prometheus.Counter
	downloads *prometheus.CounterVec
	revoked   prometheus.Counter
	purged    prometheus.Counter
}

// NewShareMetrics creates a Prometheus-backed ShareMetrics instance, or a
// no-op one when metrics are disabled.
func NewShareMetrics() ShareMetrics {
	if !IsEnabled() {
		return &noopShareMetrics{}
	}

	reg := GetRegistry()

	return &shareMetrics{
		mints: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "sharegate_share_mints_total",
				Help: "Share links minted",
			},
		),
		downloads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharegate_share_downloads_total",
				Help: "Share download attempts by result",
			},
			[]string{"result"},
		),
		revoked: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "sharegate_share_revoked_total",
				Help: "Share links revoked",
			},
		),
		purged: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "sharegate_share_purged_total",
				Help: "Share records removed by purge passes",
			},
		),
	}
}

func (m *shareMetrics) RecordMint() { m.mints.Inc() }
func (m *shareMetrics) RecordDownload(result string) { m.downloads.WithLabelValues(result).Inc() }
func (m *shareMetrics) RecordRevoked() { m.revoked.Inc() }
func (m *shareMetrics) RecordPurged(count int) { m.purged.Add(float64(count)) }

type uploadMetrics struct {
	uploads  prometheus.Counter
	bytes    prometheus.Counter
	rejected *prometheus.CounterVec
}

// NewUploadMetrics creates a Prometheus-backed UploadMetrics instance, or a
// no-op one when metrics are disabled.
func NewUploadMetrics() UploadMetrics {
	if !IsEnabled() {
		return &noopUploadMetrics{}
	}

	reg := GetRegistry()

	return &uploadMetrics{
		uploads: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "sharegate_uploads_total",
				Help: "Files decoded from upload requests",
			},
		),
		bytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "sharegate_upload_bytes_total",
				Help: "Total bytes written from uploads",
			},
		),
		rejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharegate_uploads_rejected_total",
				Help: "Upload requests refused by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *uploadMetrics) RecordUpload(bytes int64) {
	m.uploads.Inc()
	m.bytes.Add(float64(bytes))
}

func (m *uploadMetrics) RecordRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

// No-op implementations, used when metrics are disabled.

type noopGateMetrics struct{}

func (noopGateMetrics) RecordAuthOutcome(string) {}
func (noopGateMetrics) RecordBlocked() {}
func (noopGateMetrics) RecordOriginRejected() {}
func (noopGateMetrics) RecordRateLimited() {}
func (noopGateMetrics) RecordRequest(string, int, time.Duration) {}

type noopShareMetrics struct{}

func (noopShareMetrics) RecordMint() {}
func (noopShareMetrics) RecordDownload(string) {}
func (noopShareMetrics) RecordRevoked() {}
func (noopShareMetrics) RecordPurged(int) {}

type noopUploadMetrics struct{}

func (noopUploadMetrics) RecordUpload(int64) {}
func (noopUploadMetrics) RecordRejected(string) {}
