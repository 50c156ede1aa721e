package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Authorization Code Flow Metrics
	CodesIssuedTotal   *prometheus.CounterVec
	CodesRedeemedTotal *prometheus.CounterVec

	// Token Metrics
	TokensIssuedTotal         *prometheus.CounterVec
	GrantsRejectedTotal       *prometheus.CounterVec
	RefreshRotationsTotal     *prometheus.CounterVec
	TokenVerificationTotal    *prometheus.CounterVec
	TokenGenerationDuration   *prometheus.HistogramVec
	TokenVerificationDuration prometheus.Histogram

	// Key Management Metrics
	KeyRotationsTotal *prometheus.CounterVec

	// Authentication and Session Metrics
	LoginTotal           *prometheus.CounterVec
	SessionsActive       prometheus.Gauge
	SessionsCreatedTotal prometheus.Counter
	SessionsRevokedTotal *prometheus.CounterVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	m := &Metrics{
		// Authorization Code Flow Metrics
		CodesIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_authorization_codes_issued_total",
				Help: "Total number of authorization codes issued",
			},
			[]string{"result"}, // success, error
		),
		CodesRedeemedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_authorization_codes_redeemed_total",
				Help: "Total number of authorization code redemption attempts",
			},
			[]string{"result"}, // success, expired, consumed, pkce_mismatch, invalid
		),

		// Token Metrics
		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_issued_total",
				Help: "Total number of access tokens issued",
			},
			[]string{"grant_type"}, // authorization_code, refresh_token, client_credentials
		),
		GrantsRejectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_grants_rejected_total",
				Help: "Total number of rejected token grant requests",
			},
			[]string{"grant_type", "reason"},
		),
		RefreshRotationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_refresh_rotations_total",
				Help: "Total number of refresh token rotation attempts",
			},
			[]string{"result"}, // success, reuse_detected, expired, revoked, invalid
		),
		TokenVerificationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_token_verification_total",
				Help: "Total number of JWT verifications",
			},
			[]string{"result"}, // valid, expired, unknown_key, invalid
		),
		TokenGenerationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oauth_token_generation_duration_seconds",
				Help:    "Time taken to sign access tokens",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"grant_type"},
		),
		TokenVerificationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oauth_token_verification_duration_seconds",
				Help:    "Time taken to verify JWT signatures",
				Buckets: prometheus.DefBuckets,
			},
		),

		// Key Management Metrics
		KeyRotationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signing_key_rotations_total",
				Help: "Total number of signing key rotations",
			},
			[]string{"result"}, // success, error
		),

		// Authentication and Session Metrics
		LoginTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_total",
				Help: "Total number of login attempts",
			},
			[]string{"result"}, // success, failure
		),
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessions_active",
				Help: "Current number of active sessions",
			},
		),
		SessionsCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		SessionsRevokedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessions_revoked_total",
				Help: "Total number of sessions revoked",
			},
			[]string{"reason"}, // logout, reuse_detected, user_request, admin
		),

		// HTTP Request Metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latency in seconds",
				Buckets: []float64{
					0.001,
					0.005,
					0.010,
					0.025,
					0.050,
					0.100,
					0.250,
					0.500,
					1.0,
					2.5,
					5.0,
					10.0,
				},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),

		// Database Query Metrics
		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Total number of database query errors",
			},
			[]string{"operation"},
		),
	}

	return m
}
