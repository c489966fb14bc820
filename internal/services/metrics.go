package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookauth",
			Name:      "login_attempts_total",
			Help:      "Total authentication attempts by outcome code.",
		},
		[]string{"outcome"}, // "success" or an error code such as INVALID_CREDENTIALS
	)

	registrationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookauth",
			Name:      "registrations_total",
			Help:      "Total accounts created.",
		},
		[]string{"category"},
	)

	tokensIssuedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookauth",
			Name:      "tokens_issued_total",
			Help:      "Total tokens minted.",
		},
		[]string{"kind"},
	)

	sessionsRevokedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookauth",
			Name:      "sessions_revoked_total",
			Help:      "Total sessions switched off.",
		},
		[]string{"reason"}, // logout, logout_all, status_change, password_change, expired
	)

	lockoutsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookauth",
			Name:      "account_lockouts_total",
			Help:      "Total accounts locked by repeated failed logins.",
		},
	)

	unlocksCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookauth",
			Name:      "account_unlocks_total",
			Help:      "Total accounts returned from LOCKED to ACTIVE.",
		},
		[]string{"source"}, // login, sweep, admin
	)

	maintenanceRunDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bookauth",
			Name:      "maintenance_run_duration_seconds",
			Help:      "Duration of one maintenance sweep.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
