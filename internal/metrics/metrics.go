package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ValidationResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "license_validation_results_total",
		Help: "License validation outcomes by result code.",
	}, []string{"code"})

	Activations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_key_activations_total",
		Help: "Product key activation attempts by outcome.",
	}, []string{"outcome"})

	KeyRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signing_key_rotations_total",
		Help: "Signing key pairs rotated.",
	})

	LicensesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "licenses_expired_total",
		Help: "Licenses flipped to expired by the background sweep.",
	})
)
