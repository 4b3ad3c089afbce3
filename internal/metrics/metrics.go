package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestsTotal общее количество запросов к бэкенду
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxi_client",
			Name:      "api_requests_total",
			Help:      "Общее количество запросов к бэкенду",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration длительность запросов к бэкенду
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taxi_client",
			Name:      "api_request_duration_seconds",
			Help:      "Длительность запросов к бэкенду в секундах",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// LocationPushesTotal отправки геопозиции по результату: sent, dropped, failed
	LocationPushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxi_client",
			Name:      "location_pushes_total",
			Help:      "Количество отправок геопозиции водителя",
		},
		[]string{"result"},
	)

	// EmailRetriesTotal повторные отправки чека после успешной оплаты
	EmailRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taxi_client",
			Name:      "email_retries_total",
			Help:      "Количество повторных отправок чека",
		},
	)

	// PaymentConfirmationsTotal результаты сверки оплаты: success, error
	PaymentConfirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxi_client",
			Name:      "payment_confirmations_total",
			Help:      "Результаты сверки оплаты",
		},
		[]string{"result"},
	)

	// BootstrapTotal результаты восстановления сессии: restored, failed, anonymous
	BootstrapTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxi_client",
			Name:      "auth_bootstrap_total",
			Help:      "Результаты восстановления сессии при запуске",
		},
		[]string{"outcome"},
	)

	// MapsRequestsTotal запросы к картографическому провайдеру
	MapsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxi_client",
			Name:      "maps_requests_total",
			Help:      "Запросы к картографическому провайдеру",
		},
		[]string{"endpoint", "status", "cached"},
	)
)
