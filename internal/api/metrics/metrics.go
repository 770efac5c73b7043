// Package metrics defines and registers all custom Prometheus metrics of the
// taxdesk development backend. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation and exposed by the router at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taxdesk"

// ── Filing request metrics ────────────────────────────────────────────────────

// RequestsCreatedTotal counts newly submitted filing requests.
// Label:
//   - service_level: "standard" or "premium"
var RequestsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_created_total",
		Help:      "Total number of filing requests created, by service level.",
	},
	[]string{"service_level"},
)

// DocumentsUploadedTotal counts documents attached to new requests.
var DocumentsUploadedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "documents_uploaded_total",
		Help:      "Total number of documents attached to filing requests.",
	},
)

// StatusUpdatesTotal counts admin status transitions.
// Label:
//   - status: the administrative status applied (e.g. "En proceso")
var StatusUpdatesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_updates_total",
		Help:      "Total number of status updates applied by administrators.",
	},
	[]string{"status"},
)

// RequestsDeletedTotal counts requests removed by administrators.
var RequestsDeletedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_deleted_total",
		Help:      "Total number of filing requests deleted.",
	},
)

// ── Identity metrics ──────────────────────────────────────────────────────────

// SignInsTotal counts sign-in attempts against the identity emulator.
// Labels:
//   - provider: "password" or a federated provider id (e.g. "google.com")
//   - result: "ok", "rejected" or "conflict"
var SignInsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sign_ins_total",
		Help:      "Total number of sign-in attempts, by provider and result.",
	},
	[]string{"provider", "result"},
)
