// Package metrics defines the Prometheus metrics recorded by create-admin.
// It is the single source of truth for metric names, labels, and help strings.
//
// The command is short-lived, so metrics are not scraped. When a textfile path
// is configured they are written once at exit for node_exporter's textfile
// collector to pick up.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "create_admin"

// ── Provisioning metrics ──────────────────────────────────────────────────────

// RunsTotal counts provisioning runs by terminal state.
// Label:
//   - outcome: "completed", "failed_validation", "failed_duplicate" or "failed_persistence"
var RunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Total number of provisioning runs, by terminal state.",
	},
	[]string{"outcome"},
)

// PasswordMismatchesTotal counts confirmation entries that did not match.
var PasswordMismatchesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_mismatches_total",
		Help:      "Total number of password confirmations that did not match the first entry.",
	},
)

// HashDuration measures a single bcrypt hash, which dominates run latency.
var HashDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "password_hash_duration_seconds",
		Help:      "Duration of password hashing at the configured cost.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms … ~8s
	},
)

// ── Directory metrics ─────────────────────────────────────────────────────────

// DirectoryWritesTotal counts collection writes.
// Labels:
//   - mode: "create" (collection absent) or "append"
//   - result: "ok", "conflict" or "error"
var DirectoryWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "directory_writes_total",
		Help:      "Total number of users collection writes, by mode and result.",
	},
	[]string{"mode", "result"},
)

// WriteTextfile writes every registered metric to path in the text exposition
// format. The file is replaced atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
