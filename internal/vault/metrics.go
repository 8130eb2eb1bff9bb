package vault

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/inkvault/inkvault/internal/document"
)

// Metrics register on the default Prometheus registry. Hosts that expose
// /metrics get them for free; everyone else pays one registration.
var (
	savesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkvault_saves_total",
		Help: "Document saves by key and status.",
	}, []string{"key", "status"})

	deletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkvault_deletes_total",
		Help: "Document deletions by key and status.",
	}, []string{"key", "status"})

	backupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkvault_backups_total",
		Help: "Backup attempts by key and outcome.",
	}, []string{"key", "outcome"})

	corruptionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkvault_corruption_detected_total",
		Help: "Corrupted documents detected, by key and corruption kind.",
	}, []string{"key", "kind"})

	recoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkvault_recoveries_total",
		Help: "Recovery runs by key and outcome.",
	}, []string{"key", "outcome"})

	tamperEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkvault_tamper_events_total",
		Help: "Out-of-band document modifications noticed by the watcher.",
	}, []string{"key"})
)

func recordSave(key document.Key, status string) {
	savesTotal.WithLabelValues(string(key), status).Inc()
}

func recordDelete(key document.Key, status string) {
	deletesTotal.WithLabelValues(string(key), status).Inc()
}

func recordBackup(key document.Key, outcome string) {
	backupsTotal.WithLabelValues(string(key), outcome).Inc()
}

func recordCorruption(key document.Key, kind string) {
	corruptionTotal.WithLabelValues(string(key), kind).Inc()
}

func recordRecovery(key document.Key, outcome string) {
	recoveriesTotal.WithLabelValues(string(key), outcome).Inc()
}

func recordTamper(key document.Key) {
	tamperEventsTotal.WithLabelValues(string(key)).Inc()
}
