package main

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"sui-arb-engine/internal/config"
	"sui-arb-engine/internal/metrics"
	"sui-arb-engine/internal/notify"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		log.WithError(err).Fatal("failed to register metrics")
	}

	notifier := notify.New(log.StandardLogger(), 256)

	router := mux.NewRouter()
	router.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/api/reports", reportsHandler(notifier)).Methods(http.MethodGet)

	addr := os.Getenv("ARB_STATUS_ADDR")
	if addr == "" {
		addr = ":8090"
	}
	log.WithField("addr", addr).WithField("rpc_url", cfg.RPC.URL).Info("status surface listening")
	if err := http.ListenAndServe(addr, router); err != nil {
		log.WithError(err).Fatal("status server exited")
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func reportsHandler(n *notify.Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(n.List())
	}
}
