/*
 * Copyright 2014 Canonical Ltd.
 *
 * This file is part of ofono2mm-go.
 *
 * ofono2mm-go is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; version 3.
 *
 * ofono2mm-go is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package metrics exports a debug/health HTTP surface: modem count,
// rescan count and bearer reconnect count (§A7). A per-modem state gauge
// vector is registered too, but no component sets it, so it exports no
// series. It is internal to the process — no upper or lower protocol
// client ever talks to it.
package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every gauge/counter this daemon exports, all under one
// private prometheus.Registry (never the global DefaultRegisterer, so
// tests can construct independent instances).
type Registry struct {
	reg *prometheus.Registry

	ModemsTracked  prometheus.Gauge
	RescanTotal    prometheus.Counter
	ReconnectTotal prometheus.Counter
	ModemState     *prometheus.GaugeVec
}

// New builds a Registry with every metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		ModemsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ofono2mm",
			Name:      "modems_tracked",
			Help:      "Number of modems currently exported on the upper protocol bus.",
		}),
		RescanTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ofono2mm",
			Name:      "rescan_total",
			Help:      "Number of full modem rescans performed.",
		}),
		ReconnectTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ofono2mm",
			Name:      "bearer_reconnect_total",
			Help:      "Number of bearer reconnect tasks scheduled.",
		}),
		ModemState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ofono2mm",
			Name:      "modem_state",
			Help:      "Current projected state per modem, 1 for the active state and 0 otherwise.",
		}, []string{"modem", "state"}),
	}

	reg.MustRegister(r.ModemsTracked, r.RescanTotal, r.ReconnectTotal, r.ModemState)
	return r
}

// Handler returns the HTTP router serving /metrics and /healthz.
func (r *Registry) Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return router
}
