package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kwv/coordenv/coordenv"
	"github.com/kwv/coordenv/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxMatchBody caps POST /match payloads.
const maxMatchBody = 8 << 20

// catalogEntry is the JSON form of a reference geometry.
type catalogEntry struct {
	Symbol       string       `json:"symbol"`
	Name         string       `json:"name"`
	IUPAC        string       `json:"iupac,omitempty"`
	Coordination int          `json:"coordination"`
	Points       [][3]float64 `json:"points"`
	Algorithms   []string     `json:"algorithms"`
	Hints        []string     `json:"hints,omitempty"`
}

func newHTTPServer(worker *service.Worker, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	catalog := worker.Finder().Catalog()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		status := struct {
			Status     string    `json:"status"`
			Timestamp  time.Time `json:"timestamp"`
			Geometries int       `json:"geometries"`
		}{
			Status:     "ok",
			Timestamp:  time.Now(),
			Geometries: len(catalog.Geometries()),
		}
		writeJSON(w, http.StatusOK, status)
	})

	mux.HandleFunc("/catalog", func(w http.ResponseWriter, r *http.Request) {
		geoms := catalog.Geometries()
		if cnParam := r.URL.Query().Get("cn"); cnParam != "" {
			cn, err := strconv.Atoi(cnParam)
			if err != nil || cn < 1 {
				http.Error(w, "cn must be a positive integer", http.StatusBadRequest)
				return
			}
			geoms = catalog.ByCoordination(cn)
		}

		entries := make([]catalogEntry, 0, len(geoms))
		for _, g := range geoms {
			entries = append(entries, newCatalogEntry(g))
		}
		writeJSON(w, http.StatusOK, entries)
	})

	mux.HandleFunc("/match", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMatchBody))
		if err != nil {
			http.Error(w, "reading body: "+err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		queries, err := service.DecodeQueries(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		log.Printf("[HTTP] /match %d sites from %s", len(queries), r.RemoteAddr)
		results, err := worker.Run(r.Context(), queries)
		if err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, coordenv.ErrUnknownGeometry) {
				code = http.StatusBadRequest
			}
			http.Error(w, err.Error(), code)
			return
		}
		writeJSON(w, http.StatusOK, results)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return mux
}

func newCatalogEntry(g *coordenv.ReferenceGeometry) catalogEntry {
	e := catalogEntry{
		Symbol:       g.Symbol,
		Name:         g.Name,
		IUPAC:        g.IUPAC,
		Coordination: g.Coordination,
		Points:       make([][3]float64, len(g.Points)),
		Algorithms:   make([]string, len(g.Algorithms)),
	}
	for i, p := range g.Points {
		e.Points[i] = [3]float64{p.X, p.Y, p.Z}
	}
	for i, alg := range g.Algorithms {
		e.Algorithms[i] = string(alg.Type())
	}
	for _, h := range g.Hints {
		e.Hints = append(e.Hints, string(h.Type))
	}
	return e
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Error encoding response: %v", err)
	}
}
