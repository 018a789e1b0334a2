package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// maxBodySize limits the documents accepted by the admin endpoint
const maxBodySize = 16 << 20

// AdminHandler returns the HTTP handler of the admin endpoint:
//
//	GET  /metrics              Prometheus metrics
//	GET  /config               complete configuration (probes the clients first)
//	GET  /config/{component}   configuration of one component
//	POST /config               insert a JSON document and broadcast the result
//	POST /config/diff          keys of a JSON document that differ from the configuration
//	GET  /stats                value store statistics per component
//	POST /snapshot             write the snapshot file now
func (s *ConfigServer) AdminHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /config", s.handleDump)
	mux.HandleFunc("GET /config/{component}", s.handleComponent)
	mux.HandleFunc("POST /config", s.handleInsert)
	mux.HandleFunc("POST /config/diff", s.handleDiff)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("POST /snapshot", s.handleSnapshot)

	if s.config.LogLevel == "debug" {
		return loggerMiddleware(mux)
	}
	return mux
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (s *ConfigServer) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.WriteMetrics(w)
}

func (s *ConfigServer) handleDump(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.DumpConfig(true))
}

func (s *ConfigServer) handleComponent(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.store.ComponentJSON(r.PathValue("component"), true)
	if !ok {
		http.Error(w, "unknown component", http.StatusNotFound)
		return
	}
	writeJSON(w, doc)
}

func (s *ConfigServer) handleInsert(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	s.commMu.Lock()
	err := s.store.InsertJSON(body)
	s.commMu.Unlock()

	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.PushGlobalConfig("", false); err != nil {
		http.Error(w, "config stored but not pushed: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *ConfigServer) handleDiff(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.store.Differences(body, true))
}

func (s *ConfigServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	data, err := json.MarshalIndent(s.store.Info(), "", "    ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, string(data))
}

func (s *ConfigServer) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	err := s.Snapshot()
	switch {
	case errors.Is(err, errNoSnapshotFile):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

func readBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return "", false
	}
	return string(body), true
}

func writeJSON(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := io.WriteString(w, doc); err != nil {
		Logger.Debugf("failed to write response: %v", err)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(rw, r)

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
