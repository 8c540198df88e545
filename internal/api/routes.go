package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Routes registers the API on r. limiter may be nil.
func Routes(r *mux.Router, h *Handler, limiter *IPRateLimiter) {
	api := r.PathPrefix("/api").Subrouter()
	if limiter != nil {
		api.Use(limiter.LimitMiddleware)
	}
	api.Use(h.accessLog)

	calc := api.PathPrefix("/calc").Subrouter()
	calc.HandleFunc("/loads", h.Loads()).Methods("POST")
	calc.HandleFunc("/members", h.Members()).Methods("POST")
	calc.HandleFunc("/footing", h.Footing()).Methods("POST")
	calc.HandleFunc("/baseplate", h.Baseplate()).Methods("POST")
	calc.HandleFunc("/baseplate/autosize", h.Autosize()).Methods("POST")
	calc.HandleFunc("/baseplate/weld", h.Weld()).Methods("POST")
	calc.HandleFunc("/design", h.Design()).Methods("POST")
	calc.HandleFunc("/batch", h.Batch).Methods("POST")

	api.HandleFunc("/versions", h.Versions).Methods("GET")
	api.HandleFunc("/report/pdf", h.Report).Methods("POST")
	api.HandleFunc("/catalog", h.ImportCatalog).Methods("POST")
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger().LogAttrs(r.Context(), slog.LevelDebug, "api.request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("took", time.Since(start)))
	})
}
