package ops

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/pricegate/internal/domain"
	"github.com/xela07ax/pricegate/internal/ledger"
)

// Server — операционная поверхность сервиса: health, метрики и
// read-only выборки леджера для аудита/алертинга. Никакой записи
// и никакой аутентификации здесь нет.
type Server struct {
	router *chi.Mux
	logger *zap.Logger
	store  ledger.Ledger
}

func NewServer(store ledger.Ledger, reg *prometheus.Registry, logger *zap.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		logger: logger.Named("ops"),
		store:  store,
	}
	s.routes(reg)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(reg *prometheus.Registry) {
	r := s.router

	// Инфраструктурные Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/v1/decisions", func(r chi.Router) {
		r.Get("/", s.listDecisions)
		r.Get("/{id}", s.getDecision)
	})
}

func (s *Server) listDecisions(w http.ResponseWriter, r *http.Request) {
	status := domain.DecisionStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}

	records, err := s.store.List(r.Context(), status, 100)
	if err != nil {
		s.logger.Error("failed to list decisions", zap.Error(err))
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, records)
}

func (s *Server) getDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			http.Error(w, "decision not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to get decision", zap.String("id", id), zap.Error(err))
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, rec)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
