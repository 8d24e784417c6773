package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"video-scraper/internal/models"
	"video-scraper/internal/service"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 5 * time.Minute
	maxTimeout     = 4 * time.Minute
	minTimeout     = time.Second
)

// reserved query parameters; every other one becomes an operation option
var reserved = map[string]bool{"limit": true, "workers": true, "timeout": true}

// Handler serves scrapes over HTTP. Each request gets its own Service, so
// concurrent requests never share a browser.
type Handler struct {
	newService func() *service.Service
	logger     *zap.Logger
}

func NewHandler(newService func() *service.Service, logger *zap.Logger) *Handler {
	return &Handler{newService: newService, logger: logger}
}

func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(cors)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/operations", h.operations).Methods(http.MethodGet)
	r.HandleFunc("/{platform}/{operation}/{target}", h.scrape).Methods(http.MethodGet, http.MethodOptions)
	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) operations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"operations": service.Operations()})
}

// scrape runs GET /{platform}/{operation}/{target}. A listing that failed
// part way answers 206 with the records read so far.
func (h *Handler) scrape(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	query := r.URL.Query()

	req := service.Request{
		Platform:  vars["platform"],
		Operation: vars["operation"],
		Target:    vars["target"],
		Options:   map[string]string{},
	}
	for key, dst := range map[string]*int{"limit": &req.Limit, "workers": &req.Workers} {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.errorResponse(w, http.StatusBadRequest, "Invalid \""+key+"\" query parameter", raw)
			return
		}
		*dst = n
	}
	for key := range query {
		if !reserved[key] {
			req.Options[key] = query.Get(key)
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout(query.Get("timeout")))
	defer cancel()

	svc := h.newService()
	defer func() {
		if err := svc.Close(); err != nil {
			h.logger.Warn("close service", zap.Error(err))
		}
	}()

	start := time.Now()
	records, err := svc.Run(ctx, req)
	elapsed := time.Since(start)
	h.logger.Info("scrape",
		zap.String("platform", req.Platform),
		zap.String("operation", req.Operation),
		zap.String("target", req.Target),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	)

	if err != nil && len(records) == 0 {
		h.errorResponse(w, service.HTTPStatus(err), http.StatusText(service.HTTPStatus(err)), err.Error())
		return
	}

	resp := models.ScrapeResponse{
		Records: models.ToMaps(records),
		Metadata: models.Metadata{
			Platform:   req.Platform,
			Operation:  req.Operation,
			Target:     req.Target,
			ScrapedAt:  time.Now(),
			DurationMs: elapsed.Milliseconds(),
		},
	}
	status := http.StatusOK
	if err != nil {
		resp.Partial = true
		resp.Error = err.Error()
		status = http.StatusPartialContent
	}
	writeJSON(w, status, resp)
}

// requestTimeout reads the timeout parameter in milliseconds, clamped to
// what a request may take.
func requestTimeout(raw string) time.Duration {
	d := defaultTimeout
	if ms, err := strconv.Atoi(raw); err == nil {
		d = time.Duration(ms) * time.Millisecond
	}
	return min(max(d, minTimeout), maxTimeout)
}

func (h *Handler) errorResponse(w http.ResponseWriter, statusCode int, message, details string) {
	writeJSON(w, statusCode, models.ErrorResponse{Error: message, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
